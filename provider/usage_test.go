package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsageFromOpenAI(t *testing.T) {
	t.Run("chat completions keys", func(t *testing.T) {
		u := UsageFromOpenAI(map[string]any{
			"prompt_tokens":     float64(100),
			"completion_tokens": float64(40),
			"total_tokens":      float64(140),
			"prompt_tokens_details": map[string]any{
				"cached_tokens": float64(80),
				"audio_tokens":  float64(2),
			},
			"completion_tokens_details": map[string]any{
				"reasoning_tokens": float64(10),
				"audio_tokens":     float64(3),
			},
		})
		assert.Equal(t, 100, u.InputTokens)
		assert.Equal(t, 40, u.OutputTokens)
		assert.Equal(t, 140, u.TotalTokens)
		assert.Equal(t, 80, u.CachedTokens)
		assert.Equal(t, 10, u.ReasoningTokens)
		assert.Equal(t, 5, u.AudioTokens)
	})

	t.Run("responses api keys with computed total", func(t *testing.T) {
		u := UsageFromOpenAI(map[string]any{
			"input_tokens":  float64(20),
			"output_tokens": float64(5),
			"input_tokens_details": map[string]any{
				"cached_tokens": float64(12),
			},
		})
		assert.Equal(t, 20, u.InputTokens)
		assert.Equal(t, 5, u.OutputTokens)
		assert.Equal(t, 25, u.TotalTokens)
		assert.Equal(t, 12, u.CachedTokens)
	})
}

func TestUsageFromAnthropic(t *testing.T) {
	u := UsageFromAnthropic(map[string]any{
		"input_tokens":                float64(30),
		"output_tokens":               float64(12),
		"cache_read_input_tokens":     float64(8),
		"cache_creation_input_tokens": float64(4),
	})
	assert.Equal(t, 30, u.InputTokens)
	assert.Equal(t, 12, u.OutputTokens)
	assert.Equal(t, 42, u.TotalTokens)
	assert.Equal(t, 12, u.CachedTokens)
}

func TestUsageFromOllama(t *testing.T) {
	u := UsageFromOllama(map[string]any{
		"prompt_eval_count": float64(50),
		"eval_count":        float64(25),
		"total_duration":    float64(2_000_000_000), // 2s in ns
		"eval_duration":     float64(500_000_000),   // 0.5s in ns
	})
	assert.Equal(t, 50, u.InputTokens)
	assert.Equal(t, 25, u.OutputTokens)
	assert.Equal(t, 75, u.TotalTokens)
	assert.Equal(t, int64(2000), u.DurationMS)
	assert.InDelta(t, 50.0, u.TokensPerSecond, 0.001)
}

func TestDetectUsage(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Usage
	}{
		{
			name: "ollama by eval keys",
			raw:  map[string]any{"eval_count": float64(5)},
			want: Usage{OutputTokens: 5, TotalTokens: 5},
		},
		{
			name: "anthropic by cache key",
			raw:  map[string]any{"input_tokens": float64(1), "output_tokens": float64(2), "cache_read_input_tokens": float64(1)},
			want: Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3, CachedTokens: 1},
		},
		{
			name: "openai chat by prompt_tokens",
			raw:  map[string]any{"prompt_tokens": float64(3), "completion_tokens": float64(4)},
			want: Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7},
		},
		{
			name: "responses api by total alongside input/output",
			raw:  map[string]any{"input_tokens": float64(3), "output_tokens": float64(4), "total_tokens": float64(7)},
			want: Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7},
		},
		{
			name: "bare input/output falls to anthropic",
			raw:  map[string]any{"input_tokens": float64(3), "output_tokens": float64(4)},
			want: Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectUsage(tt.raw)
			got.ProviderDetails = nil
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsageAdd(t *testing.T) {
	first := Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, DurationMS: 100, TokensPerSecond: 50}
	second := Usage{InputTokens: 20, OutputTokens: 8, TotalTokens: 28, DurationMS: 200, TokensPerSecond: 40, CachedTokens: 4}

	sum := first.Add(second)
	assert.Equal(t, 30, sum.InputTokens)
	assert.Equal(t, 13, sum.OutputTokens)
	assert.Equal(t, 43, sum.TotalTokens)
	assert.Equal(t, 4, sum.CachedTokens)
	assert.Equal(t, int64(300), sum.DurationMS)
	// Rate reflects the most recent record.
	assert.Equal(t, 40.0, sum.TokensPerSecond)
}
