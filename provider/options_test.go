package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeOptions(t *testing.T) {
	global := Options{"model": "gpt-4o-mini", "temperature": 0.2, "tags": map[string]any{"env": "dev", "team": "core"}}
	agent := Options{"temperature": 0.5}
	runtime := Options{"model": "gpt-4o", "tags": map[string]any{"env": "prod"}}

	merged := MergeOptions(global, agent, runtime)

	assert.Equal(t, "gpt-4o", merged["model"])
	assert.Equal(t, 0.5, merged["temperature"])
	// Nested maps merge key by key, later layers winning.
	assert.Equal(t, map[string]any{"env": "prod", "team": "core"}, merged["tags"])

	// Inputs stay untouched.
	assert.Equal(t, "gpt-4o-mini", global["model"])
	assert.Equal(t, "dev", global["tags"].(map[string]any)["env"])
}

func TestMergeOptionsEmptyLayers(t *testing.T) {
	merged := MergeOptions(nil, Options{}, Options{"a": 1})
	assert.Equal(t, 1, merged["a"])
	assert.Len(t, merged, 1)
}

func TestOptionAccessors(t *testing.T) {
	o := Options{
		"model":       "llama3.2",
		"temperature": 0.7,
		"max_tokens":  float64(256), // JSON decoding yields float64
		"stream":      true,
		"extra":       map[string]any{"k": "v"},
	}

	assert.Equal(t, "llama3.2", o.String("model", "default"))
	assert.Equal(t, "default", o.String("missing", "default"))
	assert.Equal(t, 0.7, o.Float("temperature", 1.0))
	assert.Equal(t, 1.0, o.Float("missing", 1.0))
	assert.Equal(t, int64(256), o.Int("max_tokens", 0))
	assert.Equal(t, int64(42), o.Int("missing", 42))
	assert.True(t, o.Bool("stream", false))
	assert.False(t, o.Bool("missing", false))
	assert.Equal(t, map[string]any{"k": "v"}, o.Map("extra"))
	assert.Nil(t, o.Map("missing"))
}
