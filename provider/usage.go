package provider

// Usage is the normalized token/cost accounting for a single generation
// call. Providers report heterogeneous key sets; the From* normalizers
// converge them on this shape. TotalTokens is computed when the provider
// does not supply it.
type Usage struct {
	InputTokens     int            `json:"input_tokens"`
	OutputTokens    int            `json:"output_tokens"`
	TotalTokens     int            `json:"total_tokens"`
	CachedTokens    int            `json:"cached_tokens,omitempty"`
	ReasoningTokens int            `json:"reasoning_tokens,omitempty"`
	AudioTokens     int            `json:"audio_tokens,omitempty"`
	DurationMS      int64          `json:"duration_ms,omitempty"`
	TokensPerSecond float64        `json:"tokens_per_second,omitempty"`
	ProviderDetails map[string]any `json:"provider_details,omitempty"`
}

// Add sums two usage records, used to aggregate accounting across the turns
// of a multi-turn generation. Rates and provider details are taken from the
// most recent record.
func (u Usage) Add(other Usage) Usage {
	sum := Usage{
		InputTokens:     u.InputTokens + other.InputTokens,
		OutputTokens:    u.OutputTokens + other.OutputTokens,
		TotalTokens:     u.TotalTokens + other.TotalTokens,
		CachedTokens:    u.CachedTokens + other.CachedTokens,
		ReasoningTokens: u.ReasoningTokens + other.ReasoningTokens,
		AudioTokens:     u.AudioTokens + other.AudioTokens,
		DurationMS:      u.DurationMS + other.DurationMS,
		TokensPerSecond: u.TokensPerSecond,
		ProviderDetails: u.ProviderDetails,
	}
	if other.TokensPerSecond > 0 {
		sum.TokensPerSecond = other.TokensPerSecond
	}
	if other.ProviderDetails != nil {
		sum.ProviderDetails = other.ProviderDetails
	}
	return sum
}

// UsageFromOpenAI normalizes Chat Completions and Responses API usage
// payloads. Chat reports prompt_tokens/completion_tokens, Responses reports
// input_tokens/output_tokens; nested *_details carry cached, reasoning and
// audio token counts.
func UsageFromOpenAI(raw map[string]any) Usage {
	u := Usage{ProviderDetails: raw}
	u.InputTokens = intKey(raw, "prompt_tokens", "input_tokens")
	u.OutputTokens = intKey(raw, "completion_tokens", "output_tokens")
	u.TotalTokens = intKey(raw, "total_tokens")
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	if details := mapKey(raw, "prompt_tokens_details", "input_tokens_details"); details != nil {
		u.CachedTokens = intKey(details, "cached_tokens")
		u.AudioTokens += intKey(details, "audio_tokens")
	}
	if details := mapKey(raw, "completion_tokens_details", "output_tokens_details"); details != nil {
		u.ReasoningTokens = intKey(details, "reasoning_tokens")
		u.AudioTokens += intKey(details, "audio_tokens")
	}
	return u
}

// UsageFromAnthropic normalizes Anthropic Messages usage. Anthropic does not
// supply a total, so it is computed from input+output. Cache reads and cache
// writes both count as cached tokens.
func UsageFromAnthropic(raw map[string]any) Usage {
	u := Usage{ProviderDetails: raw}
	u.InputTokens = intKey(raw, "input_tokens")
	u.OutputTokens = intKey(raw, "output_tokens")
	u.CachedTokens = intKey(raw, "cache_read_input_tokens") + intKey(raw, "cache_creation_input_tokens")
	u.TotalTokens = u.InputTokens + u.OutputTokens
	return u
}

// UsageFromOllama normalizes Ollama chat metrics. Durations arrive in
// nanoseconds and are converted to milliseconds; a tokens-per-second figure
// is derived from eval_count over eval_duration.
func UsageFromOllama(raw map[string]any) Usage {
	u := Usage{ProviderDetails: raw}
	u.InputTokens = intKey(raw, "prompt_eval_count")
	u.OutputTokens = intKey(raw, "eval_count")
	u.TotalTokens = u.InputTokens + u.OutputTokens
	u.DurationMS = int64Key(raw, "total_duration") / 1e6
	if evalNS := int64Key(raw, "eval_duration"); evalNS > 0 && u.OutputTokens > 0 {
		u.TokensPerSecond = float64(u.OutputTokens) / (float64(evalNS) / 1e9)
	}
	return u
}

// DetectUsage inspects which keys are present to pick the right normalizer
// when the caller does not know the origin provider.
func DetectUsage(raw map[string]any) Usage {
	switch {
	case hasKey(raw, "prompt_eval_count") || hasKey(raw, "eval_count"):
		return UsageFromOllama(raw)
	case hasKey(raw, "cache_read_input_tokens") || hasKey(raw, "cache_creation_input_tokens"):
		return UsageFromAnthropic(raw)
	case hasKey(raw, "prompt_tokens") || hasKey(raw, "completion_tokens"):
		return UsageFromOpenAI(raw)
	case hasKey(raw, "input_tokens") || hasKey(raw, "output_tokens"):
		// Both Anthropic and the Responses API use input/output_tokens;
		// Responses payloads carry total_tokens or *_details alongside.
		if hasKey(raw, "total_tokens") || hasKey(raw, "input_tokens_details") || hasKey(raw, "output_tokens_details") {
			return UsageFromOpenAI(raw)
		}
		return UsageFromAnthropic(raw)
	}
	return Usage{ProviderDetails: raw}
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func intKey(m map[string]any, keys ...string) int {
	return int(int64Key(m, keys...))
}

func int64Key(m map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int64(v)
		case int:
			return int64(v)
		case int64:
			return v
		}
	}
	return 0
}

func mapKey(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v
		}
	}
	return nil
}
