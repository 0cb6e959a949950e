package provider

// Options is one layer of the free-form configuration bag (model,
// temperature, streaming flag, provider-specific knobs).
type Options map[string]any

// MergeOptions merges option layers with later layers taking precedence
// (global config < agent level < explicit options < runtime options). Each
// input layer stays untouched; the merge produces a new value, so
// order-of-mutation bugs cannot arise. Nested maps merge recursively.
func MergeOptions(layers ...Options) Options {
	merged := Options{}
	for _, layer := range layers {
		for k, v := range layer {
			if sub, ok := v.(map[string]any); ok {
				if existing, ok := merged[k].(map[string]any); ok {
					merged[k] = mergeMaps(existing, sub)
					continue
				}
				merged[k] = mergeMaps(nil, sub)
				continue
			}
			merged[k] = v
		}
	}
	return merged
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := out[k].(map[string]any); ok {
				out[k] = mergeMaps(existing, sub)
				continue
			}
			out[k] = mergeMaps(nil, sub)
			continue
		}
		out[k] = v
	}
	return out
}

// String reads a string option, falling back to def.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Float reads a numeric option, falling back to def.
func (o Options) Float(key string, def float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Int reads an integer option, falling back to def.
func (o Options) Int(key string, def int64) int64 {
	switch v := o[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return def
}

// Bool reads a boolean option, falling back to def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// Map reads a nested map option.
func (o Options) Map(key string) map[string]any {
	v, _ := o[key].(map[string]any)
	return v
}
