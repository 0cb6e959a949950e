// Package config loads provider configuration from YAML. A config file maps
// provider entries to their option bags, supports ${ENV_VAR} interpolation
// for credentials, and builds providers through the shared registry.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/quiltt/activeagent-go/provider"
)

// Config is the parsed configuration file.
//
// Example:
//
//	default: openai
//	providers:
//	  openai:
//	    service: openai
//	    model: gpt-4o-mini
//	    api_key: ${OPENAI_API_KEY}
//	  claude:
//	    service: anthropic
//	    model: claude-sonnet-4-20250514
//	    api_key: ${ANTHROPIC_API_KEY}
type Config struct {
	// Default names the provider entry used when none is requested.
	Default string `yaml:"default"`

	// Providers maps entry names to option bags. The reserved "service" key
	// selects the registered adapter; the rest passes through to its factory.
	Providers map[string]map[string]any `yaml:"providers"`
}

var envPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &provider.ConfigurationError{Field: "config", Message: fmt.Sprintf("read %s: %v", path, err)}
	}
	return Parse(data)
}

// Parse parses YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &provider.ConfigurationError{Field: "config", Message: fmt.Sprintf("invalid yaml: %v", err)}
	}
	if len(cfg.Providers) == 0 {
		return nil, &provider.ConfigurationError{Field: "providers", Message: "no providers configured"}
	}
	if cfg.Default == "" && len(cfg.Providers) == 1 {
		for name := range cfg.Providers {
			cfg.Default = name
		}
	}
	return &cfg, nil
}

// Entry resolves one provider entry with ${ENV_VAR} references expanded.
// Unset variables resolve to the empty string; the adapter's own validation
// decides whether that is fatal.
func (c *Config) Entry(name string) (map[string]any, error) {
	raw, ok := c.Providers[name]
	if !ok {
		return nil, &provider.ConfigurationError{Field: "provider", Message: fmt.Sprintf("no configuration entry %q", name)}
	}
	resolved := make(map[string]any, len(raw))
	for k, v := range raw {
		resolved[k] = interpolate(v)
	}
	return resolved, nil
}

// Build instantiates the named provider entry through the registry. The
// entry's "service" key selects the adapter and defaults to the entry name.
func (c *Config) Build(name string) (provider.Provider, error) {
	entry, err := c.Entry(name)
	if err != nil {
		return nil, err
	}
	service, _ := entry["service"].(string)
	if service == "" {
		service = name
	}
	delete(entry, "service")
	return provider.New(service, entry)
}

// BuildDefault instantiates the default provider entry.
func (c *Config) BuildDefault() (provider.Provider, error) {
	if c.Default == "" {
		return nil, &provider.ConfigurationError{Field: "default", Message: "no default provider configured"}
	}
	return c.Build(c.Default)
}

// interpolate expands ${ENV_VAR} string values, recursing into nested maps
// and lists so credentials can live at any depth.
func interpolate(v any) any {
	switch val := v.(type) {
	case string:
		if m := envPattern.FindStringSubmatch(val); m != nil {
			return os.Getenv(m[1])
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = interpolate(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = interpolate(item)
		}
		return out
	}
	return v
}
