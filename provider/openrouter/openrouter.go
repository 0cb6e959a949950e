// Package openrouter implements the OpenRouter provider adapter. The wire
// dialect is an OpenAI chat superset, so request building and response
// parsing delegate to the openai codec with routing extras layered on top.
package openrouter

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
	"github.com/quiltt/activeagent-go/provider/openai"
)

const defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// extraKeys are OpenRouter-specific top-level request fields forwarded from
// options when present.
var extraKeys = []string{
	"provider",
	"plugins",
	"transforms",
	"models",
	"route",
	"top_k",
	"min_p",
	"top_a",
	"repetition_penalty",
}

// Options configure the OpenRouter adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	SiteURL     string // optional attribution headers
	SiteName    string
	Timeout     time.Duration
}

// Validate checks option values before any network call.
func (o *Options) Validate() error {
	if o.Model == "" {
		return &provider.ConfigurationError{Field: "model", Message: "model is required"}
	}
	if o.APIKey == "" {
		return &provider.ConfigurationError{Field: "api_key", Message: "no OpenRouter API key configured (set APIKey or OPENROUTER_API_KEY)"}
	}
	return nil
}

// Provider speaks the OpenRouter dialect over the shared HTTP transport.
type Provider struct {
	transport provider.Transport
	opts      Options
}

// NewProvider creates an OpenRouter provider. Credentials resolve explicit
// option first, then OPENROUTER_API_KEY.
func NewProvider(optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:       "openrouter/auto",
		Temperature: 0.7,
		MaxTokens:   4096,
		BaseURL:     defaultBaseURL,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	transport := provider.NewHTTPTransport("openrouter", opts.BaseURL, opts.APIKey, opts.Timeout)
	if opts.SiteURL != "" {
		transport.Headers = map[string]string{"HTTP-Referer": opts.SiteURL}
		if opts.SiteName != "" {
			transport.Headers["X-Title"] = opts.SiteName
		}
	}
	return &Provider{transport: transport, opts: opts}, nil
}

// NewProviderWithTransport creates a provider on a caller-supplied
// transport, used by tests and custom gateways.
func NewProviderWithTransport(transport provider.Transport, optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:       "openrouter/auto",
		Temperature: 0.7,
		MaxTokens:   4096,
		APIKey:      "unused",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Model == "" {
		return nil, &provider.ConfigurationError{Field: "model", Message: "model is required"}
	}
	return &Provider{transport: transport, opts: opts}, nil
}

func init() {
	provider.Register("open_router", func(cfg map[string]any) (provider.Provider, error) {
		o := provider.Options(cfg)
		return NewProvider(func(opts *Options) {
			opts.Model = o.String("model", opts.Model)
			opts.Temperature = o.Float("temperature", opts.Temperature)
			opts.MaxTokens = o.Int("max_tokens", opts.MaxTokens)
			opts.APIKey = o.String("api_key", "")
			opts.BaseURL = o.String("base_url", opts.BaseURL)
			opts.SiteURL = o.String("site_url", "")
			opts.SiteName = o.String("site_name", "")
		})
	})
}

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: p.opts.Model, Provider: "open_router", SupportsTools: true}
}

// Generate implements provider.Provider.
func (p *Provider) Generate(ctx context.Context, req provider.Request, onChunk provider.StreamHandler) (*provider.Response, error) {
	wire, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, &prompt.TransformError{Field: "request", Message: err.Error()}
	}

	format := req.Options.String("response_format", "")
	jsonOutput := req.OutputSchema != nil || format == "json_object" || format == "json_schema"
	if req.Stream && onChunk != nil {
		state := openai.NewChatStreamState("openrouter", onChunk)
		if err := p.transport.Stream(ctx, payload, state.Handle); err != nil {
			resp := state.Finalize(jsonOutput)
			resp.RawRequest = wire
			return resp, err
		}
		resp := state.Finalize(jsonOutput)
		resp.RawRequest = wire
		return resp, nil
	}

	raw, err := p.transport.Do(ctx, payload)
	if err != nil {
		return nil, err
	}
	resp, err := openai.ParseChatResponse("openrouter", raw, jsonOutput)
	if err != nil {
		return nil, err
	}
	resp.RawRequest = wire
	return resp, nil
}

// buildRequest delegates to the base chat codec and layers the routing
// extras on. Structured output additionally pins provider.require_parameters
// so only backends honoring the schema are selected.
func (p *Provider) buildRequest(req provider.Request) (*openai.ChatRequest, error) {
	wire, err := openai.BuildChatRequest(req, p.opts.Model, p.opts.Temperature, p.opts.MaxTokens)
	if err != nil {
		return nil, err
	}

	for _, key := range extraKeys {
		if v, ok := req.Options[key]; ok {
			if wire.Extra == nil {
				wire.Extra = map[string]any{}
			}
			wire.Extra[key] = v
		}
	}

	format := req.Options.String("response_format", "")
	if req.OutputSchema != nil || format == "json_object" || format == "json_schema" {
		routing, _ := wire.Extra["provider"].(map[string]any)
		if routing == nil {
			routing = map[string]any{}
		}
		routing["require_parameters"] = true
		if wire.Extra == nil {
			wire.Extra = map[string]any{}
		}
		wire.Extra["provider"] = routing
	}
	return wire, nil
}
