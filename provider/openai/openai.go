// Package openai implements the OpenAI provider adapter on the official
// openai-go client. It speaks both the Chat Completions API (sync and
// streaming, with function/tool calling) and the Responses API, selected per
// request, and normalizes either wire shape into the canonical response
// model.
package openai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/quiltt/activeagent-go/provider"
)

// API selects which OpenAI endpoint a request is sent to.
const (
	APIChat      = "chat"
	APIResponses = "responses"
)

const defaultResponsesURL = "https://api.openai.com/v1/responses"

// Options configure the OpenAI adapter. Fields mirror a subset of the
// request parameters; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
	API                 string // chat (default) or responses
	ServiceTier         string
	Timeout             time.Duration
}

// Validate checks option values before any network call.
func (o *Options) Validate() error {
	if o.Model == "" {
		return &provider.ConfigurationError{Field: "model", Message: "model is required"}
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		return &provider.ConfigurationError{Field: "temperature", Message: fmt.Sprintf("temperature %v out of range [0, 2]", o.Temperature)}
	}
	switch o.API {
	case APIChat, APIResponses:
	default:
		return &provider.ConfigurationError{Field: "api", Message: fmt.Sprintf("unknown api %q (want chat or responses)", o.API)}
	}
	switch o.ServiceTier {
	case "", "auto", "default", "flex", "priority":
	default:
		return &provider.ConfigurationError{Field: "service_tier", Message: fmt.Sprintf("unknown service tier %q", o.ServiceTier)}
	}
	return nil
}

// Provider wraps the OpenAI APIs behind the generic provider interface.
type Provider struct {
	client    *openai.Client
	transport provider.Transport // used for the Responses API path
	opts      Options
}

// NewProvider creates an OpenAI provider. Credentials resolve explicit
// option first, then OPENAI_API_KEY, then the SDK's own default lookup.
func NewProvider(optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		API:                 APIChat,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)

	p := &Provider{client: &client, opts: opts}
	if opts.API == APIResponses {
		if apiKey == "" {
			return nil, &provider.ConfigurationError{Field: "api_key", Message: "no OpenAI API key configured (set APIKey or OPENAI_API_KEY)"}
		}
		url := opts.BaseURL
		if url == "" {
			url = defaultResponsesURL
		}
		p.transport = provider.NewHTTPTransport("openai", url, apiKey, opts.Timeout)
	}
	return p, nil
}

// NewProviderFromClient creates an OpenAI provider from an existing client.
func NewProviderFromClient(client *openai.Client, optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		API:                 APIChat,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Provider{client: client, opts: opts}, nil
}

func init() {
	provider.Register("openai", func(cfg map[string]any) (provider.Provider, error) {
		o := provider.Options(cfg)
		return NewProvider(func(opts *Options) {
			opts.Model = o.String("model", opts.Model)
			opts.Temperature = o.Float("temperature", opts.Temperature)
			opts.MaxCompletionTokens = o.Int("max_tokens", opts.MaxCompletionTokens)
			opts.APIKey = o.String("api_key", "")
			opts.BaseURL = o.String("base_url", "")
			opts.API = o.String("api", opts.API)
			opts.ServiceTier = o.String("service_tier", "")
		})
	})
}

// Generate implements provider.Provider, routing to the Chat Completions or
// Responses API per configuration (overridable per request via the "api"
// option).
func (p *Provider) Generate(ctx context.Context, req provider.Request, onChunk provider.StreamHandler) (*provider.Response, error) {
	api := req.Options.String("api", p.opts.API)
	if api == APIResponses {
		if p.transport == nil {
			return nil, &provider.ConfigurationError{Field: "api", Message: "responses API requested but provider was built for chat only"}
		}
		return p.generateResponses(ctx, req, onChunk)
	}
	return p.generateChat(ctx, req, onChunk)
}

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: p.opts.Model, Provider: "openai", SupportsTools: true}
}

// Embed implements provider.Embedder using the embeddings endpoint.
func (p *Provider) Embed(ctx context.Context, model string, input []string) ([][]float64, error) {
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: input},
	})
	if err != nil {
		return nil, &provider.TransportError{Provider: "openai", Err: err}
	}
	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
