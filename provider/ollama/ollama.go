// Package ollama implements the provider adapter for local Ollama servers
// using the official client. Ollama streams by default; non-streaming calls
// set the stream flag off and receive a single callback.
package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	ollamaapi "github.com/ollama/ollama/api"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

const defaultHost = "http://localhost:11434"

// Options configure the Ollama adapter.
type Options struct {
	Model       string
	Host        string
	Temperature float64
	TopP        float64
	NumPredict  int64
	APIKey      string // optional bearer token for proxied servers
}

// Validate checks option values before any network call.
func (o *Options) Validate() error {
	if o.Model == "" {
		return &provider.ConfigurationError{Field: "model", Message: "model is required"}
	}
	if _, err := url.Parse(o.Host); err != nil {
		return &provider.ConfigurationError{Field: "host", Message: fmt.Sprintf("invalid host %q: %v", o.Host, err)}
	}
	return nil
}

// authTransport adds bearer token authentication for servers behind a proxy.
type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// Provider wraps the Ollama chat API behind the generic provider interface.
type Provider struct {
	client *ollamaapi.Client
	opts   Options
}

// NewProvider creates an Ollama provider. The host resolves explicit option
// first, then OLLAMA_HOST, then the local default.
func NewProvider(optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:       "llama3.2",
		Temperature: 0.7,
		TopP:        1.0,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Host == "" {
		opts.Host = os.Getenv("OLLAMA_HOST")
	}
	if opts.Host == "" {
		opts.Host = defaultHost
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(opts.Host)
	if err != nil {
		return nil, &provider.ConfigurationError{Field: "host", Message: err.Error()}
	}
	httpClient := http.DefaultClient
	if opts.APIKey != "" {
		httpClient = &http.Client{Transport: &authTransport{token: opts.APIKey, base: http.DefaultTransport}}
	}

	return &Provider{client: ollamaapi.NewClient(u, httpClient), opts: opts}, nil
}

func init() {
	provider.Register("ollama", func(cfg map[string]any) (provider.Provider, error) {
		o := provider.Options(cfg)
		return NewProvider(func(opts *Options) {
			opts.Model = o.String("model", opts.Model)
			opts.Host = o.String("host", "")
			opts.Temperature = o.Float("temperature", opts.Temperature)
			opts.TopP = o.Float("top_p", opts.TopP)
			opts.NumPredict = o.Int("max_tokens", 0)
			opts.APIKey = o.String("api_key", "")
		})
	})
}

// Info implements provider.Provider. Tool support depends on the local
// model; the adapter always forwards tool definitions.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: p.opts.Model, Provider: "ollama", SupportsTools: true}
}

// Generate implements provider.Provider on the chat endpoint. The client
// delivers chunks through a callback either way; streaming controls chunk
// granularity and whether onChunk observes them.
func (p *Provider) Generate(ctx context.Context, req provider.Request, onChunk provider.StreamHandler) (*provider.Response, error) {
	chatReq, err := p.buildRequest(req, onChunk != nil && req.Stream)
	if err != nil {
		return nil, err
	}

	msg := prompt.Message{Role: prompt.RoleAssistant, ContentType: prompt.ContentTypeText}
	var usage provider.Usage
	var lastRaw ollamaapi.ChatResponse

	err = p.client.Chat(ctx, chatReq, func(resp ollamaapi.ChatResponse) error {
		if resp.Message.Content != "" {
			msg.AppendText(resp.Message.Content)
			if onChunk != nil && req.Stream {
				onChunk(provider.StreamChunk{Message: &msg, Delta: resp.Message.Content}, provider.StreamUpdate)
			}
		}
		for _, tc := range resp.Message.ToolCalls {
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			// The native API has no call ids; synthesize them so the
			// orchestrator can correlate results.
			msg.RequestedActions = append(msg.RequestedActions, prompt.ActionCall{
				ID:        "ollama-" + uuid.NewString(),
				Name:      tc.Function.Name,
				Arguments: string(args),
			})
		}
		if resp.Done {
			usage = usageFromMetrics(resp)
			lastRaw = resp
		}
		return nil
	})
	if err != nil {
		return nil, &provider.TransportError{Provider: "ollama", Err: err}
	}

	if req.OutputSchema != nil || req.Options.String("response_format", "") == "json_object" {
		msg.ContentType = prompt.ContentTypeJSON
	}
	return &provider.Response{
		Message:     msg,
		RawRequest:  chatReq,
		RawResponse: lastRaw,
		Usage:       usage,
	}, nil
}

// buildRequest maps the common request onto the chat endpoint. Sampling
// knobs ride in the options map keyed the way the server expects them.
func (p *Provider) buildRequest(req provider.Request, stream bool) (*ollamaapi.ChatRequest, error) {
	messages, err := buildMessages(req)
	if err != nil {
		return nil, err
	}

	options := map[string]any{
		"temperature": req.Options.Float("temperature", p.opts.Temperature),
		"top_p":       req.Options.Float("top_p", p.opts.TopP),
	}
	if n := req.Options.Int("max_tokens", p.opts.NumPredict); n > 0 {
		options["num_predict"] = n
	}

	chatReq := &ollamaapi.ChatRequest{
		Model:    req.Options.String("model", p.opts.Model),
		Messages: messages,
		Options:  options,
		Stream:   &stream,
	}

	for _, action := range req.Actions {
		chatReq.Tools = append(chatReq.Tools, convertTool(action))
	}

	if req.OutputSchema != nil {
		format, err := json.Marshal(req.OutputSchema)
		if err != nil {
			return nil, &prompt.TransformError{Field: "output_schema", Message: err.Error()}
		}
		chatReq.Format = format
	} else if req.Options.String("response_format", "") == "json_object" {
		chatReq.Format = json.RawMessage(`"json"`)
	}
	return chatReq, nil
}

func buildMessages(req provider.Request) ([]ollamaapi.Message, error) {
	var messages []ollamaapi.Message
	if len(req.Instructions) > 0 {
		messages = append(messages, ollamaapi.Message{Role: "system", Content: strings.Join(req.Instructions, "\n\n")})
	}

	for _, m := range prompt.MergeSameRole(req.Messages) {
		switch m.Role {
		case prompt.RoleSystem:
			if len(req.Instructions) > 0 {
				continue
			}
			messages = append(messages, ollamaapi.Message{Role: "system", Content: m.Text()})
		case prompt.RoleUser:
			um := ollamaapi.Message{Role: "user", Content: m.Text()}
			for _, block := range m.Blocks {
				img, ok := block.(prompt.ImageBlock)
				if !ok {
					continue
				}
				if img.Source.Type != prompt.SourceBase64 {
					return nil, &prompt.TransformError{Field: "content", Message: "ollama images must be base64 encoded"}
				}
				data, err := base64.StdEncoding.DecodeString(img.Source.Data)
				if err != nil {
					return nil, &prompt.TransformError{Field: "content", Message: "invalid base64 image data"}
				}
				um.Images = append(um.Images, ollamaapi.ImageData(data))
			}
			messages = append(messages, um)
		case prompt.RoleAssistant:
			am := ollamaapi.Message{Role: "assistant", Content: m.Text()}
			for _, call := range m.RequestedActions {
				args := map[string]any{}
				if call.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
						args = map[string]any{}
					}
				}
				am.ToolCalls = append(am.ToolCalls, ollamaapi.ToolCall{
					Function: ollamaapi.ToolCallFunction{
						Name:      call.Name,
						Arguments: ollamaapi.ToolCallFunctionArguments(args),
					},
				})
			}
			messages = append(messages, am)
		case prompt.RoleTool:
			for _, block := range m.Blocks {
				if tr, ok := block.(prompt.ToolResultBlock); ok {
					messages = append(messages, ollamaapi.Message{Role: "tool", Content: stringifyResult(tr.Content)})
				}
			}
		default:
			return nil, &prompt.TransformError{Field: "role", Message: fmt.Sprintf("unknown role %q", m.Role)}
		}
	}
	return messages, nil
}

// convertTool maps a generic JSON-schema action onto the native tool shape.
func convertTool(action prompt.ActionSchema) ollamaapi.Tool {
	toolFunc := ollamaapi.ToolFunction{
		Name:        action.Name,
		Description: action.Description,
	}
	toolFunc.Parameters.Type = "object"

	params := action.Parameters
	if t, ok := params["type"].(string); ok && t != "" {
		toolFunc.Parameters.Type = t
	}
	toolFunc.Parameters.Required = stringSlice(params["required"])

	props := map[string]ollamaapi.ToolProperty{}
	if raw, ok := params["properties"].(map[string]any); ok {
		for name, v := range raw {
			if pm, ok := v.(map[string]any); ok {
				props[name] = convertProperty(pm)
			}
		}
	}
	toolFunc.Parameters.Properties = props

	return ollamaapi.Tool{Type: "function", Function: toolFunc}
}

func convertProperty(pm map[string]any) ollamaapi.ToolProperty {
	propType := "string"
	if t, ok := pm["type"].(string); ok && t != "" {
		propType = t
	}
	prop := ollamaapi.ToolProperty{
		Type: ollamaapi.PropertyType{propType},
	}
	if d, ok := pm["description"].(string); ok {
		prop.Description = d
	}
	if enum, ok := pm["enum"].([]any); ok {
		prop.Enum = enum
	}
	if propType == "array" {
		if items, ok := pm["items"].(map[string]any); ok {
			prop.Items = convertProperty(items)
		} else {
			prop.Items = ollamaapi.ToolProperty{Type: ollamaapi.PropertyType{"string"}}
		}
	}
	return prop
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		var out []string
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func stringifyResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprintf("%v", r)
		}
		return string(b)
	}
}

// usageFromMetrics normalizes the final chunk's metrics. Durations arrive in
// nanoseconds and are reported in milliseconds, with derived tokens/second.
func usageFromMetrics(resp ollamaapi.ChatResponse) provider.Usage {
	usage := provider.Usage{
		InputTokens:  resp.Metrics.PromptEvalCount,
		OutputTokens: resp.Metrics.EvalCount,
		TotalTokens:  resp.Metrics.PromptEvalCount + resp.Metrics.EvalCount,
		DurationMS:   resp.Metrics.TotalDuration.Milliseconds(),
	}
	if secs := resp.Metrics.EvalDuration.Seconds(); secs > 0 {
		usage.TokensPerSecond = float64(resp.Metrics.EvalCount) / secs
	}
	return usage
}

// Embed implements provider.Embedder via the embed endpoint.
func (p *Provider) Embed(ctx context.Context, model string, input []string) ([][]float64, error) {
	if model == "" {
		model = p.opts.Model
	}
	resp, err := p.client.Embed(ctx, &ollamaapi.EmbedRequest{Model: model, Input: input})
	if err != nil {
		return nil, &provider.TransportError{Provider: "ollama", Err: err}
	}
	out := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vec := make([]float64, len(emb))
		for j, v := range emb {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}
