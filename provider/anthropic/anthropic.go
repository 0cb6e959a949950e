// Package anthropic implements the Anthropic provider adapter on the
// official anthropic-sdk-go client, covering the Messages API with tool
// calling, multimodal content and streaming.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// Options configure the Anthropic adapter (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Validate checks option values before any network call.
func (o *Options) Validate() error {
	if o.Model == "" {
		return &provider.ConfigurationError{Field: "model", Message: "model is required"}
	}
	if o.Temperature < 0 || o.Temperature > 1 {
		return &provider.ConfigurationError{Field: "temperature", Message: fmt.Sprintf("temperature %v out of range [0, 1]", o.Temperature)}
	}
	if o.MaxTokens <= 0 {
		return &provider.ConfigurationError{Field: "max_tokens", Message: "max_tokens must be positive"}
	}
	return nil
}

// Provider wraps the Anthropic Messages API behind the generic provider
// interface.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// NewProvider creates an Anthropic provider. Credentials resolve explicit
// option first, then ANTHROPIC_API_KEY via the SDK's own default lookup.
func NewProvider(optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}, nil
}

// NewProviderFromClient creates an Anthropic provider from an existing client.
func NewProviderFromClient(client *anthropic.Client, optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		Temperature: 0.7,
		MaxTokens:   4096,
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
	provider.Register("anthropic", func(cfg map[string]any) (provider.Provider, error) {
		o := provider.Options(cfg)
		return NewProvider(func(opts *Options) {
			opts.Model = anthropic.Model(o.String("model", string(opts.Model)))
			opts.Temperature = o.Float("temperature", opts.Temperature)
			opts.MaxTokens = o.Int("max_tokens", opts.MaxTokens)
			opts.APIKey = o.String("api_key", "")
		})
	})
}

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: string(p.opts.Model), Provider: "anthropic", SupportsTools: true}
}

// Generate implements provider.Provider.
func (p *Provider) Generate(ctx context.Context, req provider.Request, onChunk provider.StreamHandler) (*provider.Response, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	jsonOutput := req.OutputSchema != nil
	if req.Stream && onChunk != nil {
		return p.generateStreaming(ctx, params, jsonOutput, onChunk)
	}
	return p.generateSync(ctx, params, jsonOutput)
}

// buildParams assembles the Messages API request. Instructions become system
// blocks (one block per instruction string); tool results ride in user
// messages correlated by tool_use id.
func (p *Provider) buildParams(req provider.Request) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Options.String("model", string(p.opts.Model))),
		MaxTokens:   req.Options.Int("max_tokens", p.opts.MaxTokens),
		Temperature: anthropic.Float(req.Options.Float("temperature", p.opts.Temperature)),
	}

	for _, s := range req.Instructions {
		params.System = append(params.System, anthropic.TextBlockParam{Text: s})
	}

	for _, m := range prompt.MergeSameRole(req.Messages) {
		switch m.Role {
		case prompt.RoleSystem:
			if len(req.Instructions) > 0 {
				continue
			}
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Text()})
		case prompt.RoleUser:
			content, err := userBlocks(m.Blocks)
			if err != nil {
				return anthropic.MessageNewParams{}, err
			}
			if len(content) > 0 {
				params.Messages = append(params.Messages, anthropic.NewUserMessage(content...))
			}
		case prompt.RoleAssistant:
			content := assistantBlocks(m)
			if len(content) > 0 {
				params.Messages = append(params.Messages, anthropic.NewAssistantMessage(content...))
			}
		case prompt.RoleTool:
			var content []anthropic.ContentBlockParamUnion
			for _, block := range m.Blocks {
				if tr, ok := block.(prompt.ToolResultBlock); ok {
					content = append(content, anthropic.NewToolResultBlock(tr.ToolUseID, stringifyResult(tr.Content), tr.IsError))
				}
			}
			if len(content) > 0 {
				params.Messages = append(params.Messages, anthropic.NewUserMessage(content...))
			}
		default:
			return anthropic.MessageNewParams{}, &prompt.TransformError{Field: "role", Message: fmt.Sprintf("unknown role %q", m.Role)}
		}
	}

	if len(req.Actions) > 0 {
		params.Tools = buildTools(req.Actions)
		if choice := toolChoice(req.ToolChoice); choice != nil {
			params.ToolChoice = *choice
		}
	}

	// There is no native structured-output switch; the schema rides as a
	// trailing system block demanding conforming JSON.
	if req.OutputSchema != nil {
		schema, err := json.Marshal(req.OutputSchema)
		if err != nil {
			return anthropic.MessageNewParams{}, &prompt.TransformError{Field: "output_schema", Message: err.Error()}
		}
		params.System = append(params.System, anthropic.TextBlockParam{
			Text: "Respond only with a JSON object conforming to this JSON schema, with no surrounding prose:\n" + string(schema),
		})
	}
	return params, nil
}

func userBlocks(blocks []prompt.ContentBlock) ([]anthropic.ContentBlockParamUnion, error) {
	var content []anthropic.ContentBlockParamUnion
	for _, block := range blocks {
		switch b := block.(type) {
		case prompt.TextBlock:
			if b.Text != "" {
				content = append(content, anthropic.NewTextBlock(b.Text))
			}
		case prompt.ImageBlock:
			if b.Source.Type == prompt.SourceBase64 {
				content = append(content, anthropic.NewImageBlockBase64(b.Source.MediaType, b.Source.Data))
			} else {
				content = append(content, anthropic.ContentBlockParamUnion{
					OfImage: &anthropic.ImageBlockParam{
						Source: anthropic.ImageBlockParamSourceUnion{
							OfURL: &anthropic.URLImageSourceParam{URL: b.Source.URL},
						},
					},
				})
			}
		case prompt.DocumentBlock:
			doc := &anthropic.DocumentBlockParam{}
			if b.Source.Type == prompt.SourceBase64 {
				doc.Source = anthropic.DocumentBlockParamSourceUnion{
					OfBase64: &anthropic.Base64PDFSourceParam{Data: b.Source.Data},
				}
			} else {
				doc.Source = anthropic.DocumentBlockParamSourceUnion{
					OfURL: &anthropic.URLPDFSourceParam{URL: b.Source.URL},
				}
			}
			content = append(content, anthropic.ContentBlockParamUnion{OfDocument: doc})
		default:
			return nil, &prompt.TransformError{Field: "content", Message: fmt.Sprintf("unsupported user content block %T", block)}
		}
	}
	return content, nil
}

func assistantBlocks(m prompt.Message) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	if text := m.Text(); text != "" {
		content = append(content, anthropic.NewTextBlock(text))
	}
	for _, call := range m.RequestedActions {
		var input any
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
				input = call.Arguments
			}
		} else {
			input = map[string]any{}
		}
		content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
	}
	return content
}

func buildTools(actions []prompt.ActionSchema) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(actions))
	for i, action := range actions {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if action.Parameters != nil {
			if properties, ok := action.Parameters["properties"]; ok {
				inputSchema.Properties = properties
			}
			inputSchema.Required = stringSlice(action.Parameters["required"])
		}
		tool := anthropic.ToolUnionParamOfTool(inputSchema, action.Name)
		if action.Description != "" && tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(action.Description)
		}
		tools[i] = tool
	}
	return tools
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

func toolChoice(tc prompt.ToolChoice) *anthropic.ToolChoiceUnionParam {
	if tc.Name != "" {
		return &anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: tc.Name}}
	}
	switch tc.Mode {
	case "auto":
		return &anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	case "required":
		return &anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case "none":
		return &anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
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

// generateSync issues a non-streaming call and normalizes the result.
func (p *Provider) generateSync(ctx context.Context, params anthropic.MessageNewParams, jsonOutput bool) (*provider.Response, error) {
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &provider.TransportError{Provider: "anthropic", Err: err}
	}
	msg := parseMessage(resp)
	if jsonOutput {
		msg.ContentType = prompt.ContentTypeJSON
	}
	return &provider.Response{
		Message:     msg,
		RawRequest:  params,
		RawResponse: resp.RawJSON(),
		Usage:       usageFromMessage(resp.Usage),
	}, nil
}

// generateStreaming consumes the event stream, forwarding text deltas and
// accumulating the full message for the final parse.
func (p *Provider) generateStreaming(ctx context.Context, params anthropic.MessageNewParams, jsonOutput bool, onChunk provider.StreamHandler) (*provider.Response, error) {
	stream := p.client.Messages.NewStreaming(ctx, params)

	acc := anthropic.Message{}
	partial := prompt.Message{Role: prompt.RoleAssistant, ContentType: prompt.ContentTypeText}

	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, &provider.TransportError{Provider: "anthropic", Err: err}
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				partial.AppendText(delta.Text)
				onChunk(provider.StreamChunk{Message: &partial, Delta: delta.Text}, provider.StreamUpdate)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return &provider.Response{Message: partial}, &provider.TransportError{Provider: "anthropic", Err: err}
	}

	msg := parseMessage(&acc)
	if jsonOutput {
		msg.ContentType = prompt.ContentTypeJSON
	}
	return &provider.Response{
		Message:    msg,
		RawRequest: params,
		Usage:      usageFromMessage(acc.Usage),
	}, nil
}

// parseMessage folds response content blocks into one assistant message.
func parseMessage(resp *anthropic.Message) prompt.Message {
	msg := prompt.Message{Role: prompt.RoleAssistant, GenerationID: resp.ID, ContentType: prompt.ContentTypeText}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			tb := block.AsText()
			if tb.Text != "" {
				msg.AppendText(tb.Text)
			}
		case "tool_use":
			tu := block.AsToolUse()
			args := ""
			if tu.Input != nil {
				if b, err := json.Marshal(tu.Input); err == nil {
					args = string(b)
				}
			}
			msg.RequestedActions = append(msg.RequestedActions, prompt.ActionCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: args,
			})
		}
	}
	return msg
}

// usageFromMessage normalizes token accounting. The API reports no total;
// it is computed here so downstream accounting sees a consistent shape.
// Cache reads and cache writes both count as cached tokens.
func usageFromMessage(u anthropic.Usage) provider.Usage {
	return provider.Usage{
		InputTokens:  int(u.InputTokens),
		OutputTokens: int(u.OutputTokens),
		TotalTokens:  int(u.InputTokens + u.OutputTokens),
		CachedTokens: int(u.CacheReadInputTokens + u.CacheCreationInputTokens),
	}
}
