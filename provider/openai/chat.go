package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// so complete calls can be reconstructed when the finish reason arrives.
type aggCall struct{ id, name, args string }

// generateChat drives one Chat Completions call, sync or streamed.
func (p *Provider) generateChat(ctx context.Context, req provider.Request, onChunk provider.StreamHandler) (*provider.Response, error) {
	params, err := p.buildChatParams(req)
	if err != nil {
		return nil, err
	}
	jsonOutput := wantsJSONOutput(req)
	if req.Stream && onChunk != nil {
		return p.chatStreaming(ctx, params, jsonOutput, onChunk)
	}
	return p.chatSync(ctx, params, jsonOutput)
}

// buildChatParams assembles the SDK request from the common format.
func (p *Provider) buildChatParams(req provider.Request) (openai.ChatCompletionNewParams, error) {
	messages, err := buildChatMessages(req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               req.Options.String("model", p.opts.Model),
		Temperature:         openai.Float(req.Options.Float("temperature", p.opts.Temperature)),
		MaxCompletionTokens: openai.Int(req.Options.Int("max_tokens", p.opts.MaxCompletionTokens)),
	}
	if tier := req.Options.String("service_tier", p.opts.ServiceTier); tier != "" {
		params.ServiceTier = openai.ChatCompletionNewParamsServiceTier(tier)
	}

	if len(req.Actions) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Actions))
		for i, action := range req.Actions {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        action.Name,
					Description: openai.String(action.Description),
					Parameters:  action.Parameters,
				},
			}
		}
		params.Tools = tools

		switch {
		case req.ToolChoice.Name != "":
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
					Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: req.ToolChoice.Name},
				},
			}
		case req.ToolChoice.Mode != "":
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openai.String(req.ToolChoice.Mode),
			}
		}
	}

	if req.OutputSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "output",
					Schema: req.OutputSchema,
					Strict: openai.Bool(true),
				},
			},
		}
	} else if req.Options.String("response_format", "") == "json_object" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params, nil
}

// buildChatMessages converts the merged conversation into SDK messages.
// Instructions become a leading developer message; tool results become tool
// messages correlated by call id.
func buildChatMessages(req provider.Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if len(req.Instructions) > 0 {
		messages = append(messages, openai.DeveloperMessage(strings.Join(req.Instructions, "\n\n")))
	}

	for _, m := range prompt.MergeSameRole(req.Messages) {
		switch m.Role {
		case prompt.RoleSystem:
			if len(req.Instructions) > 0 {
				continue // instructions already occupy the developer slot
			}
			messages = append(messages, openai.DeveloperMessage(m.Text()))
		case prompt.RoleUser:
			if multimodal(m.Blocks) {
				parts, err := userContentParts(m.Blocks)
				if err != nil {
					return nil, err
				}
				messages = append(messages, openai.UserMessage(parts))
			} else {
				messages = append(messages, openai.UserMessage(m.Text()))
			}
		case prompt.RoleAssistant:
			if len(m.RequestedActions) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Text()))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(m.RequestedActions))
			for i, call := range m.RequestedActions {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   call.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				}
			}
			assistant := openai.ChatCompletionAssistantMessageParam{Role: "assistant", ToolCalls: toolCalls}
			if text := m.Text(); text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case prompt.RoleTool:
			for _, block := range m.Blocks {
				if tr, ok := block.(prompt.ToolResultBlock); ok {
					messages = append(messages, openai.ToolMessage(stringifyResult(tr.Content), tr.ToolUseID))
				}
			}
		default:
			return nil, &prompt.TransformError{Field: "role", Message: fmt.Sprintf("unknown role %q", m.Role)}
		}
	}
	return messages, nil
}

func multimodal(blocks []prompt.ContentBlock) bool {
	for _, b := range blocks {
		switch b.(type) {
		case prompt.ImageBlock, prompt.DocumentBlock:
			return true
		}
	}
	return false
}

func userContentParts(blocks []prompt.ContentBlock) ([]openai.ChatCompletionContentPartUnionParam, error) {
	var parts []openai.ChatCompletionContentPartUnionParam
	for _, block := range blocks {
		switch b := block.(type) {
		case prompt.TextBlock:
			parts = append(parts, openai.TextContentPart(b.Text))
		case prompt.ImageBlock:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: sourceURL(b.Source),
			}))
		case prompt.DocumentBlock:
			parts = append(parts, openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
				FileData: openai.String(sourceURL(b.Source)),
			}))
		default:
			return nil, &prompt.TransformError{Field: "content", Message: fmt.Sprintf("unsupported user content block %T", block)}
		}
	}
	return parts, nil
}

// sourceURL renders a media source as the URL form the chat API expects,
// re-encoding base64 sources as data URIs.
func sourceURL(src prompt.MediaSource) string {
	if src.Type == prompt.SourceBase64 {
		return fmt.Sprintf("data:%s;base64,%s", src.MediaType, src.Data)
	}
	return src.URL
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

func wantsJSONOutput(req provider.Request) bool {
	return req.OutputSchema != nil || strings.HasPrefix(req.Options.String("response_format", ""), "json")
}

// chatSync issues a non-streaming completion and normalizes the result.
func (p *Provider) chatSync(ctx context.Context, params openai.ChatCompletionNewParams, jsonOutput bool) (*provider.Response, error) {
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &provider.TransportError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &provider.TransportError{Provider: "openai", Err: fmt.Errorf("no choices returned")}
	}
	choice := resp.Choices[0]

	msg := prompt.Message{Role: prompt.RoleAssistant, GenerationID: resp.ID, Raw: choice.Message.RawJSON()}
	if choice.Message.Content != "" {
		msg.SetText(choice.Message.Content)
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.RequestedActions = append(msg.RequestedActions, prompt.ActionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	msg.ContentType = messageContentType(jsonOutput, msg)

	return &provider.Response{
		Message:     msg,
		RawRequest:  params,
		RawResponse: resp.RawJSON(),
		Usage:       usageFromCompletion(resp.Usage),
	}, nil
}

// chatStreaming consumes the SSE stream, forwarding text deltas to onChunk
// and reconstructing tool calls from their aggregated fragments.
func (p *Provider) chatStreaming(ctx context.Context, params openai.ChatCompletionNewParams, jsonOutput bool, onChunk provider.StreamHandler) (*provider.Response, error) {
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	msg := prompt.Message{Role: prompt.RoleAssistant, ContentType: prompt.ContentTypeText}
	var usage provider.Usage
	toolAgg := map[int64]*aggCall{}
	order := []int64{}

	for stream.Next() {
		ck := stream.Current()
		if msg.GenerationID == "" {
			msg.GenerationID = ck.ID
		}
		if ck.Usage.TotalTokens > 0 || ck.Usage.PromptTokens > 0 {
			usage = usageFromCompletion(ck.Usage)
		}
		for _, choice := range ck.Choices {
			if choice.Delta.Content != "" {
				msg.AppendText(choice.Delta.Content)
				onChunk(provider.StreamChunk{Message: &msg, Delta: choice.Delta.Content}, provider.StreamUpdate)
			}
			for _, tc := range choice.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}
		}
	}
	if err := stream.Err(); err != nil {
		return &provider.Response{Message: msg, Usage: usage}, &provider.TransportError{Provider: "openai", Err: err}
	}

	for _, idx := range order {
		ac := toolAgg[idx]
		msg.RequestedActions = append(msg.RequestedActions, prompt.ActionCall{ID: ac.id, Name: ac.name, Arguments: ac.args})
	}
	msg.ContentType = messageContentType(jsonOutput, msg)

	return &provider.Response{
		Message:    msg,
		RawRequest: params,
		Usage:      usage,
	}, nil
}

func messageContentType(jsonOutput bool, msg prompt.Message) string {
	if jsonOutput {
		return prompt.ContentTypeJSON
	}
	if len(msg.Blocks) > 1 {
		return prompt.ContentTypeMultipart
	}
	return prompt.ContentTypeText
}

func usageFromCompletion(u openai.CompletionUsage) provider.Usage {
	usage := provider.Usage{
		InputTokens:     int(u.PromptTokens),
		OutputTokens:    int(u.CompletionTokens),
		TotalTokens:     int(u.TotalTokens),
		CachedTokens:    int(u.PromptTokensDetails.CachedTokens),
		ReasoningTokens: int(u.CompletionTokensDetails.ReasoningTokens),
		AudioTokens:     int(u.PromptTokensDetails.AudioTokens + u.CompletionTokensDetails.AudioTokens),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	return usage
}
