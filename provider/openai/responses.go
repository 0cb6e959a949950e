package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// Wire types for the Responses API. The official client covers Chat
// Completions well; the Responses endpoint is spoken at the wire level over
// the shared HTTP transport.

type responsesRequest struct {
	Model           string          `json:"model"`
	Input           []any           `json:"input"`
	Instructions    string          `json:"instructions,omitempty"`
	Temperature     float64         `json:"temperature,omitempty"`
	MaxOutputTokens int64           `json:"max_output_tokens,omitempty"`
	Tools           []responsesTool `json:"tools,omitempty"`
	ToolChoice      any             `json:"tool_choice,omitempty"`
	Text            *responsesText  `json:"text,omitempty"`
	ServiceTier     string          `json:"service_tier,omitempty"`
	Stream          bool            `json:"stream,omitempty"`
}

type responsesMessage struct {
	Role    string             `json:"role"`
	Content []responsesContent `json:"content"`
}

type responsesContent struct {
	Type     string `json:"type"` // input_text, output_text, input_image, input_file
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	FileData string `json:"file_data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type responsesFunctionCall struct {
	Type      string `json:"type"` // function_call
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type responsesFunctionOutput struct {
	Type   string `json:"type"` // function_call_output
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

type responsesTool struct {
	Type        string         `json:"type"` // function
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type responsesText struct {
	Format responsesTextFormat `json:"format"`
}

type responsesTextFormat struct {
	Type   string         `json:"type"` // text, json_object, json_schema
	Name   string         `json:"name,omitempty"`
	Schema map[string]any `json:"schema,omitempty"`
	Strict bool           `json:"strict,omitempty"`
}

type responsesResponse struct {
	ID     string          `json:"id"`
	Output []responsesItem `json:"output"`
	Usage  map[string]any  `json:"usage"`
	Error  *responsesError `json:"error"`
}

type responsesError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type responsesItem struct {
	Type      string             `json:"type"` // message, function_call
	ID        string             `json:"id"`
	Role      string             `json:"role"`
	Content   []responsesContent `json:"content"`
	CallID    string             `json:"call_id"`
	Name      string             `json:"name"`
	Arguments string             `json:"arguments"`
}

// buildResponsesRequest maps the common request onto the Responses wire
// shape. Assistant tool calls and tool results become standalone
// function_call / function_call_output input items.
func (p *Provider) buildResponsesRequest(req provider.Request, stream bool) (*responsesRequest, error) {
	out := &responsesRequest{
		Model:           req.Options.String("model", p.opts.Model),
		Temperature:     req.Options.Float("temperature", p.opts.Temperature),
		MaxOutputTokens: req.Options.Int("max_tokens", p.opts.MaxCompletionTokens),
		ServiceTier:     req.Options.String("service_tier", p.opts.ServiceTier),
		Instructions:    strings.Join(req.Instructions, "\n\n"),
		Stream:          stream,
	}

	for _, m := range prompt.MergeSameRole(req.Messages) {
		switch m.Role {
		case prompt.RoleSystem:
			if out.Instructions != "" {
				continue // instructions already carry the system text
			}
			out.Input = append(out.Input, responsesMessage{
				Role:    "system",
				Content: []responsesContent{{Type: "input_text", Text: m.Text()}},
			})
		case prompt.RoleUser:
			content, err := responsesUserContent(m.Blocks)
			if err != nil {
				return nil, err
			}
			out.Input = append(out.Input, responsesMessage{Role: "user", Content: content})
		case prompt.RoleAssistant:
			if text := m.Text(); text != "" {
				out.Input = append(out.Input, responsesMessage{
					Role:    "assistant",
					Content: []responsesContent{{Type: "output_text", Text: text}},
				})
			}
			for _, call := range m.RequestedActions {
				out.Input = append(out.Input, responsesFunctionCall{
					Type:      "function_call",
					CallID:    call.ID,
					Name:      call.Name,
					Arguments: call.Arguments,
				})
			}
		case prompt.RoleTool:
			for _, block := range m.Blocks {
				if tr, ok := block.(prompt.ToolResultBlock); ok {
					out.Input = append(out.Input, responsesFunctionOutput{
						Type:   "function_call_output",
						CallID: tr.ToolUseID,
						Output: stringifyResult(tr.Content),
					})
				}
			}
		default:
			return nil, &prompt.TransformError{Field: "role", Message: fmt.Sprintf("unknown role %q", m.Role)}
		}
	}

	for _, action := range req.Actions {
		out.Tools = append(out.Tools, responsesTool{
			Type:        "function",
			Name:        action.Name,
			Description: action.Description,
			Parameters:  action.Parameters,
		})
	}
	switch {
	case req.ToolChoice.Name != "":
		out.ToolChoice = map[string]any{"type": "function", "name": req.ToolChoice.Name}
	case req.ToolChoice.Mode != "":
		out.ToolChoice = req.ToolChoice.Mode
	}

	if req.OutputSchema != nil {
		out.Text = &responsesText{Format: responsesTextFormat{
			Type:   "json_schema",
			Name:   "output",
			Schema: req.OutputSchema,
			Strict: true,
		}}
	} else if req.Options.String("response_format", "") == "json_object" {
		out.Text = &responsesText{Format: responsesTextFormat{Type: "json_object"}}
	}
	return out, nil
}

func responsesUserContent(blocks []prompt.ContentBlock) ([]responsesContent, error) {
	var content []responsesContent
	for _, block := range blocks {
		switch b := block.(type) {
		case prompt.TextBlock:
			content = append(content, responsesContent{Type: "input_text", Text: b.Text})
		case prompt.ImageBlock:
			content = append(content, responsesContent{Type: "input_image", ImageURL: sourceURL(b.Source)})
		case prompt.DocumentBlock:
			content = append(content, responsesContent{Type: "input_file", FileData: sourceURL(b.Source), Filename: "document"})
		default:
			return nil, &prompt.TransformError{Field: "content", Message: fmt.Sprintf("unsupported user content block %T", block)}
		}
	}
	return content, nil
}

// generateResponses drives one Responses API call, sync or streamed.
func (p *Provider) generateResponses(ctx context.Context, req provider.Request, onChunk provider.StreamHandler) (*provider.Response, error) {
	stream := req.Stream && onChunk != nil
	wire, err := p.buildResponsesRequest(req, stream)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, &prompt.TransformError{Field: "request", Message: err.Error()}
	}

	jsonOutput := wantsJSONOutput(req)
	if stream {
		return p.responsesStreaming(ctx, wire, payload, jsonOutput, onChunk)
	}

	raw, err := p.transport.Do(ctx, payload)
	if err != nil {
		return nil, err
	}
	var decoded responsesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &provider.TransportError{Provider: "openai", Payload: raw, Err: err}
	}
	if decoded.Error != nil {
		return nil, &provider.TransportError{Provider: "openai", Payload: raw, Err: fmt.Errorf("%s: %s", decoded.Error.Code, decoded.Error.Message)}
	}

	msg := parseResponsesOutput(decoded.ID, decoded.Output)
	msg.Raw = string(raw)
	msg.ContentType = messageContentType(jsonOutput, msg)
	return &provider.Response{
		Message:     msg,
		RawRequest:  wire,
		RawResponse: json.RawMessage(raw),
		Usage:       provider.UsageFromOpenAI(decoded.Usage),
	}, nil
}

// parseResponsesOutput folds the output item list into one assistant
// message: text from message items, action calls from function_call items,
// in arrival order.
func parseResponsesOutput(id string, items []responsesItem) prompt.Message {
	msg := prompt.Message{Role: prompt.RoleAssistant, GenerationID: id}
	for _, item := range items {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				if c.Type == "output_text" {
					msg.AppendText(c.Text)
				}
			}
		case "function_call":
			msg.RequestedActions = append(msg.RequestedActions, prompt.ActionCall{
				ID:        item.CallID,
				Name:      item.Name,
				Arguments: item.Arguments,
			})
		}
	}
	return msg
}
