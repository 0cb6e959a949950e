package openai

import (
	"encoding/json"
	"fmt"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// Wire-level Chat Completions codec. Providers that speak the OpenAI chat
// dialect without the official client (OpenRouter and other compatible
// gateways) build on these types instead of the SDK params.

// ChatRequest is the chat completions request body.
type ChatRequest struct {
	Model          string         `json:"model"`
	Messages       []ChatMessage  `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      *int64         `json:"max_tokens,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
	Tools          []ChatTool     `json:"tools,omitempty"`
	ToolChoice     any            `json:"tool_choice,omitempty"`
	ResponseFormat any            `json:"response_format,omitempty"`
	StreamOptions  map[string]any `json:"stream_options,omitempty"`
	WebSearch      json.RawMessage `json:"web_search_options,omitempty"`

	// Extra carries dialect-specific top-level fields (routing preferences,
	// sampling knobs the base dialect lacks). Merged in at serialize time.
	Extra map[string]any `json:"-"`
}

// MarshalJSON merges Extra into the serialized body. Struct fields win over
// Extra on key collisions.
func (r *ChatRequest) MarshalJSON() ([]byte, error) {
	type plain ChatRequest
	base, err := json.Marshal((*plain)(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	merged := make(map[string]any, len(r.Extra)+8)
	for k, v := range r.Extra {
		merged[k] = v
	}
	var fields map[string]any
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// ChatMessage is one conversation entry. Content is a bare string when the
// message is plain text, a part list otherwise.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
}

// ContentPart is one entry of a multipart message content array.
type ContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *ImageURLPart `json:"image_url,omitempty"`
	File     *FilePart     `json:"file,omitempty"`
}

type ImageURLPart struct {
	URL string `json:"url"`
}

type FilePart struct {
	FileData string `json:"file_data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type ChatToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function ChatToolCallFunction `json:"function"`
}

type ChatToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ChatTool struct {
	Type     string           `json:"type"`
	Function ChatToolFunction `json:"function"`
}

type ChatToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// BuildChatRequest converts a common-format request into the chat wire
// shape. Single-text messages compress to bare string content so the output
// round-trips through ParseChatMessage unchanged.
func BuildChatRequest(req provider.Request, model string, temperature float64, maxTokens int64) (*ChatRequest, error) {
	out := &ChatRequest{
		Model:  req.Options.String("model", model),
		Stream: req.Stream,
	}
	if t := req.Options.Float("temperature", temperature); t > 0 {
		out.Temperature = &t
	}
	if n := req.Options.Int("max_tokens", maxTokens); n > 0 {
		out.MaxTokens = &n
	}

	if len(req.Instructions) > 0 {
		out.Messages = append(out.Messages, systemWireMessage(req.Instructions))
	}
	for _, m := range prompt.MergeSameRole(req.Messages) {
		switch m.Role {
		case prompt.RoleSystem:
			if len(req.Instructions) > 0 {
				continue
			}
			out.Messages = append(out.Messages, ChatMessage{Role: "system", Content: m.Text()})
		case prompt.RoleUser:
			content, err := wireContent(m.Blocks)
			if err != nil {
				return nil, err
			}
			out.Messages = append(out.Messages, ChatMessage{Role: "user", Content: content})
		case prompt.RoleAssistant:
			wm := ChatMessage{Role: "assistant"}
			if text := m.Text(); text != "" {
				wm.Content = text
			}
			for _, call := range m.RequestedActions {
				wm.ToolCalls = append(wm.ToolCalls, ChatToolCall{
					ID:   call.ID,
					Type: "function",
					Function: ChatToolCallFunction{Name: call.Name, Arguments: call.Arguments},
				})
			}
			out.Messages = append(out.Messages, wm)
		case prompt.RoleTool:
			for _, block := range m.Blocks {
				if tr, ok := block.(prompt.ToolResultBlock); ok {
					out.Messages = append(out.Messages, ChatMessage{
						Role:       "tool",
						ToolCallID: tr.ToolUseID,
						Content:    stringifyResult(tr.Content),
					})
				}
			}
		default:
			return nil, &prompt.TransformError{Field: "role", Message: fmt.Sprintf("unknown role %q", m.Role)}
		}
	}

	for _, action := range req.Actions {
		out.Tools = append(out.Tools, ChatTool{
			Type: "function",
			Function: ChatToolFunction{
				Name:        action.Name,
				Description: action.Description,
				Parameters:  action.Parameters,
			},
		})
	}
	switch {
	case req.ToolChoice.Name != "":
		out.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]any{"name": req.ToolChoice.Name},
		}
	case req.ToolChoice.Mode != "":
		out.ToolChoice = req.ToolChoice.Mode
	}

	if req.OutputSchema != nil {
		out.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "output",
				"schema": req.OutputSchema,
				"strict": true,
			},
		}
	} else if req.Options.String("response_format", "") == "json_object" {
		out.ResponseFormat = map[string]any{"type": "json_object"}
	}

	// The web search variant takes an options object that may be empty; the
	// key must still be present to enable it.
	if req.Options.Bool("web_search", false) {
		out.WebSearch = json.RawMessage("{}")
	}
	if req.Stream {
		out.StreamOptions = map[string]any{"include_usage": true}
	}
	return out, nil
}

// systemWireMessage keeps multi-string instructions as distinct text parts
// of a single system message.
func systemWireMessage(instructions []string) ChatMessage {
	if len(instructions) == 1 {
		return ChatMessage{Role: "system", Content: instructions[0]}
	}
	parts := make([]ContentPart, len(instructions))
	for i, s := range instructions {
		parts[i] = ContentPart{Type: "text", Text: s}
	}
	return ChatMessage{Role: "system", Content: parts}
}

// wireContent renders blocks as either a bare string or a part array.
func wireContent(blocks []prompt.ContentBlock) (any, error) {
	if len(blocks) == 1 {
		if tb, ok := blocks[0].(prompt.TextBlock); ok {
			return tb.Text, nil
		}
	}
	var parts []ContentPart
	for _, block := range blocks {
		switch b := block.(type) {
		case prompt.TextBlock:
			parts = append(parts, ContentPart{Type: "text", Text: b.Text})
		case prompt.ImageBlock:
			parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURLPart{URL: sourceURL(b.Source)}})
		case prompt.DocumentBlock:
			parts = append(parts, ContentPart{Type: "file", File: &FilePart{FileData: sourceURL(b.Source), Filename: "document"}})
		default:
			return nil, &prompt.TransformError{Field: "content", Message: fmt.Sprintf("unsupported content block %T", block)}
		}
	}
	return parts, nil
}
