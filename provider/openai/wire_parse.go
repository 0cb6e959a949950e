package openai

import (
	"encoding/json"
	"fmt"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// chatWireResponse is the decoded chat completions response body.
type chatWireResponse struct {
	ID      string           `json:"id"`
	Choices []chatWireChoice `json:"choices"`
	Usage   map[string]any   `json:"usage"`
	Error   *responsesError  `json:"error"`
}

type chatWireChoice struct {
	FinishReason string          `json:"finish_reason"`
	Message      chatWireMessage `json:"message"`
	Delta        chatWireMessage `json:"delta"`
}

type chatWireMessage struct {
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	ToolCalls []chatWireToolCall `json:"tool_calls"`
}

type chatWireToolCall struct {
	Index    int64                `json:"index"`
	ID       string               `json:"id"`
	Function ChatToolCallFunction `json:"function"`
}

// ParseChatResponse normalizes a non-streaming chat completions body into the
// common response shape.
func ParseChatResponse(providerName string, raw json.RawMessage, jsonOutput bool) (*provider.Response, error) {
	var decoded chatWireResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &provider.TransportError{Provider: providerName, Payload: raw, Err: err}
	}
	if decoded.Error != nil {
		return nil, &provider.TransportError{Provider: providerName, Payload: raw, Err: fmt.Errorf("%s: %s", decoded.Error.Code, decoded.Error.Message)}
	}
	if len(decoded.Choices) == 0 {
		return nil, &provider.TransportError{Provider: providerName, Payload: raw, Err: fmt.Errorf("no choices returned")}
	}
	choice := decoded.Choices[0]

	msg := prompt.Message{Role: prompt.RoleAssistant, GenerationID: decoded.ID, Raw: string(raw)}
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
		RawResponse: raw,
		Usage:       provider.UsageFromOpenAI(decoded.Usage),
	}, nil
}

// ChatStreamState aggregates streamed chat completion chunks: text deltas
// append to the message, tool call fragments merge by index, usage lands on
// the final chunk.
type ChatStreamState struct {
	Provider string

	msg     prompt.Message
	usage   provider.Usage
	calls   map[int64]*aggCall
	order   []int64
	onChunk provider.StreamHandler
}

// NewChatStreamState readies stream aggregation for one generation.
func NewChatStreamState(providerName string, onChunk provider.StreamHandler) *ChatStreamState {
	return &ChatStreamState{
		Provider: providerName,
		msg:      prompt.Message{Role: prompt.RoleAssistant, ContentType: prompt.ContentTypeText},
		calls:    map[int64]*aggCall{},
		onChunk:  onChunk,
	}
}

// Handle consumes one SSE data event. Pass it to Transport.Stream.
func (s *ChatStreamState) Handle(raw json.RawMessage) error {
	var ck chatWireResponse
	if err := json.Unmarshal(raw, &ck); err != nil {
		return &provider.TransportError{Provider: s.Provider, Payload: raw, Err: err}
	}
	if ck.Error != nil {
		return &provider.TransportError{Provider: s.Provider, Payload: raw, Err: fmt.Errorf("%s: %s", ck.Error.Code, ck.Error.Message)}
	}
	if s.msg.GenerationID == "" {
		s.msg.GenerationID = ck.ID
	}
	if len(ck.Usage) > 0 {
		s.usage = provider.UsageFromOpenAI(ck.Usage)
	}
	for _, choice := range ck.Choices {
		if choice.Delta.Content != "" {
			s.msg.AppendText(choice.Delta.Content)
			if s.onChunk != nil {
				s.onChunk(provider.StreamChunk{Message: &s.msg, Delta: choice.Delta.Content}, provider.StreamUpdate)
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			ac, ok := s.calls[tc.Index]
			if !ok {
				ac = &aggCall{}
				s.calls[tc.Index] = ac
				s.order = append(s.order, tc.Index)
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
	return nil
}

// Finalize folds aggregated tool calls into the message and returns the
// normalized response. Call once, after the stream ends.
func (s *ChatStreamState) Finalize(jsonOutput bool) *provider.Response {
	for _, idx := range s.order {
		ac := s.calls[idx]
		s.msg.RequestedActions = append(s.msg.RequestedActions, prompt.ActionCall{ID: ac.id, Name: ac.name, Arguments: ac.args})
	}
	s.msg.ContentType = messageContentType(jsonOutput, s.msg)
	return &provider.Response{Message: s.msg, Usage: s.usage}
}
