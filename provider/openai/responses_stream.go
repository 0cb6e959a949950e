package openai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// responsesEvent is the envelope of one Responses API SSE event. Only the
// fields the state machine consumes are decoded.
type responsesEvent struct {
	Type     string             `json:"type"`
	ItemID   string             `json:"item_id"`
	Delta    string             `json:"delta"`
	Text     string             `json:"text"`
	Item     *responsesItem     `json:"item"`
	Response *responsesResponse `json:"response"`
}

// responsesStreamState accumulates one streamed generation. Text deltas are
// tracked per output item so a late output_text.done carrying the full text
// can correct the accumulated state.
type responsesStreamState struct {
	msg       prompt.Message
	itemOrder []string
	itemText  map[string]string
	usage     provider.Usage
	finished  bool
	onChunk   provider.StreamHandler
}

func newResponsesStreamState(onChunk provider.StreamHandler) *responsesStreamState {
	return &responsesStreamState{
		msg:      prompt.Message{Role: prompt.RoleAssistant, ContentType: prompt.ContentTypeText},
		itemText: map[string]string{},
		onChunk:  onChunk,
	}
}

func (s *responsesStreamState) handle(raw json.RawMessage) error {
	if s.finished {
		return nil
	}
	var ev responsesEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return &provider.TransportError{Provider: "openai", Payload: raw, Err: err}
	}

	switch ev.Type {
	case "response.created", "response.in_progress":
		if ev.Response != nil && s.msg.GenerationID == "" {
			s.msg.GenerationID = ev.Response.ID
		}
	case "response.output_item.added":
		if ev.Item != nil && ev.Item.Type == "message" {
			s.itemOrder = append(s.itemOrder, ev.Item.ID)
			s.itemText[ev.Item.ID] = ""
		}
	case "response.output_text.delta":
		s.itemText[ev.ItemID] += ev.Delta
		s.rebuildText()
		s.onChunk(provider.StreamChunk{Message: &s.msg, Delta: ev.Delta}, provider.StreamUpdate)
	case "response.output_text.done":
		// The done event carries the authoritative full text for the item.
		s.itemText[ev.ItemID] = ev.Text
		s.rebuildText()
		s.onChunk(provider.StreamChunk{Message: &s.msg}, provider.StreamUpdate)
	case "response.output_item.done":
		if ev.Item != nil && ev.Item.Type == "function_call" {
			s.msg.RequestedActions = append(s.msg.RequestedActions, prompt.ActionCall{
				ID:        ev.Item.CallID,
				Name:      ev.Item.Name,
				Arguments: ev.Item.Arguments,
			})
		}
	case "response.completed":
		s.finished = true
		if ev.Response != nil {
			if s.msg.GenerationID == "" {
				s.msg.GenerationID = ev.Response.ID
			}
			s.usage = provider.UsageFromOpenAI(ev.Response.Usage)
		}
	}
	// function_call_arguments deltas are ignored: the completed item carries
	// the full argument string.
	return nil
}

// message returns the accumulated message with its content type resolved.
// Called on completion and on mid-stream failure alike, so partial state
// carries the same content type a finished generation would.
func (s *responsesStreamState) message(jsonOutput bool) prompt.Message {
	s.msg.ContentType = messageContentType(jsonOutput, s.msg)
	return s.msg
}

func (s *responsesStreamState) rebuildText() {
	var parts []string
	for _, id := range s.itemOrder {
		parts = append(parts, s.itemText[id])
	}
	s.msg.SetText(strings.Join(parts, ""))
}

// responsesStreaming runs the SSE stream through the state machine and
// returns the finalized message.
func (p *Provider) responsesStreaming(ctx context.Context, wire *responsesRequest, payload []byte, jsonOutput bool, onChunk provider.StreamHandler) (*provider.Response, error) {
	state := newResponsesStreamState(onChunk)
	if err := p.transport.Stream(ctx, payload, state.handle); err != nil {
		return &provider.Response{Message: state.message(jsonOutput), RawRequest: wire, Usage: state.usage}, err
	}
	return &provider.Response{
		Message:    state.message(jsonOutput),
		RawRequest: wire,
		Usage:      state.usage,
	}, nil
}
