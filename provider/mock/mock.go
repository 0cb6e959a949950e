// Package mock provides a lightweight in-memory provider for tests and
// examples. Responses are scripted: either canned per input text or queued
// turn by turn, which is how multi-turn tool loops are exercised offline.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// Provider is a deterministic provider.Provider implementation.
type Provider struct {
	mu        sync.Mutex
	info      provider.Info
	responses map[string]string
	queue     []prompt.Message
	requests  []provider.Request
	err       error
}

// NewProvider constructs a mock with tool support enabled.
func NewProvider(name string) *Provider {
	return &Provider{
		info:      provider.Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
	}
}

func init() {
	provider.Register("mock", func(cfg map[string]any) (provider.Provider, error) {
		o := provider.Options(cfg)
		return NewProvider(o.String("model", "mock")), nil
	})
}

// AddResponse registers a canned completion for an input text.
func (p *Provider) AddResponse(input, response string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[input] = response
}

// QueueMessage appends a scripted assistant message. Queued messages take
// precedence over canned responses and are consumed in order, so a tool-call
// turn followed by a text turn scripts one full orchestration loop.
func (p *Provider) QueueMessage(msg prompt.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, msg)
}

// QueueText is shorthand for queueing a plain text assistant turn.
func (p *Provider) QueueText(text string) {
	p.QueueMessage(prompt.NewAssistant(text))
}

// QueueActionCall is shorthand for queueing a tool-call turn.
func (p *Provider) QueueActionCall(id, name, arguments string) {
	p.QueueMessage(prompt.Message{
		Role:             prompt.RoleAssistant,
		ContentType:      prompt.ContentTypeText,
		RequestedActions: []prompt.ActionCall{{ID: id, Name: name, Arguments: arguments}},
	})
}

// FailWith makes every subsequent call return err.
func (p *Provider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Requests returns every request seen so far, in call order.
func (p *Provider) Requests() []provider.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]provider.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// Calls reports how many times Generate ran.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info { return p.info }

// Generate implements provider.Provider. Streaming replays the text rune by
// rune before returning the final message.
func (p *Provider) Generate(ctx context.Context, req provider.Request, onChunk provider.StreamHandler) (*provider.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	err := p.err
	var msg prompt.Message
	var scripted bool
	if len(p.queue) > 0 {
		msg = p.queue[0]
		p.queue = p.queue[1:]
		scripted = true
	}
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !scripted {
		input := lastUserText(req.Messages)
		p.mu.Lock()
		full := p.responses[input]
		p.mu.Unlock()
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", input)
		}
		msg = prompt.NewAssistant(full)
	}

	if req.Stream && onChunk != nil {
		partial := prompt.Message{Role: prompt.RoleAssistant, ContentType: prompt.ContentTypeText}
		for _, r := range msg.Text() {
			if err := ctx.Err(); err != nil {
				return nil, &provider.TransportError{Provider: "mock", Err: err}
			}
			partial.AppendText(string(r))
			onChunk(provider.StreamChunk{Message: &partial, Delta: string(r)}, provider.StreamUpdate)
		}
	}

	if msg.GenerationID == "" {
		msg.GenerationID = "mock_" + uuid.NewString()
	}

	text := msg.Text()
	return &provider.Response{
		Message: msg,
		Usage: provider.Usage{
			InputTokens:  len(req.Messages),
			OutputTokens: len(text),
			TotalTokens:  len(req.Messages) + len(text),
		},
	}, nil
}

func lastUserText(messages []prompt.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == prompt.RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}
