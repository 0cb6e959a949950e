// Package prompt holds the provider-agnostic conversation model: validated
// roles, typed content blocks with shorthand normalization, and the Prompt
// aggregate owning the full exchange state for one generation call.
package prompt

// Prompt is the full exchange state for one generation invocation. It is
// exclusively owned by that invocation; the orchestrator mutates it as tool
// results are appended, and it is never shared across concurrent calls.
type Prompt struct {
	messages     []Message
	instructions []string

	// Actions available to the model this turn.
	Actions []ActionSchema
	// ToolChoice directs how the model picks among actions.
	ToolChoice ToolChoice
	// OutputSchema is an optional structured-output directive (JSON schema).
	OutputSchema map[string]any
	// Options is the free-form configuration bag merged from the option
	// layers with runtime level taking precedence.
	Options map[string]any
}

// SetInstructions renders instructions into the leading system message.
// Accepted shapes: string, []string, []any of strings, or nil (clears).
// Setting instructions either inserts or replaces the single leading system
// message, never duplicates it.
func (p *Prompt) SetInstructions(v any) error {
	switch ins := v.(type) {
	case nil:
		p.instructions = nil
		p.syncLeadingSystem()
		return nil
	case string:
		p.instructions = []string{ins}
	case []string:
		p.instructions = append([]string(nil), ins...)
	case []any:
		rendered := make([]string, 0, len(ins))
		for _, item := range ins {
			s, ok := item.(string)
			if !ok {
				return &TransformError{Field: "instructions", Message: "instruction list items must be strings"}
			}
			rendered = append(rendered, s)
		}
		p.instructions = rendered
	default:
		return &TransformError{Field: "instructions", Message: "instructions must be a string, a list of strings, or nil"}
	}
	p.syncLeadingSystem()
	return nil
}

// Instructions returns the currently set instruction strings.
func (p *Prompt) Instructions() []string { return p.instructions }

// syncLeadingSystem enforces the invariant: once instructions are set the
// first message is exactly one system message reflecting them.
func (p *Prompt) syncLeadingSystem() {
	// Drop any existing leading system message first.
	if len(p.messages) > 0 && p.messages[0].Role == RoleSystem {
		p.messages = p.messages[1:]
	}
	if len(p.instructions) == 0 {
		return
	}
	blocks := make([]ContentBlock, 0, len(p.instructions))
	for _, s := range p.instructions {
		blocks = append(blocks, TextBlock{Text: s})
	}
	system := Message{Role: RoleSystem, Blocks: blocks, ContentType: detectContentType(blocks)}
	p.messages = append([]Message{system}, p.messages...)
}

// SetMessages replaces the conversation, re-applying the leading system
// message if instructions were set.
func (p *Prompt) SetMessages(messages []Message) {
	p.messages = nil
	for _, m := range messages {
		if m.Role == RoleSystem && len(p.instructions) > 0 {
			// Instructions own the system slot.
			continue
		}
		p.messages = append(p.messages, m)
	}
	p.syncLeadingSystem()
}

// AddMessage appends one message to the conversation.
func (p *Prompt) AddMessage(m Message) { p.messages = append(p.messages, m) }

// Messages returns the conversation in order.
func (p *Prompt) Messages() []Message { return p.messages }

// LastMessage returns the most recently appended message, or a zero Message.
func (p *Prompt) LastMessage() Message {
	if len(p.messages) == 0 {
		return Message{}
	}
	return p.messages[len(p.messages)-1]
}
