package prompt

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a Message. Exactly four values are valid;
// anything else is rejected at construction time.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four accepted roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ParseRole validates a raw role string. Unknown roles fail fast with a
// descriptive error, never silently coerced.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", &TransformError{Field: "role", Message: "unknown role " + quote(s) + " (want system, user, assistant or tool)"}
	}
	return r, nil
}

func quote(s string) string { return `"` + s + `"` }

// Content type values auto-detected from content shape.
const (
	ContentTypeText      = "text/plain"
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/mixed"
)

// ActionCall describes one tool call requested by the model.
type ActionCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON argument payload
}

// ArgumentsMap decodes the raw arguments into a map. Malformed JSON yields an
// empty map rather than an error; argument parsing is best effort.
func (c ActionCall) ArgumentsMap() map[string]any {
	if c.Arguments == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(c.Arguments), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Message is one turn in a conversation, provider agnostic.
type Message struct {
	Role        Role
	Blocks      []ContentBlock
	ContentType string

	// Correlation identifiers back to provider responses and tool calls.
	GenerationID string
	ActionID     string
	ActionName   string

	// RequestedActions holds tool calls the model asked for, in model order.
	RequestedActions []ActionCall

	// Raw is the opaque provider payload this message was parsed from, if any.
	Raw any
}

// New constructs a validated Message from shorthand content. The role must be
// one of the four accepted values and the content any shape NormalizeContent
// accepts. ContentType is detected from the normalized blocks.
func New(role Role, content any) (Message, error) {
	if !role.Valid() {
		return Message{}, &TransformError{Field: "role", Message: "unknown role " + quote(string(role))}
	}
	blocks, err := NormalizeContent(content)
	if err != nil {
		return Message{}, err
	}
	return Message{Role: role, Blocks: blocks, ContentType: detectContentType(blocks)}, nil
}

// NewSystem builds a system message from text.
func NewSystem(text string) Message {
	return Message{Role: RoleSystem, Blocks: []ContentBlock{TextBlock{Text: text}}, ContentType: ContentTypeText}
}

// NewUser builds a user message from text.
func NewUser(text string) Message {
	return Message{Role: RoleUser, Blocks: []ContentBlock{TextBlock{Text: text}}, ContentType: ContentTypeText}
}

// NewAssistant builds an assistant message from text.
func NewAssistant(text string) Message {
	return Message{Role: RoleAssistant, Blocks: []ContentBlock{TextBlock{Text: text}}, ContentType: ContentTypeText}
}

// NewToolResult builds a tool-role message carrying a handler result tagged
// with the originating call.
func NewToolResult(callID, actionName string, result any) Message {
	return Message{
		Role:        RoleTool,
		Blocks:      []ContentBlock{ToolResultBlock{ToolUseID: callID, Content: result}},
		ContentType: ContentTypeText,
		ActionID:    callID,
		ActionName:  actionName,
	}
}

// NewToolFailure builds a tool-role message reporting a failed call. The
// error text rides as the result content with the error flag set so models
// can recover or retry.
func NewToolFailure(callID, actionName, errText string) Message {
	return Message{
		Role:        RoleTool,
		Blocks:      []ContentBlock{ToolResultBlock{ToolUseID: callID, Content: errText, IsError: true}},
		ContentType: ContentTypeText,
		ActionID:    callID,
		ActionName:  actionName,
	}
}

func detectContentType(blocks []ContentBlock) string {
	if len(blocks) == 0 {
		return ContentTypeText
	}
	if len(blocks) == 1 {
		if _, ok := blocks[0].(TextBlock); ok {
			return ContentTypeText
		}
	}
	return ContentTypeMultipart
}

// ActionRequested reports whether the model asked for at least one tool call.
func (m Message) ActionRequested() bool { return len(m.RequestedActions) > 0 }

// Text concatenates all text blocks of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, block := range m.Blocks {
		if tb, ok := block.(TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String()
}

// AppendText appends delta text to the trailing text block, creating one if
// needed. Used during streaming while the message is still open.
func (m *Message) AppendText(delta string) {
	if delta == "" {
		return
	}
	if n := len(m.Blocks); n > 0 {
		if tb, ok := m.Blocks[n-1].(TextBlock); ok {
			tb.Text += delta
			m.Blocks[n-1] = tb
			return
		}
	}
	m.Blocks = append(m.Blocks, TextBlock{Text: delta})
}

// SetText replaces the message content with a single text block.
func (m *Message) SetText(text string) {
	m.Blocks = []ContentBlock{TextBlock{Text: text}}
}

// JSONObject extracts the first JSON value embedded in the message text.
// Model output is parsed leniently: surrounding prose is skipped and parse
// failures return nil rather than an error.
func (m Message) JSONObject() any {
	return ExtractJSON(m.Text())
}

// ExtractJSON scans s for the first complete JSON object or array and decodes
// it. Returns nil if no parseable value is found.
func ExtractJSON(s string) any {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var v any
		if err := dec.Decode(&v); err == nil {
			switch v.(type) {
			case map[string]any, []any:
				return v
			}
		}
	}
	return nil
}

// MergeSameRole collapses consecutive messages of the same role into one
// message with multiple content blocks. Tool-role messages are never merged;
// each carries a distinct call id that must survive as its own message.
func MergeSameRole(messages []Message) []Message {
	var out []Message
	for _, m := range messages {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if m.Role == last.Role && m.Role != RoleTool {
				last.Blocks = append(last.Blocks, m.Blocks...)
				last.ContentType = detectContentType(last.Blocks)
				last.RequestedActions = append(last.RequestedActions, m.RequestedActions...)
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
