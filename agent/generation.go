package agent

import (
	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// Generation is the result of one (possibly multi-turn) generation run.
type Generation struct {
	// Message is the final assistant message.
	Message prompt.Message

	// Messages is the full conversation including instructions, assistant
	// tool-call turns and tool results.
	Messages []prompt.Message

	// Response is the provider response of the final turn.
	Response *provider.Response

	// Usage aggregates token accounting across all turns.
	Usage provider.Usage

	// Turns counts provider calls made for this generation.
	Turns int
}

// Text returns the final message's text content.
func (g *Generation) Text() string { return g.Message.Text() }

// JSONObject decodes the final message as JSON, nil when not parseable.
func (g *Generation) JSONObject() any { return g.Message.JSONObject() }
