package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

func feedEvents(t *testing.T, state *responsesStreamState, events []string) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, state.handle(json.RawMessage(ev)))
	}
}

func TestResponsesStreamState(t *testing.T) {
	t.Run("text deltas accumulate per item", func(t *testing.T) {
		var deltas []string
		state := newResponsesStreamState(func(chunk provider.StreamChunk, event provider.StreamEvent) {
			deltas = append(deltas, chunk.Delta)
		})

		feedEvents(t, state, []string{
			`{"type":"response.created","response":{"id":"resp_1"}}`,
			`{"type":"response.output_item.added","item":{"id":"msg_1","type":"message"}}`,
			`{"type":"response.output_text.delta","item_id":"msg_1","delta":"Hel"}`,
			`{"type":"response.output_text.delta","item_id":"msg_1","delta":"lo"}`,
			`{"type":"response.output_text.done","item_id":"msg_1","text":"Hello"}`,
			`{"type":"response.completed","response":{"id":"resp_1","usage":{"input_tokens":7,"output_tokens":2,"total_tokens":9}}}`,
		})

		assert.Equal(t, "Hello", state.msg.Text())
		assert.Equal(t, "resp_1", state.msg.GenerationID)
		assert.Equal(t, []string{"Hel", "lo", ""}, deltas)
		assert.Equal(t, 9, state.usage.TotalTokens)
		assert.True(t, state.finished)
	})

	t.Run("done event corrects drifted text", func(t *testing.T) {
		state := newResponsesStreamState(func(provider.StreamChunk, provider.StreamEvent) {})
		feedEvents(t, state, []string{
			`{"type":"response.output_item.added","item":{"id":"msg_1","type":"message"}}`,
			`{"type":"response.output_text.delta","item_id":"msg_1","delta":"Hell"}`,
			`{"type":"response.output_text.done","item_id":"msg_1","text":"Hello world"}`,
		})
		assert.Equal(t, "Hello world", state.msg.Text())
	})

	t.Run("function call items collect on item done", func(t *testing.T) {
		state := newResponsesStreamState(func(provider.StreamChunk, provider.StreamEvent) {})
		feedEvents(t, state, []string{
			`{"type":"response.output_item.added","item":{"id":"fc_1","type":"function_call"}}`,
			`{"type":"response.output_item.done","item":{"id":"fc_1","type":"function_call","call_id":"call_9","name":"get_weather","arguments":"{\"city\":\"Rome\"}"}}`,
		})
		require.Len(t, state.msg.RequestedActions, 1)
		call := state.msg.RequestedActions[0]
		assert.Equal(t, "call_9", call.ID)
		assert.Equal(t, "get_weather", call.Name)
		assert.JSONEq(t, `{"city":"Rome"}`, call.Arguments)
	})

	t.Run("events after completion are ignored", func(t *testing.T) {
		state := newResponsesStreamState(func(provider.StreamChunk, provider.StreamEvent) {})
		feedEvents(t, state, []string{
			`{"type":"response.output_item.added","item":{"id":"msg_1","type":"message"}}`,
			`{"type":"response.output_text.delta","item_id":"msg_1","delta":"done"}`,
			`{"type":"response.completed","response":{"id":"resp_2","usage":{}}}`,
			`{"type":"response.output_text.delta","item_id":"msg_1","delta":"late"}`,
		})
		assert.Equal(t, "done", state.msg.Text())
	})

	t.Run("json content type survives an unfinished stream", func(t *testing.T) {
		state := newResponsesStreamState(func(provider.StreamChunk, provider.StreamEvent) {})
		// No response.completed: the transport dropped mid-generation.
		feedEvents(t, state, []string{
			`{"type":"response.output_item.added","item":{"id":"msg_1","type":"message"}}`,
			`{"type":"response.output_text.delta","item_id":"msg_1","delta":"{\"par"}`,
		})
		partial := state.message(true)
		assert.Equal(t, prompt.ContentTypeJSON, partial.ContentType)
		assert.Equal(t, `{"par`, partial.Text())
	})

	t.Run("interleaved message items keep order", func(t *testing.T) {
		state := newResponsesStreamState(func(provider.StreamChunk, provider.StreamEvent) {})
		feedEvents(t, state, []string{
			`{"type":"response.output_item.added","item":{"id":"a","type":"message"}}`,
			`{"type":"response.output_item.added","item":{"id":"b","type":"message"}}`,
			`{"type":"response.output_text.delta","item_id":"b","delta":"second"}`,
			`{"type":"response.output_text.delta","item_id":"a","delta":"first "}`,
		})
		assert.Equal(t, "first second", state.msg.Text())
	})
}
