package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetInstructions(t *testing.T) {
	t.Run("string inserts leading system message", func(t *testing.T) {
		p := &Prompt{}
		p.AddMessage(NewUser("hi"))
		require.NoError(t, p.SetInstructions("be brief"))

		msgs := p.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, RoleSystem, msgs[0].Role)
		assert.Equal(t, "be brief", msgs[0].Text())
	})

	t.Run("resetting replaces instead of duplicating", func(t *testing.T) {
		p := &Prompt{}
		require.NoError(t, p.SetInstructions("first"))
		require.NoError(t, p.SetInstructions("second"))

		msgs := p.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "second", msgs[0].Text())
		assert.Equal(t, []string{"second"}, p.Instructions())
	})

	t.Run("string list keeps separate blocks", func(t *testing.T) {
		p := &Prompt{}
		require.NoError(t, p.SetInstructions([]string{"a", "b"}))
		msgs := p.Messages()
		require.Len(t, msgs, 1)
		assert.Len(t, msgs[0].Blocks, 2)
	})

	t.Run("nil clears", func(t *testing.T) {
		p := &Prompt{}
		require.NoError(t, p.SetInstructions("x"))
		require.NoError(t, p.SetInstructions(nil))
		assert.Empty(t, p.Messages())
		assert.Empty(t, p.Instructions())
	})

	t.Run("non-string list items rejected", func(t *testing.T) {
		p := &Prompt{}
		err := p.SetInstructions([]any{"ok", 7})
		var terr *TransformError
		require.ErrorAs(t, err, &terr)
	})
}

func TestSetMessages(t *testing.T) {
	p := &Prompt{}
	require.NoError(t, p.SetInstructions("sys"))
	p.SetMessages([]Message{
		NewSystem("stray system"),
		NewUser("hello"),
	})

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	// Instructions own the system slot; the stray system message is dropped.
	assert.Equal(t, "sys", msgs[0].Text())
	assert.Equal(t, RoleUser, msgs[1].Role)
}

func TestLastMessage(t *testing.T) {
	p := &Prompt{}
	assert.Equal(t, Message{}, p.LastMessage())
	p.AddMessage(NewUser("a"))
	p.AddMessage(NewAssistant("b"))
	assert.Equal(t, "b", p.LastMessage().Text())
}
