package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltt/activeagent-go/action"
	"github.com/quiltt/activeagent-go/provider"
	"github.com/quiltt/activeagent-go/provider/mock"
)

func echoAction(name string) *action.FunctionAction {
	return action.NewFunction(name, "echoes its input", map[string]any{"type": "object"},
		func(actx *action.Context, args map[string]any) (any, error) { return args, nil })
}

func TestNewAgent(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		a, err := New("helper", mock.NewProvider("m"))
		require.NoError(t, err)
		assert.Equal(t, "helper", a.Name())
		assert.Equal(t, "mock", a.Provider().Info().Provider)
		assert.Equal(t, 0, a.Actions().Len())
	})

	t.Run("nil provider rejected", func(t *testing.T) {
		_, err := New("helper", nil)
		var cfgErr *provider.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "provider", cfgErr.Field)
	})

	t.Run("non-positive max turns rejected", func(t *testing.T) {
		_, err := New("helper", mock.NewProvider("m"), WithMaxTurns(0))
		var cfgErr *provider.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("duplicate action registration surfaces from New", func(t *testing.T) {
		_, err := New("helper", mock.NewProvider("m"),
			WithActions(echoAction("dup"), echoAction("dup")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("actions become available", func(t *testing.T) {
		a, err := New("helper", mock.NewProvider("m"), WithActions(echoAction("one"), echoAction("two")))
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, a.Actions().Names())
	})
}
