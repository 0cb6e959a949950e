package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltt/activeagent-go/action"
	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
	"github.com/quiltt/activeagent-go/provider/mock"
)

func TestGenerateText(t *testing.T) {
	p := mock.NewProvider("m")
	p.AddResponse("hello", "hi there")
	a, err := New("helper", p)
	require.NoError(t, err)

	gen, err := a.GenerateText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", gen.Text())
	assert.Equal(t, 1, gen.Turns)
	require.Len(t, gen.Messages, 2)
	assert.Equal(t, prompt.RoleUser, gen.Messages[0].Role)
	assert.Equal(t, prompt.RoleAssistant, gen.Messages[1].Role)
}

func TestGenerateToolLoop(t *testing.T) {
	p := mock.NewProvider("m")
	p.QueueActionCall("call_1", "lookup", `{"q":"tides"}`)
	p.QueueText("high tide at noon")

	var gotArgs map[string]any
	lookup := action.NewFunction("lookup", "looks things up",
		map[string]any{"type": "object"},
		func(actx *action.Context, args map[string]any) (any, error) {
			gotArgs = args
			return "tide table", nil
		})

	a, err := New("helper", p, WithActions(lookup))
	require.NoError(t, err)

	gen, err := a.GenerateText(context.Background(), "when is high tide?")
	require.NoError(t, err)
	assert.Equal(t, "high tide at noon", gen.Text())
	assert.Equal(t, 2, gen.Turns)
	assert.Equal(t, map[string]any{"q": "tides"}, gotArgs)

	// user, assistant tool call, tool result, final assistant.
	require.Len(t, gen.Messages, 4)
	assert.Equal(t, prompt.RoleTool, gen.Messages[2].Role)
	assert.Equal(t, "call_1", gen.Messages[2].ActionID)

	// The second provider call saw the tool result.
	reqs := p.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Equal(t, prompt.RoleTool, last.Role)
}

func TestGenerateUsageAggregatesAcrossTurns(t *testing.T) {
	p := mock.NewProvider("m")
	p.QueueActionCall("c1", "noop", "{}")
	p.QueueText("ok")
	a, err := New("helper", p, WithActions(echoAction("noop")))
	require.NoError(t, err)

	gen, err := a.GenerateText(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.Turns)
	// Mock reports usage per call; the generation sums both turns.
	assert.Greater(t, gen.Usage.TotalTokens, gen.Response.Usage.TotalTokens)
}

func TestGenerateMaxTurns(t *testing.T) {
	p := mock.NewProvider("m")
	for i := 0; i < 5; i++ {
		p.QueueActionCall("c", "noop", "{}")
	}
	a, err := New("helper", p, WithActions(echoAction("noop")), WithMaxTurns(3))
	require.NoError(t, err)

	gen, err := a.GenerateText(context.Background(), "loop forever")
	var mte *MaxTurnsError
	require.ErrorAs(t, err, &mte)
	assert.Equal(t, 3, mte.Limit)
	assert.Equal(t, 3, gen.Turns)
	assert.Equal(t, 3, p.Calls())
}

func TestGenerateUnknownActionAborts(t *testing.T) {
	p := mock.NewProvider("m")
	p.QueueActionCall("c1", "ghost", "{}")
	a, err := New("helper", p, WithActions(echoAction("real")))
	require.NoError(t, err)

	_, err = a.GenerateText(context.Background(), "go")
	var nfe *action.NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "ghost", nfe.Action)
	assert.Equal(t, 1, p.Calls())
}

func flakyAction() action.Action {
	return action.NewFunction("flaky", "fails every time", map[string]any{"type": "object"},
		func(actx *action.Context, args map[string]any) (any, error) {
			return nil, &action.ExecutionError{Action: "flaky", Message: "backend down", Code: action.CodeExecution}
		})
}

func TestGenerateActionErrorAbortsWhenUnclaimed(t *testing.T) {
	p := mock.NewProvider("m")
	p.QueueActionCall("c1", "flaky", "{}")
	p.QueueText("never reached")

	var seen []error
	a, err := New("helper", p,
		WithActions(flakyAction()),
		WithErrorHandler(func(err error) bool {
			seen = append(seen, err)
			return false
		}),
	)
	require.NoError(t, err)

	gen, err := a.GenerateText(context.Background(), "try it")
	var execErr *action.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "backend down", execErr.Message)

	// The handler chain saw the failure, nobody claimed it, so the
	// generation aborts after one provider call with no tool result.
	require.Len(t, seen, 1)
	assert.ErrorAs(t, seen[0], &execErr)
	assert.Equal(t, 1, p.Calls())
	assert.Empty(t, gen.Messages)
}

func TestGenerateActionErrorRecoveredByHandler(t *testing.T) {
	p := mock.NewProvider("m")
	p.QueueActionCall("c1", "flaky", "{}")
	p.QueueText("recovered")

	a, err := New("helper", p,
		WithActions(flakyAction()),
		WithErrorHandler(func(err error) bool { return true }),
	)
	require.NoError(t, err)

	gen, err := a.GenerateText(context.Background(), "try it")
	require.NoError(t, err)
	assert.Equal(t, "recovered", gen.Text())
	assert.Equal(t, 2, p.Calls())

	// The claimed failure rode back to the model as an error-flagged
	// tool result.
	toolMsg := gen.Messages[2]
	require.Equal(t, prompt.RoleTool, toolMsg.Role)
	tr := toolMsg.Blocks[0].(prompt.ToolResultBlock)
	assert.True(t, tr.IsError)
	assert.Contains(t, tr.Content.(string), "backend down")
}

func TestGenerateInstructions(t *testing.T) {
	t.Run("static instructions reach the provider", func(t *testing.T) {
		p := mock.NewProvider("m")
		a, err := New("helper", p, WithInstructions("always answer in haiku"))
		require.NoError(t, err)

		_, err = a.GenerateText(context.Background(), "hi")
		require.NoError(t, err)
		req := p.Requests()[0]
		assert.Equal(t, []string{"always answer in haiku"}, req.Instructions)
		assert.Equal(t, prompt.RoleSystem, req.Messages[0].Role)
	})

	t.Run("templates render against per-call state", func(t *testing.T) {
		p := mock.NewProvider("m")
		a, err := New("helper", p, WithInstructions("speak {{.language}}"))
		require.NoError(t, err)

		_, err = a.GenerateText(context.Background(), "hi",
			WithTemplateState(map[string]any{"language": "French"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"speak French"}, p.Requests()[0].Instructions)
	})

	t.Run("dynamic sources resolve at generation time", func(t *testing.T) {
		p := mock.NewProvider("m")
		a, err := New("helper", p, WithInstructionSources(
			NewInstructionFromFunc(func(state map[string]any) (string, error) {
				return "tone: formal", nil
			})))
		require.NoError(t, err)

		_, err = a.GenerateText(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, []string{"tone: formal"}, p.Requests()[0].Instructions)
	})

	t.Run("prompt instructions win over agent instructions", func(t *testing.T) {
		p := mock.NewProvider("m")
		a, err := New("helper", p, WithInstructions("agent level"))
		require.NoError(t, err)

		pr := &prompt.Prompt{}
		require.NoError(t, pr.SetInstructions("prompt level"))
		pr.AddMessage(prompt.NewUser("hi"))

		_, err = a.Generate(context.Background(), pr)
		require.NoError(t, err)
		assert.Equal(t, []string{"prompt level"}, p.Requests()[0].Instructions)
	})
}

func TestGenerateOptionLayering(t *testing.T) {
	p := mock.NewProvider("m")
	a, err := New("helper", p,
		WithGlobalOptions(provider.Options{"model": "global", "temperature": 0.1, "top_p": 0.9}),
		WithOptions(provider.Options{"model": "agent"}),
	)
	require.NoError(t, err)

	_, err = a.GenerateText(context.Background(), "hi",
		WithRuntimeOptions(provider.Options{"temperature": 0.7}))
	require.NoError(t, err)

	opts := p.Requests()[0].Options
	assert.Equal(t, "agent", opts["model"])
	assert.Equal(t, 0.7, opts["temperature"])
	assert.Equal(t, 0.9, opts["top_p"])
}

func TestGenerateActionSchemasAdvertised(t *testing.T) {
	p := mock.NewProvider("m")
	a, err := New("helper", p, WithActions(echoAction("lookup")))
	require.NoError(t, err)

	_, err = a.GenerateText(context.Background(), "hi")
	require.NoError(t, err)
	req := p.Requests()[0]
	require.Len(t, req.Actions, 1)
	assert.Equal(t, "lookup", req.Actions[0].Name)
}

func TestGenerateErrorHandlerChain(t *testing.T) {
	p := mock.NewProvider("m")
	p.FailWith(assert.AnError)

	var order []string
	a, err := New("helper", p,
		WithErrorHandler(func(err error) bool {
			order = append(order, "first")
			return true // stops the chain
		}),
		WithErrorHandler(func(err error) bool {
			order = append(order, "second")
			return false
		}),
	)
	require.NoError(t, err)

	_, err = a.GenerateText(context.Background(), "hi")
	// Handlers observe but never suppress the error.
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"first"}, order)
}

func TestGenerateCancelledContext(t *testing.T) {
	p := mock.NewProvider("m")
	a, err := New("helper", p)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.GenerateText(ctx, "hi")
	var terr *provider.TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, terr.Err, context.Canceled)
}
