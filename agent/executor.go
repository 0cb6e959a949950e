package agent

import (
	"context"
	"sync"
	"time"

	"github.com/quiltt/activeagent-go/action"
	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// executeActions runs one turn's batch of requested actions and returns a
// tool-result message per call, in request order regardless of completion
// order. Errors raised here are routed through the handler chain: an unknown
// action name or an unclaimed execution failure aborts the batch with no
// tool results, while a claimed execution failure becomes an error-flagged
// result the model can react to.
func (a *Agent) executeActions(ctx context.Context, calls []prompt.ActionCall) ([]prompt.Message, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	// Resolve the whole batch up front so a misnamed call cannot leave side
	// effects from its siblings behind.
	resolved := make([]action.Action, n)
	for i, call := range calls {
		act, err := a.registry.Get(call.Name)
		if err != nil {
			a.logger.Error("agent.action.unknown", "agent", a.name, "action", call.Name, "call_id", call.ID)
			a.dispatchError(err)
			return nil, err
		}
		resolved[i] = act
	}

	results := make([]prompt.Message, n)
	errs := make([]error, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0], errs[0] = a.runAction(ctx, resolved[0], calls[0])
		return a.settleResults(calls, results, errs, nil)
	}

	maxPar := a.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call prompt.ActionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx], errs[idx] = a.runAction(ctx, resolved[idx], call)
		}(i, calls[i])
	}
	wg.Wait()

	a.logger.Debug("agent.actions.batch.complete",
		"agent", a.name,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return a.settleResults(calls, results, errs, ctx.Err())
}

// settleResults turns the raw per-call outcomes into ordered tool-result
// messages. Execution failures go through the handler chain; the first
// unclaimed one aborts the batch so nothing partial reaches the model. A
// cancelled batch aborts the same way, as a transport failure.
func (a *Agent) settleResults(calls []prompt.ActionCall, results []prompt.Message, errs []error, ctxErr error) ([]prompt.Message, error) {
	if ctxErr != nil {
		terr := &provider.TransportError{Provider: a.provider.Info().Provider, Err: ctxErr}
		a.dispatchError(terr)
		return nil, terr
	}
	ordered := make([]prompt.Message, 0, len(calls))
	for i, rm := range results {
		if errs[i] != nil {
			if !a.dispatchError(errs[i]) {
				a.logger.Error("agent.action.abort", "agent", a.name, "action", calls[i].Name, "call_id", calls[i].ID, "error", errs[i].Error())
				return nil, errs[i]
			}
			rm = prompt.NewToolFailure(calls[i].ID, calls[i].Name, errs[i].Error())
		}
		ordered = append(ordered, rm)
	}
	return ordered, nil
}

// runAction executes one call and renders a successful outcome as a
// tool-result message. Argument parsing is best effort; panic recovery lives
// inside the action implementations, with registry misses handled by the
// caller.
func (a *Agent) runAction(ctx context.Context, act action.Action, call prompt.ActionCall) (prompt.Message, error) {
	actx := action.NewContext(ctx, call.ID, a.name, a.logger)
	start := time.Now()

	result, err := act.Execute(actx, call.ArgumentsMap())
	a.logger.Info("agent.action.executed",
		"agent", a.name,
		"action", call.Name,
		"call_id", call.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)
	if err != nil {
		return prompt.Message{}, err
	}
	return prompt.NewToolResult(call.ID, call.Name, result), nil
}
