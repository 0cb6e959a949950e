package agent

import (
	"context"
	"time"

	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// generateConfig collects per-call settings.
type generateConfig struct {
	options       provider.Options
	stream        provider.StreamHandler
	templateState map[string]any
}

// GenerateOption configures one Generate call.
type GenerateOption func(*generateConfig)

// WithRuntimeOptions sets the highest-precedence option layer for this call.
func WithRuntimeOptions(opts provider.Options) GenerateOption {
	return func(c *generateConfig) { c.options = opts }
}

// WithStream enables streaming and registers the observer. The observer sees
// one open event, an update per chunk across all turns, and exactly one
// close event carrying the final message.
func WithStream(h provider.StreamHandler) GenerateOption {
	return func(c *generateConfig) { c.stream = h }
}

// WithTemplateState supplies values for instruction templates and dynamic
// instruction sources.
func WithTemplateState(state map[string]any) GenerateOption {
	return func(c *generateConfig) { c.templateState = state }
}

// GenerateText is shorthand for a single user message generation.
func (a *Agent) GenerateText(ctx context.Context, text string, optFns ...GenerateOption) (*Generation, error) {
	p := &prompt.Prompt{}
	p.AddMessage(prompt.NewUser(text))
	return a.Generate(ctx, p, optFns...)
}

// Generate runs the orchestration loop: call the provider, execute any
// requested actions, append their results, and repeat until the model
// responds without action requests or the turn limit trips. The prompt is
// mutated in place; afterwards it holds the complete conversation.
func (a *Agent) Generate(ctx context.Context, p *prompt.Prompt, optFns ...GenerateOption) (*Generation, error) {
	cfg := generateConfig{}
	for _, fn := range optFns {
		fn(&cfg)
	}

	if len(p.Instructions()) == 0 && len(a.instructions) > 0 {
		rendered, err := resolveInstructions(a.instructions, cfg.templateState)
		if err != nil {
			return nil, err
		}
		if err := p.SetInstructions(rendered); err != nil {
			return nil, err
		}
	}
	if len(p.Actions) == 0 && a.registry.Len() > 0 {
		p.Actions = a.registry.Schemas()
	}
	merged := provider.MergeOptions(a.globalOpts, a.options, provider.Options(p.Options), cfg.options)

	streaming := cfg.stream != nil
	observer := &streamObserver{handler: cfg.stream}

	gen := &Generation{}
	start := time.Now()
	a.logger.Debug("agent.generate.start", "agent", a.name, "provider", a.provider.Info().Provider, "stream", streaming)

	for turn := 1; ; turn++ {
		if turn > a.maxTurns {
			err := &MaxTurnsError{Limit: a.maxTurns}
			a.logger.Error("agent.generate.max_turns", "agent", a.name, "limit", a.maxTurns)
			observer.close(&gen.Message)
			a.dispatchError(err)
			return gen, err
		}
		if err := ctx.Err(); err != nil {
			terr := &provider.TransportError{Provider: a.provider.Info().Provider, Err: err}
			observer.close(&gen.Message)
			a.dispatchError(terr)
			return gen, terr
		}

		req := provider.FromPrompt(p, streaming)
		req.Options = merged

		observer.open()
		resp, err := a.provider.Generate(ctx, req, observer.update)
		if err != nil {
			// A failed stream still closes, delivering the partial message.
			if resp != nil {
				observer.close(&resp.Message)
			} else {
				observer.close(&gen.Message)
			}
			a.logger.Error("agent.generate.error", "agent", a.name, "turn", turn, "error", err.Error())
			a.dispatchError(err)
			return gen, err
		}

		p.AddMessage(resp.Message)
		gen.Message = resp.Message
		gen.Response = resp
		gen.Usage = gen.Usage.Add(resp.Usage)
		gen.Turns = turn

		if !resp.Message.ActionRequested() {
			break
		}

		a.logger.Info("agent.actions.requested", "agent", a.name, "turn", turn, "count", len(resp.Message.RequestedActions))
		results, err := a.executeActions(ctx, resp.Message.RequestedActions)
		if err != nil {
			// Already routed through the handler chain by the executor; no
			// tool results reach the model on an aborted batch.
			observer.close(&gen.Message)
			return gen, err
		}
		for _, rm := range results {
			p.AddMessage(rm)
		}
	}

	observer.close(&gen.Message)
	gen.Messages = p.Messages()
	a.logger.Info("agent.generate.complete",
		"agent", a.name,
		"turns", gen.Turns,
		"total_tokens", gen.Usage.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return gen, nil
}

// streamObserver wraps the caller's handler with whole-generation lifecycle
// semantics: open fires before the first provider call, updates pass
// through, and close fires exactly once when the generation finishes or
// fails, whatever the number of tool-loop turns.
type streamObserver struct {
	handler provider.StreamHandler
	opened  bool
	closed  bool
}

func (o *streamObserver) open() {
	if o.handler == nil || o.opened {
		return
	}
	o.opened = true
	o.handler(provider.StreamChunk{}, provider.StreamOpen)
}

func (o *streamObserver) update(chunk provider.StreamChunk, event provider.StreamEvent) {
	if o.handler != nil {
		o.handler(chunk, event)
	}
}

func (o *streamObserver) close(final *prompt.Message) {
	if o.handler == nil || !o.opened || o.closed {
		return
	}
	o.closed = true
	o.handler(provider.StreamChunk{Message: final, Final: true}, provider.StreamClose)
}
