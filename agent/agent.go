// Package agent implements the generation orchestrator: it owns the
// multi-turn loop that sends prompts to a provider, executes requested
// actions, feeds results back, and terminates on a plain text response or
// the turn limit.
package agent

import (
	"github.com/quiltt/activeagent-go/action"
	"github.com/quiltt/activeagent-go/logging"
	"github.com/quiltt/activeagent-go/provider"
)

// DefaultMaxTurns bounds the tool-calling loop when not configured. One turn
// is one provider call; a generation that still requests actions after this
// many turns fails with *MaxTurnsError.
const DefaultMaxTurns = 10

// Agent binds a provider, an action registry, instructions and option layers
// into a reusable generation entry point. Configuration is immutable after
// New; per-call state lives in the Prompt.
type Agent struct {
	name         string
	provider     provider.Provider
	registry     *action.Registry
	instructions []Instruction
	options      provider.Options // agent-level option layer
	globalOpts   provider.Options // global option layer
	logger       logging.Logger
	handlers     []ErrorHandler
	maxTurns     int
	maxParallel  int

	registerErr error // first action registration failure, surfaced by New
}

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithInstructions sets the agent's standing instructions, applied to any
// prompt that does not carry its own. Strings may contain Go template
// markers resolved against the per-call template state.
func WithInstructions(instructions ...string) Option {
	return func(a *Agent) {
		for _, text := range instructions {
			a.instructions = append(a.instructions, NewInstruction(text))
		}
	}
}

// WithInstructionSources sets instructions from static or dynamic sources.
func WithInstructionSources(instructions ...Instruction) Option {
	return func(a *Agent) { a.instructions = append(a.instructions, instructions...) }
}

// WithActions registers the agent's callable actions.
func WithActions(actions ...action.Action) Option {
	return func(a *Agent) {
		for _, act := range actions {
			// Registration errors surface from New.
			a.registerErr = firstErr(a.registerErr, a.registry.Register(act))
		}
	}
}

// WithOptions sets the agent-level option layer (model, temperature, ...).
func WithOptions(opts provider.Options) Option {
	return func(a *Agent) { a.options = opts }
}

// WithGlobalOptions sets the lowest-precedence option layer, typically
// loaded from configuration.
func WithGlobalOptions(opts provider.Options) Option {
	return func(a *Agent) { a.globalOpts = opts }
}

// WithLogger sets the structured logger.
func WithLogger(logger logging.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithMaxTurns overrides the tool-calling turn limit.
func WithMaxTurns(n int) Option {
	return func(a *Agent) { a.maxTurns = n }
}

// WithMaxParallel caps concurrent action executions within one turn.
// Results append in request order regardless of completion order.
func WithMaxParallel(n int) Option {
	return func(a *Agent) { a.maxParallel = n }
}

// WithErrorHandler appends a handler to the error chain. On any generation
// failure, handlers run in registration order until one claims the error. A
// claimed action execution failure is recovered as an error-flagged tool
// result; every other failure is returned to the caller either way.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *Agent) { a.handlers = append(a.handlers, h) }
}

// New constructs an agent bound to a provider.
func New(name string, p provider.Provider, optFns ...Option) (*Agent, error) {
	registry, err := action.NewRegistry()
	if err != nil {
		return nil, err
	}
	a := &Agent{
		name:        name,
		provider:    p,
		registry:    registry,
		logger:      logging.NoOpLogger{},
		maxTurns:    DefaultMaxTurns,
		maxParallel: 0,
	}
	for _, fn := range optFns {
		fn(a)
	}
	if a.provider == nil {
		return nil, &provider.ConfigurationError{Field: "provider", Message: "agent requires a provider"}
	}
	if a.maxTurns <= 0 {
		return nil, &provider.ConfigurationError{Field: "max_turns", Message: "max_turns must be positive"}
	}
	if a.registerErr != nil {
		return nil, a.registerErr
	}
	return a, nil
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Provider returns the bound provider.
func (a *Agent) Provider() provider.Provider { return a.provider }

// Actions returns the agent's action registry.
func (a *Agent) Actions() *action.Registry { return a.registry }

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
