// Package action implements the tool calling subsystem: structured
// capabilities an agent can invoke with schema validated arguments,
// consistent error handling and metadata for model guidance.
package action

import (
	"context"
	"fmt"

	"github.com/quiltt/activeagent-go/internal/util"
	"github.com/quiltt/activeagent-go/logging"
	"github.com/quiltt/activeagent-go/prompt"
)

// Action defines one callable capability exposed to models.
//
// Implementations should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Define proper JSON schema for parameters
//   - Be thread-safe if used concurrently
type Action interface {
	// Name returns the unique identifier for this action.
	Name() string

	// Description returns a human-readable description of what this action
	// does, provided to the model to guide invocation.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Execute runs the action with already-parsed arguments. The Context
	// carries the call id, agent identity and logger.
	Execute(actx *Context, args map[string]any) (any, error)
}

// Context carries per-invocation metadata into an action execution.
type Context struct {
	ctx       context.Context
	callID    string
	agentName string
	logger    logging.Logger
}

// NewContext builds an execution context. A nil logger falls back to no-op.
func NewContext(ctx context.Context, callID, agentName string, logger logging.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{ctx: ctx, callID: callID, agentName: agentName, logger: logger}
}

// Context returns the request-scoped context for cancellation and deadlines.
func (c *Context) Context() context.Context { return c.ctx }

// CallID returns the model-assigned call identifier, correlating the request
// with the tool result message.
func (c *Context) CallID() string { return c.callID }

// AgentName returns the name of the agent executing the action.
func (c *Context) AgentName() string { return c.agentName }

// Logger returns the structured logger for this invocation.
func (c *Context) Logger() logging.Logger { return c.logger }

// ValidationError represents parameter validation failures with detail.
type ValidationError = util.ValidationError

// Error codes attached to ExecutionError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
)

// ExecutionError represents errors raised while running an action.
type ExecutionError struct {
	Action  string `json:"action"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("action error [%s] in %s: %s", e.Code, e.Action, e.Message)
	}
	return fmt.Sprintf("action error in %s: %s", e.Action, e.Message)
}

// NotFoundError reports a model-requested action with no registration.
type NotFoundError struct {
	Action string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("action %q not found", e.Action)
}

// Schema renders an action's registration as the transportable schema form.
func Schema(a Action) prompt.ActionSchema {
	return prompt.ActionSchema{
		Name:        a.Name(),
		Description: a.Description(),
		Parameters:  a.Parameters(),
	}
}
