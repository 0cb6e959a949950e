package action

import (
	"fmt"
	"time"

	"github.com/quiltt/activeagent-go/internal/util"
)

// FunctionAction is a generic adapter that exposes a plain Go function as an
// Action.
//
// Responsibilities:
//   - Holds a JSON-Schema-like parameter specification
//   - Validates model-supplied arguments against that schema before execution
//   - Normalizes errors so callers receive *ExecutionError with consistent
//     codes: VALIDATION_ERROR for schema mismatch, EXECUTION_ERROR for a
//     plain error from the wrapped function, PANIC for a recovered panic
//     (custom codes pass through when the function returns *ExecutionError)
//
// A FunctionAction has no mutable state after construction and is safe for
// concurrent use.
type FunctionAction struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(actx *Context, args map[string]any) (any, error)
}

// NewFunction constructs a FunctionAction from an explicit schema.
//
// Example:
//
//	sum := action.NewFunction(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(actx *action.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunction(
	name, description string,
	parameters map[string]any,
	fn func(actx *Context, args map[string]any) (any, error),
) *FunctionAction {
	return &FunctionAction{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionFromStruct derives the parameter schema from a struct via
// reflection, honoring json and description tags.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sum := action.NewFunctionFromStruct("calculate_sum", "Calculate the sum", SumArgs{}, fn)
func NewFunctionFromStruct(
	name, description string,
	structType any,
	fn func(actx *Context, args map[string]any) (any, error),
) *FunctionAction {
	return NewFunction(name, description, util.CreateSchema(structType), fn)
}

// Name returns the unique action name used in call declarations and routing.
func (a *FunctionAction) Name() string { return a.name }

// Description returns the description exposed to models.
func (a *FunctionAction) Description() string { return a.description }

// Parameters returns the JSON schema describing expected arguments.
func (a *FunctionAction) Parameters() map[string]any { return a.parameters }

// Execute validates args against the declared schema then invokes the
// wrapped function. A panic in the function is recovered and reported as an
// *ExecutionError so one faulty action cannot take down the loop.
func (a *FunctionAction) Execute(actx *Context, args map[string]any) (result any, err error) {
	logger := actx.Logger()
	start := time.Now()

	logger.Debug("action.execute.start", "action", a.name, "call_id", actx.CallID())

	defer func() {
		if r := recover(); r != nil {
			logger.Error("action.execute.panic", "action", a.name, "panic", fmt.Sprintf("%v", r))
			result = nil
			err = &ExecutionError{
				Action:  a.name,
				Message: fmt.Sprintf("panic: %v", r),
				Code:    CodePanic,
			}
		}
	}()

	if err := util.ValidateParameters(args, a.parameters); err != nil {
		logger.Warn("action.execute.validation_failed", "action", a.name, "error", err.Error())
		return nil, &ExecutionError{
			Action:  a.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err = a.fn(actx, args)
	if err != nil {
		if execErr, ok := err.(*ExecutionError); ok {
			logger.Error("action.execute.error", "action", a.name, "error", execErr.Message)
			return nil, execErr
		}
		logger.Error("action.execute.error", "action", a.name, "error", err.Error())
		return nil, &ExecutionError{
			Action:  a.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	logger.Info("action.execute.success", "action", a.name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
