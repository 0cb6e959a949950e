package agent

import "fmt"

// ErrorHandler receives generation failures. Returning true claims the error
// and stops the chain; later handlers do not run. A claimed action execution
// failure is recovered: it rides back to the model as an error-flagged tool
// result and the loop continues. Unclaimed execution failures, and all other
// error kinds regardless of claiming, are returned to the caller.
type ErrorHandler func(err error) bool

// MaxTurnsError reports a tool loop that exceeded its turn budget, which
// usually means the model kept requesting actions without converging.
type MaxTurnsError struct {
	Limit int
}

func (e *MaxTurnsError) Error() string {
	return fmt.Sprintf("generation exceeded %d turns without a final response", e.Limit)
}

// dispatchError runs the handler chain in registration order and reports
// whether any handler claimed the error.
func (a *Agent) dispatchError(err error) bool {
	for _, h := range a.handlers {
		if h(err) {
			return true
		}
	}
	return false
}
