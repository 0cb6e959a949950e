package prompt

import "fmt"

// TransformError reports malformed input to the normalization layer: an
// unrecognized message role, instructions of the wrong type, content of an
// unsupported shape. It is raised synchronously during request construction,
// never deferred to the network call.
type TransformError struct {
	Field   string
	Message string
}

func (e *TransformError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("transform error for %s: %s", e.Field, e.Message)
	}
	return "transform error: " + e.Message
}
