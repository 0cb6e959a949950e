package provider

import "fmt"

// ConfigurationError reports missing or invalid provider configuration:
// absent credentials, a temperature out of bounds, a missing model. It is
// always raised synchronously before any network call and never retried.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// TransportError wraps a network, timeout or HTTP-level failure from a
// provider call. It is routed through the caller's exception-handler chain;
// retry policy is the caller's decision.
type TransportError struct {
	Provider   string
	StatusCode int
	Payload    []byte // offending raw payload, kept for debugging
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s transport error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
