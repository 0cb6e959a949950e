package provider

import "github.com/quiltt/activeagent-go/prompt"

// Response is the canonical result of one provider call.
type Response struct {
	// Message is the produced assistant message (or partial, mid-stream).
	Message prompt.Message

	// RawRequest / RawResponse are opaque passthroughs of what was actually
	// sent and received, kept for debugging and tests.
	RawRequest  any
	RawResponse any

	// Usage is the normalized token accounting for this call. Created once
	// per call (or once per finalized stream) and immutable afterwards.
	Usage Usage
}

// StreamEvent tags the three notification points of the stream observer.
type StreamEvent string

const (
	// StreamOpen fires before the first chunk.
	StreamOpen StreamEvent = "open"
	// StreamUpdate fires for every incremental chunk.
	StreamUpdate StreamEvent = "update"
	// StreamClose fires exactly once after the final chunk.
	StreamClose StreamEvent = "close"
)

// StreamChunk is the ephemeral value delivered to streaming callbacks. It
// exists only for the duration of one callback invocation.
type StreamChunk struct {
	// Message is the current accumulated assistant message state.
	Message *prompt.Message
	// Delta is the incremental text of this chunk, empty on bookkeeping
	// events and on the terminal chunk.
	Delta string
	// Final is true only on the terminal chunk of the whole generation.
	Final bool
}

// StreamHandler is the single consistent callback signature for stream
// observers. Callers that need neither parameter simply ignore them.
type StreamHandler func(chunk StreamChunk, event StreamEvent)
