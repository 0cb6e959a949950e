// Package provider defines the shared surface every model provider adapter
// implements: the common-format request, the canonical response model,
// normalized usage accounting, layered options, and the transport contract.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quiltt/activeagent-go/prompt"
)

// Request captures the normalized common-format input for one provider call.
// Adapters convert it into their native wire format.
type Request struct {
	Messages     []prompt.Message
	Instructions []string
	Actions      []prompt.ActionSchema
	ToolChoice   prompt.ToolChoice
	OutputSchema map[string]any
	Stream       bool

	// Options carries runtime knobs already merged across the option layers.
	Options Options
}

// FromPrompt builds a Request from a prompt aggregate.
func FromPrompt(p *prompt.Prompt, stream bool) Request {
	return Request{
		Messages:     p.Messages(),
		Instructions: p.Instructions(),
		Actions:      p.Actions,
		ToolChoice:   p.ToolChoice,
		OutputSchema: p.OutputSchema,
		Stream:       stream,
		Options:      Options(p.Options),
	}
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Provider is the minimal interface the orchestrator needs to drive
// generation. Generate blocks until the provider produced a complete
// response; when req.Stream is set and onChunk is non-nil the handler is
// invoked per incremental chunk before Generate returns.
type Provider interface {
	Generate(ctx context.Context, req Request, onChunk StreamHandler) (*Response, error)

	// Info returns metadata about the provider implementation.
	Info() Info
}

// Embedder is implemented by providers that support embeddings generation.
type Embedder interface {
	Embed(ctx context.Context, model string, input []string) ([][]float64, error)
}

// Factory constructs a provider from its configuration map: model,
// credentials, base URL.
type Factory func(cfg map[string]any) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a provider factory available under a name. Adapters call
// this from init; last registration wins.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New instantiates a registered provider by name.
func New(name string, cfg map[string]any) (Provider, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{Field: "provider", Message: fmt.Sprintf("unknown provider %q (registered: %v)", name, Names())}
	}
	return f(cfg)
}

// Names lists the registered provider names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
