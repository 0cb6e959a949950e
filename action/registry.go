package action

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quiltt/activeagent-go/prompt"
)

// Registry holds the actions available to one agent, keyed by name. Safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty registry.
func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an action. Duplicate names are rejected so a typo cannot
// silently shadow an existing capability.
func (r *Registry) Register(a Action) error {
	if a == nil || a.Name() == "" {
		return fmt.Errorf("action must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[a.Name()]; exists {
		return fmt.Errorf("action %q already registered", a.Name())
	}
	r.actions[a.Name()] = a
	return nil
}

// Get resolves an action by name.
func (r *Registry) Get(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return nil, &NotFoundError{Action: name}
	}
	return a, nil
}

// Names lists registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many actions are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

// Schemas renders every registered action in the transportable schema form,
// sorted by name for a deterministic request shape.
func (r *Registry) Schemas() []prompt.ActionSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]prompt.ActionSchema, 0, len(r.actions))
	for _, a := range r.actions {
		schemas = append(schemas, Schema(a))
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}
