// Package activeagent provides a high-level façade over agents, providers
// and configuration, enabling rapid construction of model-backed
// applications. Most programs interact with this package by:
//  1. Creating an ActiveAgent via New() (optionally loading a YAML config)
//  2. Registering one or more agents bound to configured providers
//  3. Generating through an agent by name
//
// The façade delegates orchestration to agent.Agent while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply credentials through
// configuration and a structured logger.
package activeagent

import (
	"context"
	"fmt"
	"sync"

	"github.com/quiltt/activeagent-go/agent"
	"github.com/quiltt/activeagent-go/config"
	"github.com/quiltt/activeagent-go/logging"
	"github.com/quiltt/activeagent-go/prompt"
	"github.com/quiltt/activeagent-go/provider"
)

// Options configures the ActiveAgent instance.
type Options struct {
	// Config holds provider configuration. Nil means providers are supplied
	// directly to NewAgent by the caller.
	Config *config.Config

	// Logger defaults to NoOp when nil.
	Logger logging.Logger
}

// ActiveAgent is the high-level façade aggregating registered agents and
// shared configuration.
type ActiveAgent struct {
	opts Options

	mu     sync.RWMutex
	agents map[string]*agent.Agent
}

// New creates an ActiveAgent instance with optional overrides.
func New(optFns ...func(o *Options)) *ActiveAgent {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ActiveAgent{opts: opts, agents: map[string]*agent.Agent{}}
}

// LoadConfig reads provider configuration from a YAML file.
func (aa *ActiveAgent) LoadConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	aa.mu.Lock()
	aa.opts.Config = cfg
	aa.mu.Unlock()
	return nil
}

// NewAgent builds an agent on a configured provider entry and registers it.
// An empty entry name selects the config default.
func (aa *ActiveAgent) NewAgent(name, entry string, optFns ...agent.Option) (*agent.Agent, error) {
	aa.mu.RLock()
	cfg := aa.opts.Config
	aa.mu.RUnlock()
	if cfg == nil {
		return nil, &provider.ConfigurationError{Field: "config", Message: "no configuration loaded"}
	}

	var p provider.Provider
	var err error
	if entry == "" {
		p, err = cfg.BuildDefault()
	} else {
		p, err = cfg.Build(entry)
	}
	if err != nil {
		return nil, err
	}

	opts := append([]agent.Option{agent.WithLogger(aa.opts.Logger)}, optFns...)
	a, err := agent.New(name, p, opts...)
	if err != nil {
		return nil, err
	}
	if err := aa.RegisterAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// RegisterAgent adds a pre-built agent to the façade.
func (aa *ActiveAgent) RegisterAgent(a *agent.Agent) error {
	aa.mu.Lock()
	defer aa.mu.Unlock()
	if _, exists := aa.agents[a.Name()]; exists {
		return fmt.Errorf("agent %q already registered", a.Name())
	}
	aa.agents[a.Name()] = a
	return nil
}

// Agent resolves a registered agent by name.
func (aa *ActiveAgent) Agent(name string) (*agent.Agent, error) {
	aa.mu.RLock()
	defer aa.mu.RUnlock()
	a, ok := aa.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent %q not registered", name)
	}
	return a, nil
}

// Generate runs a prompt through the named agent.
func (aa *ActiveAgent) Generate(ctx context.Context, agentName string, p *prompt.Prompt, optFns ...agent.GenerateOption) (*agent.Generation, error) {
	a, err := aa.Agent(agentName)
	if err != nil {
		return nil, err
	}
	return a.Generate(ctx, p, optFns...)
}

// GenerateText runs a single user message through the named agent.
func (aa *ActiveAgent) GenerateText(ctx context.Context, agentName, text string, optFns ...agent.GenerateOption) (*agent.Generation, error) {
	a, err := aa.Agent(agentName)
	if err != nil {
		return nil, err
	}
	return a.GenerateText(ctx, text, optFns...)
}
