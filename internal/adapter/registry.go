package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/domain"
)

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// RegisterFactory registers an adapter factory for a type. Called from each
// adapter package's Register function, wired up in registration.Builtins.
// Panics on duplicate or incomplete registration.
func RegisterFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("adapter factory type cannot be empty")
	}
	if f.New == nil {
		panic(fmt.Sprintf("adapter factory %q must have a New function", f.Type))
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("adapter factory %q already registered", f.Type))
	}
	factoryMap[f.Type] = f
}

// GetFactory returns the factory for an adapter type, if registered.
func GetFactory(adapterType string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[adapterType]
	return f, ok
}

// ListTypes returns all registered adapter type names, sorted.
func ListTypes() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]string, 0, len(factoryMap))
	for t := range factoryMap {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factoryMap = make(map[string]Factory)
}

// New validates cfg and builds an adapter through the registered factory.
// Construction fails fast with a config error when required fields are
// absent from every configuration layer.
func New(cfg *config.AgentConfig) (Adapter, error) {
	f, ok := GetFactory(cfg.Type)
	if !ok {
		return nil, domain.ErrConfig("agent %s: unknown adapter type %q (registered: %v)", cfg.Name, cfg.Type, ListTypes())
	}
	if f.Validate != nil {
		if err := f.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return f.New(cfg)
}

// Registry resolves agent names to live adapter instances. Instances are
// cached per agent name so a session-based adapter reuses its credentials
// across sequential runs of the same agent; instances are never shared
// across different agents. Run-scoped parameter overrides always build a
// fresh, uncached instance.
type Registry struct {
	resolver *config.Resolver

	mu        sync.Mutex
	instances map[string]Adapter
}

// NewRegistry creates an instance registry over a config resolver.
func NewRegistry(resolver *config.Resolver) *Registry {
	return &Registry{
		resolver:  resolver,
		instances: make(map[string]Adapter),
	}
}

// Resolver exposes the underlying config resolver.
func (r *Registry) Resolver() *config.Resolver {
	return r.resolver
}

// Adapter returns the adapter for an agent name, constructing it on first
// use. params, when non-nil, overlays request-level configuration and
// bypasses the cache.
func (r *Registry) Adapter(name string, params map[string]any) (Adapter, error) {
	cfg, err := r.resolver.Resolve(name)
	if err != nil {
		return nil, err
	}

	if len(params) > 0 {
		return New(config.ApplyParams(cfg, params))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.instances[name]; ok {
		return a, nil
	}
	a, err := New(cfg)
	if err != nil {
		return nil, err
	}
	r.instances[name] = a
	return a, nil
}

// Known lists the agent names resolvable without a per-agent file.
func (r *Registry) Known() []string {
	return r.resolver.Known()
}
