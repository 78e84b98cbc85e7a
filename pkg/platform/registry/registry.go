// Package registry provides named registration of platform adapters.
// Adapter packages register factories from init, and the engine looks
// them up by network name.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/supercrema/adforge/pkg/config"
	"github.com/supercrema/adforge/pkg/platform/core"
)

// Factory creates a configured adapter instance.
type Factory func(cfg *config.BaseConfig) (core.Adapter, error)

// Registry holds adapter factories keyed by network name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory. Duplicate names are an error.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the named adapter with the given configuration.
func (r *Registry) Create(name string, cfg *config.BaseConfig) (core.Adapter, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown adapter %q", name)
	}
	return factory(cfg)
}

// List returns the registered network names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// global is the default registry adapters register into from init.
var global = NewRegistry()

// Register adds a factory to the global registry, panicking on duplicate
// registration since that is a programming error.
func Register(name string, factory Factory) {
	if err := global.Register(name, factory); err != nil {
		panic(err)
	}
}

// Create instantiates an adapter from the global registry.
func Create(name string, cfg *config.BaseConfig) (core.Adapter, error) {
	return global.Create(name, cfg)
}

// List returns the global registry's network names.
func List() []string {
	return global.List()
}
