package plugin

import (
	"sort"
	"sync"

	"github.com/nyabot/nyabot/errors"
)

// FactoryRegistry maps manifest names to compiled-in constructors.
// Plugins register themselves from an init function or explicit wiring
// at startup.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewFactoryRegistry builds an empty registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{factories: make(map[string]Factory)}
}

// Register binds a factory to a manifest name. Name conflicts are an
// error.
func (r *FactoryRegistry) Register(name string, factory Factory) error {
	if name == "" {
		return errors.New("plugin factory has an empty name")
	}
	if factory == nil {
		return errors.Newf("plugin %q has a nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return errors.Newf("plugin factory already registered: %s", name)
	}
	r.factories[name] = factory
	return nil
}

// Get retrieves a factory by manifest name.
func (r *FactoryRegistry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// List returns all registered factory names in sorted order.
func (r *FactoryRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultRegistry backs the package-level Register used by plugin init
// functions.
var defaultRegistry = NewFactoryRegistry()

// Register binds a factory in the process-wide registry. Panics on
// conflict since it runs from init functions.
func Register(name string, factory Factory) {
	if err := defaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// DefaultRegistry exposes the process-wide registry.
func DefaultRegistry() *FactoryRegistry { return defaultRegistry }
