package bridge

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotRegistered is returned by Registry.GetEnforcing for unknown names.
var ErrNotRegistered = errors.New("capability is not registered")

// Generation names the lookup strategy that produced a backend.
type Generation string

const (
	// GenerationModern is the capability registry.
	GenerationModern Generation = "modern"
	// GenerationLegacy is the named-module table.
	GenerationLegacy Generation = "legacy"
)

// Factory builds a backend on first lookup.
type Factory func() (Backend, error)

// Registry is the modern capability registry. Backends register a factory
// by name; lookups build the backend once and reuse it.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	built     map[string]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		built:     make(map[string]Backend),
	}
}

// Register installs factory under name, replacing any previous registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	delete(r.built, name)
}

// GetEnforcing returns the backend registered under name, or an error if
// nothing is registered or the factory fails.
func (r *Registry) GetEnforcing(name string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.built[name]; ok {
		return b, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	b, err := factory()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	if b == nil {
		return nil, fmt.Errorf("build %s: factory returned no backend", name)
	}
	r.built[name] = b
	return b, nil
}

// ModuleTable is the legacy lookup: a flat table of already-constructed
// backends keyed by module name.
type ModuleTable struct {
	mu      sync.RWMutex
	modules map[string]Backend
}

// NewModuleTable returns an empty table.
func NewModuleTable() *ModuleTable {
	return &ModuleTable{modules: make(map[string]Backend)}
}

// Set publishes b under name. A nil b removes the entry.
func (t *ModuleTable) Set(name string, b Backend) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b == nil {
		delete(t.modules, name)
		return
	}
	t.modules[name] = b
}

// Get returns the module named name, or nil.
func (t *ModuleTable) Get(name string) Backend {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.modules[name]
}

var (
	// DefaultRegistry is the process-wide capability registry.
	DefaultRegistry = NewRegistry()
	// DefaultModules is the process-wide legacy module table.
	DefaultModules = NewModuleTable()
)

// Resolver finds a backend by trying the registry first and the module table second.
type Resolver struct {
	Name     string
	Registry *Registry
	Modules  *ModuleTable
}

// NewResolver returns a resolver over the process-wide registry and module table.
func NewResolver() *Resolver {
	return &Resolver{Name: ModuleName, Registry: DefaultRegistry, Modules: DefaultModules}
}

// Resolve returns the first backend found. Lookup failures, including panics
// raised by registry factories, count as "not found"; when both strategies
// come up empty the error is ErrNotLinked.
func (r *Resolver) Resolve() (Backend, Generation, error) {
	if b := r.fromRegistry(); b != nil {
		return b, GenerationModern, nil
	}
	if r.Modules != nil {
		if b := r.Modules.Get(r.Name); b != nil {
			return b, GenerationLegacy, nil
		}
	}
	return nil, "", ErrNotLinked
}

func (r *Resolver) fromRegistry() (b Backend) {
	if r.Registry == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			b = nil
		}
	}()
	b, err := r.Registry.GetEnforcing(r.Name)
	if err != nil {
		return nil
	}
	return b
}
