package optimizer

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Solver configured with params.
type Factory func(params Params) Solver

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
)

// Register makes a backend available by name. Backends register from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("optimizer: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("optimizer: Register called twice for backend " + name)
	}
	factories[name] = factory
}

// New returns a solver for the named backend.
func New(name string, params Params) (Solver, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown solver backend %q (available: %v)", name, Backends())
	}
	return factory(params), nil
}

// Backends lists registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
