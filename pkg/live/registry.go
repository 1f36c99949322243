package live

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vango-dev/memval/pkg/binding"
	"github.com/vango-dev/memval/pkg/memval"
)

// Registry maps names to observables. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	values map[string]memval.Observable[any]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{values: make(map[string]memval.Observable[any])}
}

// Register adds obs under name. Names must be unique and non-empty.
func (r *Registry) Register(name string, obs memval.Observable[any]) error {
	if name == "" {
		return fmt.Errorf("live: empty value name")
	}
	if obs == nil {
		return fmt.Errorf("live: nil observable for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.values[name]; exists {
		return fmt.Errorf("live: value %q already registered", name)
	}
	r.values[name] = obs
	return nil
}

// Remove drops name and its cached binding. Open streams keep their
// observable until they close.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	obs, ok := r.values[name]
	delete(r.values, name)
	r.mu.Unlock()

	if ok {
		binding.Forget(obs)
	}
}

// Get returns the observable registered under name.
func (r *Registry) Get(name string) (memval.Observable[any], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obs, ok := r.values[name]
	return obs, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
