package extension

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps extension identifiers to their factories. It is populated
// once at process start and read by Load.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under id. Registering the same id twice or a nil
// factory is a programming error and panics.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		panic("extension: Register with empty id")
	}
	if f == nil {
		panic(fmt.Sprintf("extension: Register %q with nil factory", id))
	}
	if _, dup := r.factories[id]; dup {
		panic(fmt.Sprintf("extension: Register called twice for %q", id))
	}
	r.factories[id] = f
}

// Lookup returns the factory registered under id.
func (r *Registry) Lookup(id string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[id]
	return f, ok
}

// IDs returns every registered identifier in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
