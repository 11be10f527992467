package providers

import (
	"sort"
	"sync"
)

// Registry is a thread-safe registry mapping provider ids to their Family
// bundle. It is populated once at construction time; the gateway resolves
// the active bundle at configuration time, not per call.
type Registry struct {
	families map[string]Family
	mu       sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]Family)}
}

// Register adds a family under the given provider id.
// If the id is already registered, it is replaced.
func (r *Registry) Register(providerID string, f Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[providerID] = f
}

// Get retrieves the family for a provider id.
func (r *Registry) Get(providerID string) (Family, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.families[providerID]
	return f, ok
}

// List returns the sorted ids of all registered providers.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.families))
	for id := range r.families {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
