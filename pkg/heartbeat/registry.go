package heartbeat

import (
	"slices"
	"sync"
)

// Registry is a keyed table of managers with at most one manager per key.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Manager
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Manager)}
}

// Register stores m under key. A different manager already stored under key
// is cleaned up; the last registration wins.
func (r *Registry) Register(key string, m *Manager) {
	r.mu.Lock()
	prev := r.entries[key]
	r.entries[key] = m
	r.mu.Unlock()

	if prev != nil && prev != m {
		prev.Cleanup()
	}
}

// Unregister cleans up and removes the manager under key. It reports whether
// one was registered.
func (r *Registry) Unregister(key string) bool {
	r.mu.Lock()
	m, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()

	if ok {
		m.Cleanup()
	}
	return ok
}

// Get returns the manager under key.
func (r *Registry) Get(key string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.entries[key]
	return m, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of registered managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// StopAll stops every manager but keeps them registered.
func (r *Registry) StopAll() {
	for _, m := range r.snapshot() {
		m.Stop()
	}
}

// CleanupAll cleans up every manager and empties the table.
func (r *Registry) CleanupAll() {
	r.mu.Lock()
	all := make([]*Manager, 0, len(r.entries))
	for _, m := range r.entries {
		all = append(all, m)
	}
	clear(r.entries)
	r.mu.Unlock()

	for _, m := range all {
		m.Cleanup()
	}
}

func (r *Registry) snapshot() []*Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*Manager, 0, len(r.entries))
	for _, m := range r.entries {
		all = append(all, m)
	}
	return all
}
