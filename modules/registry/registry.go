package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks live connections and issues their identifiers.
// State is process-local: a connection's identity is meaningless once its
// transport is gone, so nothing here survives a restart.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]time.Time // connID -> accepted at
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conns: make(map[string]time.Time),
	}
}

// Accept issues a fresh unique connection id and records it.
func (r *Registry) Accept() string {
	id := uuid.New().String()

	r.mu.Lock()
	r.conns[id] = time.Now().UTC()
	r.mu.Unlock()

	return id
}

// Remove forgets a connection. Removing an unknown or already-removed id is
// a no-op, not an error.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// Known reports whether the id belongs to a live connection.
func (r *Registry) Known(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
