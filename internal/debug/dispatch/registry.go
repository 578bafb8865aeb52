package dispatch

import (
	"sync"

	"github.com/dshills/remotedebug/internal/debug/event"
)

// Registry maps requests to the single listener handling them.
// It is safe for concurrent use; no lock is held while a listener runs.
type Registry struct {
	mu        sync.RWMutex
	listeners map[*event.Request]Listener
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[*event.Request]Listener)}
}

// Register maps req to l, replacing any listener already registered for req.
func (r *Registry) Register(req *event.Request, l Listener) {
	r.mu.Lock()
	r.listeners[req] = l
	r.mu.Unlock()
}

// Unregister removes the mapping for req. The listener argument is not
// compared with the stored one: whatever is registered for req is removed.
// Unregistering a request with no mapping does nothing.
func (r *Registry) Unregister(req *event.Request, _ Listener) {
	r.mu.Lock()
	delete(r.listeners, req)
	r.mu.Unlock()
}

// Lookup returns the listener registered for req.
func (r *Registry) Lookup(req *event.Request) (Listener, bool) {
	if req == nil {
		return nil, false
	}
	r.mu.RLock()
	l, ok := r.listeners[req]
	r.mu.RUnlock()
	return l, ok && l != nil
}

// Len returns the number of registered requests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
