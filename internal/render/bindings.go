package render

import (
	"net/http"
	"sync"
)

// Bindings maps card keys to the handler serving their interaction. Binding a
// key again replaces the old handler, so re-running setup after every render
// never stacks handlers.
type Bindings struct {
	mu       sync.RWMutex
	handlers map[string]http.Handler
}

// NewBindings creates an empty registry.
func NewBindings() *Bindings {
	return &Bindings{handlers: make(map[string]http.Handler)}
}

// Bind attaches h to key, replacing any previous handler.
func (b *Bindings) Bind(key string, h http.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[key] = h
}

// Retain unbinds every key not in keys and returns how many were removed.
func (b *Bindings) Retain(keys []string) int {
	keep := make(map[string]bool, len(keys))
	for _, k := range keys {
		keep[k] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for k := range b.handlers {
		if !keep[k] {
			delete(b.handlers, k)
			removed++
		}
	}
	return removed
}

// Replace swaps the whole registry for handlers in one step and returns how
// many previously bound keys are gone.
func (b *Bindings) Replace(handlers map[string]http.Handler) int {
	next := make(map[string]http.Handler, len(handlers))
	for k, h := range handlers {
		next[k] = h
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for k := range b.handlers {
		if _, ok := next[k]; !ok {
			removed++
		}
	}
	b.handlers = next
	return removed
}

// Lookup returns the handler bound to key.
func (b *Bindings) Lookup(key string) (http.Handler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.handlers[key]
	return h, ok
}

// Len returns the number of bound keys.
func (b *Bindings) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
