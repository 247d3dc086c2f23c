// Package broadcast is a small synchronous fan-out used for session and
// auth-state change notifications.
package broadcast

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Hub delivers values of type T to every registered listener.
type Hub[T any] struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]func(T)
	logger    *zap.Logger
}

// NewHub creates an empty hub. A panicking listener is logged and skipped.
func NewHub[T any](logger *zap.Logger) *Hub[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub[T]{listeners: make(map[uint64]func(T)), logger: logger}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is safe to call more than once.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Publish calls every listener in subscription order. No lock is held
// while listeners run, so a listener may subscribe or unsubscribe.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.listeners[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		h.call(fn, v)
	}
}

// Len returns the number of registered listeners.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub[T]) call(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Listener panicked", zap.Any("panic", r))
		}
	}()
	fn(v)
}
