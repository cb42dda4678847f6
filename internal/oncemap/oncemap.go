// Package oncemap provides a keyed write-once, read-many slot map.
//
// The first caller to Register a key owns the work for it; everyone else
// waits on the same slot. The first Done for a key settles it and later
// Done calls are ignored, so completion order across workers does not matter.
package oncemap

import (
	"context"
	"sync"
)

type slot[V any] struct {
	done  chan struct{}
	value V
	set   bool
}

// OnceMap maps keys to settle-once values. The zero value is not usable; use New.
type OnceMap[K comparable, V any] struct {
	mu    sync.Mutex
	slots map[K]*slot[V]
}

// New returns an empty map.
func New[K comparable, V any]() *OnceMap[K, V] {
	return &OnceMap[K, V]{slots: make(map[K]*slot[V])}
}

func (m *OnceMap[K, V]) slotLocked(key K) (*slot[V], bool) {
	s, ok := m.slots[key]
	if !ok {
		s = &slot[V]{done: make(chan struct{})}
		m.slots[key] = s
	}
	return s, ok
}

// Register marks key as in flight. It returns true only for the first caller,
// which is then responsible for eventually calling Done.
func (m *OnceMap[K, V]) Register(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.slotLocked(key)
	return !existed
}

// Registered reports whether key has been registered or settled.
func (m *OnceMap[K, V]) Registered(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.slots[key]
	return ok
}

// Done settles key with value and wakes all waiters. Only the first call for a
// key has an effect.
func (m *OnceMap[K, V]) Done(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, _ := m.slotLocked(key)
	if s.set {
		return
	}
	s.value = value
	s.set = true
	close(s.done)
}

// Wait blocks until key is settled. ok is false if key was never registered.
func (m *OnceMap[K, V]) Wait(ctx context.Context, key K) (value V, ok bool, err error) {
	m.mu.Lock()
	s, exists := m.slots[key]
	m.mu.Unlock()
	if !exists {
		return value, false, nil
	}

	select {
	case <-s.done:
		return s.value, true, nil
	case <-ctx.Done():
		return value, true, ctx.Err()
	}
}

// Get returns the settled value without blocking.
func (m *OnceMap[K, V]) Get(key K) (value V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, exists := m.slots[key]
	if !exists || !s.set {
		return value, false
	}
	return s.value, true
}

// Len returns the number of registered keys.
func (m *OnceMap[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
