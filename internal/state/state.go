// Package state holds the single authoritative copy of a value shared
// between synchronous request handlers and asynchronous training
// callbacks, and notifies subscribers when it changes.
package state

import (
	"sort"
	"sync"
)

// Store owns a value of type T. Readers always see the latest committed
// value; there is no way to hold on to a stale copy through the Store.
type Store[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	nextID  int
	subs    map[int]func(T)
}

// New returns a store holding initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Version returns a counter incremented on every Set or Update.
func (s *Store[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set replaces the value and notifies subscribers.
func (s *Store[T]) Set(v T) {
	s.Update(func(T) T { return v })
}

// Update applies fn to the current value atomically, stores the result
// and notifies subscribers. fn must not call back into the store.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	s.value = fn(s.value)
	s.version++
	v := s.value
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, sub := range subs {
		sub(v)
	}
	return v
}

// Subscribe registers fn to receive every new value, in subscription
// order, on the goroutine that made the change. The returned function
// removes the subscription.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store[T]) snapshotSubs() []func(T) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(T), len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}
