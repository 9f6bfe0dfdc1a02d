// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import "sync"

// Source is an observable value of type T. The zero value is not
// usable; create Sources with New.
//
// Source is safe for concurrent use. Listeners registered with
// Subscribe are invoked synchronously inside Set, in registration
// order, on the goroutine that called Set. Listeners may call Get (on
// this or any other Source) but must not call Set on the same Source —
// that would recurse.
type Source[T any] struct {
	mu        sync.Mutex
	value     T
	nextToken int
	listeners map[int]func(T)
	order     []int
}

// New creates a Source holding the given initial value. Creating the
// Source does not notify anyone.
func New[T any](initial T) *Source[T] {
	return &Source[T]{
		value:     initial,
		listeners: make(map[int]func(T)),
	}
}

// Get returns the current value.
func (s *Source[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores value and notifies every registered listener with it.
// Notification happens before Set returns. When multiple goroutines
// call Set concurrently, the stored value is the last writer's, but
// each listener observes every written value exactly once (in some
// interleaved order).
func (s *Source[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	notify := make([]func(T), 0, len(s.order))
	for _, token := range s.order {
		if listener, ok := s.listeners[token]; ok {
			notify = append(notify, listener)
		}
	}
	s.mu.Unlock()

	// Listeners run outside the lock so they can read this Source (or
	// subscribe to others) without deadlocking.
	for _, listener := range notify {
		listener(value)
	}
}

// Subscribe registers a listener invoked on every subsequent Set. The
// listener is not called with the current value at subscription time;
// callers that need it should Get first. The returned cancel function
// removes the listener and is safe to call more than once.
func (s *Source[T]) Subscribe(listener func(T)) (cancel func()) {
	s.mu.Lock()
	token := s.nextToken
	s.nextToken++
	s.listeners[token] = listener
	s.order = append(s.order, token)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, token)
	}
}
