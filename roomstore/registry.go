// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package roomstore

import (
	"sort"
	"sync"
)

// Stopper is anything with a Stop method; state channels qualify.
type Stopper interface {
	Stop()
}

// Registry is a named collection of live channel handles shared across
// a store's attachments. It replaces ad hoc package-level maps: every
// handle has an owner and is stopped when the store closes.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Stopper
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Stopper)}
}

// Register stores handle under name, stopping any handle previously
// registered under the same name.
func (r *Registry) Register(name string, handle Stopper) {
	r.mu.Lock()
	previous := r.entries[name]
	r.entries[name] = handle
	r.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}
}

// Get returns the handle registered under name, nil when absent.
// Callers type-assert to the concrete channel type they registered.
func (r *Registry) Get(name string) Stopper {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[name]
}

// Remove unregisters name and stops its handle, if any.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	handle := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()
	if handle != nil {
		handle.Stop()
	}
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StopAll stops and unregisters every handle.
func (r *Registry) StopAll() {
	r.mu.Lock()
	handles := make([]Stopper, 0, len(r.entries))
	for _, handle := range r.entries {
		handles = append(handles, handle)
	}
	r.entries = make(map[string]Stopper)
	r.mu.Unlock()
	for _, handle := range handles {
		handle.Stop()
	}
}
