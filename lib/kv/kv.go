// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"sort"
	"strings"
	"sync"
)

// Store is a flat key-value store. Keys are arbitrary non-empty
// strings; values are opaque bytes. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the value for key. ok is false when the key is
	// absent; err reports storage-level failures only.
	Get(key string) (value []byte, ok bool, err error)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys returns all keys with the given prefix, sorted. An empty
	// prefix returns every key.
	Keys(prefix string) ([]string, error)
}

// Memory is an in-process Store backed by a map. Values are copied on
// the way in and out, so callers cannot alias the store's internal
// state.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Put implements Store.
func (m *Memory) Put(key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = stored
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// Keys implements Store.
func (m *Memory) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key := range m.records {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
