// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package roomstore

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/atrium-foundation/atrium/lib/codec"
	"github.com/atrium-foundation/atrium/lib/kv"
)

const unreadKeyPrefix = "unread/"

// UnreadTracker keeps per-resource unread counters, written through to
// a key-value store so counts survive a restart. Persistence failures
// are logged and the in-memory count stays correct for the session.
type UnreadTracker struct {
	store  kv.Store
	logger *slog.Logger

	mu     sync.Mutex
	counts map[string]int64
	loaded bool
}

// NewUnreadTracker wraps a key-value store. A nil logger means
// slog.Default().
func NewUnreadTracker(store kv.Store, logger *slog.Logger) *UnreadTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnreadTracker{
		store:  store,
		logger: logger,
		counts: make(map[string]int64),
	}
}

// loadLocked fills counts from the store once. Caller holds t.mu.
func (t *UnreadTracker) loadLocked() {
	if t.loaded {
		return
	}
	t.loaded = true
	keys, err := t.store.Keys(unreadKeyPrefix)
	if err != nil {
		t.logger.Warn("loading unread counters failed", "error", err)
		return
	}
	for _, key := range keys {
		encoded, ok, err := t.store.Get(key)
		if err != nil || !ok {
			continue
		}
		var count int64
		if err := codec.Unmarshal(encoded, &count); err != nil {
			t.logger.Warn("dropping undecodable unread counter", "key", key, "error", err)
			continue
		}
		t.counts[strings.TrimPrefix(key, unreadKeyPrefix)] = count
	}
}

// Add increments the counter for resourceID by n.
func (t *UnreadTracker) Add(resourceID string, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	t.loadLocked()
	t.counts[resourceID] += int64(n)
	count := t.counts[resourceID]
	t.mu.Unlock()
	t.persist(resourceID, count)
}

// Count returns the counter for resourceID.
func (t *UnreadTracker) Count(resourceID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loadLocked()
	return int(t.counts[resourceID])
}

// Clear zeroes the counter for resourceID and removes its record.
func (t *UnreadTracker) Clear(resourceID string) {
	t.mu.Lock()
	t.loadLocked()
	_, had := t.counts[resourceID]
	delete(t.counts, resourceID)
	t.mu.Unlock()
	if !had {
		return
	}
	if err := t.store.Delete(unreadKeyPrefix + resourceID); err != nil {
		t.logger.Warn("clearing unread counter failed", "resource", resourceID, "error", err)
	}
}

// Counts returns a snapshot of every non-zero counter, keyed by
// resource id.
func (t *UnreadTracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loadLocked()
	out := make(map[string]int, len(t.counts))
	for id, count := range t.counts {
		out[id] = int(count)
	}
	return out
}

func (t *UnreadTracker) persist(resourceID string, count int64) {
	encoded, err := codec.Marshal(count)
	if err != nil {
		t.logger.Warn("encoding unread counter failed", "resource", resourceID, "error", err)
		return
	}
	if err := t.store.Put(unreadKeyPrefix+resourceID, encoded); err != nil {
		t.logger.Warn("persisting unread counter failed", "resource", resourceID, "error", err)
	}
}
