// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/atrium-foundation/atrium/lib/codec"
	"github.com/atrium-foundation/atrium/lib/kv"
)

// SnapshotCache persists the last good snapshot payload per channel and
// session so a restarted consumer can paint cached state before the
// first fetch completes. Cached state is a hint, never authoritative:
// priming from it does not advance the sync time, so the channel stays
// stale until a real fetch lands.
type SnapshotCache struct {
	store  kv.Store
	logger *slog.Logger
}

// NewSnapshotCache wraps a key-value store as a snapshot cache. A nil
// logger means slog.Default().
func NewSnapshotCache(store kv.Store, logger *slog.Logger) *SnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{store: store, logger: logger}
}

// snapshotRecord is the stored envelope. SyncedAt is milliseconds since
// the Unix epoch to keep the encoding integer-valued.
type snapshotRecord struct {
	Channel   string `cbor:"channel"`
	SessionID string `cbor:"session_id"`
	SyncedAt  int64  `cbor:"synced_at"`
	Payload   []byte `cbor:"payload"`
}

func snapshotKey(channel, sessionID string) string {
	return "snapshot/" + channel + "/" + sessionID
}

// Save stores payload as the latest snapshot for the channel and
// session.
func (sc *SnapshotCache) Save(channel, sessionID string, payload []byte, syncedAt time.Time) error {
	encoded, err := codec.Marshal(snapshotRecord{
		Channel:   channel,
		SessionID: sessionID,
		SyncedAt:  syncedAt.UnixMilli(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encoding snapshot record: %w", err)
	}
	if err := sc.store.Put(snapshotKey(channel, sessionID), encoded); err != nil {
		return fmt.Errorf("storing snapshot record: %w", err)
	}
	return nil
}

// Load returns the cached payload and its sync time, or ok false when
// nothing is cached for the channel and session.
func (sc *SnapshotCache) Load(channel, sessionID string) (payload []byte, syncedAt time.Time, ok bool, err error) {
	encoded, ok, err := sc.store.Get(snapshotKey(channel, sessionID))
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("loading snapshot record: %w", err)
	}
	if !ok {
		return nil, time.Time{}, false, nil
	}
	var record snapshotRecord
	if err := codec.Unmarshal(encoded, &record); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decoding snapshot record: %w", err)
	}
	return record.Payload, time.UnixMilli(record.SyncedAt), true, nil
}

// saveToCache persists the latest good payload. Cache failures are
// logged, never surfaced: the live value already updated.
func (c *Channel[T]) saveToCache(payload []byte, syncedAt time.Time) {
	if c.opts.Cache == nil {
		return
	}
	if err := c.opts.Cache.Save(c.name, c.scope.SessionID, payload, syncedAt); err != nil {
		c.logger.Warn("caching snapshot failed", "channel", c.name, "error", err)
	}
}

// Prime loads the cached snapshot, if any, into a channel that has not
// yet fetched. It reports whether a cached value was applied. Priming
// does not touch the sync time, so IsStale keeps reporting true until a
// real fetch succeeds, and a channel that already holds a live value is
// left alone.
func (c *Channel[T]) Prime() bool {
	if c.opts.Cache == nil {
		return false
	}
	payload, _, ok, err := c.opts.Cache.Load(c.name, c.scope.SessionID)
	if err != nil {
		c.logger.Warn("priming from cache failed", "channel", c.name, "error", err)
		return false
	}
	if !ok {
		return false
	}
	decoded, err := c.decode(payload)
	if err != nil {
		c.logger.Warn("dropping undecodable cached snapshot", "channel", c.name, "error", err)
		return false
	}

	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return false
	}
	c.authoritative = decoded
	c.loaded = true
	value := c.recomputeLocked()
	c.mu.Unlock()

	c.value.Set(value)
	if c.opts.Debug {
		c.logger.Debug("primed from cached snapshot", "channel", c.name)
	}
	return true
}
