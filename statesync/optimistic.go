// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import "github.com/atrium-foundation/atrium/lib/clock"

// optimisticEntry is one in-flight speculative mutation in the ledger.
// Exactly one of commit, revert, or channel stop retires an entry.
// All fields are guarded by the channel mutex except updater, which is
// immutable after creation.
type optimisticEntry[T any] struct {
	id      string
	updater func(T) T

	// timer reverts the entry when no confirmation was supplied. Nil
	// when a confirmation channel is being watched instead.
	timer *clock.Timer

	// retired marks the entry resolved. A confirmation watcher or
	// timer firing for a retired entry is a no-op; this is how a
	// reused id supersedes the prior entry's bookkeeping.
	retired bool
}

// retire marks the entry resolved and stops its timer. Caller holds
// the channel mutex.
func (e *optimisticEntry[T]) retire() {
	e.retired = true
	if e.timer != nil {
		e.timer.Stop()
	}
}

// UpdateOptimistic applies updater to the visible value immediately
// and registers the edit in the ledger under id. The updater must be
// pure: it returns a new value and does not mutate its argument. It
// may be replayed (against a newer authoritative value) when other
// entries resolve, so it should be written to commute with independent
// changes.
//
// When confirmation is non-nil, the edit resolves when the channel
// delivers: a nil error (or a close without a value) commits the edit
// — the optimistic value is kept and treated as authoritative until
// the next snapshot or delta; a non-nil error reverts it. When
// confirmation is nil, the edit reverts automatically after the
// configured optimistic timeout.
//
// Reusing an id before the prior entry resolves supersedes the prior
// entry's bookkeeping: its timer and confirmation are detached and its
// data effect is replaced by the new updater.
//
// Calling UpdateOptimistic before the first snapshot has loaded is a
// caller error; it logs a warning and does nothing.
func (c *Channel[T]) UpdateOptimistic(id string, updater func(T) T, confirmation <-chan error) {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		c.logger.Warn("optimistic update before state loaded, ignoring",
			"channel", c.name, "update_id", id)
		return
	}

	// Last write wins on the ledger for a reused id.
	for i, prior := range c.pending {
		if prior.id == id {
			prior.retire()
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}

	entry := &optimisticEntry[T]{id: id, updater: updater}
	c.pending = append(c.pending, entry)
	value := c.recomputeLocked()

	if confirmation == nil {
		// The deadline is a local timer, not a network cancellation:
		// expiry reverts locally even if a request is still on the
		// wire.
		entry.timer = c.clk.AfterFunc(c.opts.OptimisticTimeout, func() {
			c.expireOptimistic(entry)
		})
	}
	c.mu.Unlock()

	c.value.Set(value)

	if confirmation != nil {
		go c.watchConfirmation(entry, confirmation)
	}
	if c.opts.Debug {
		c.logger.Debug("optimistic update applied", "channel", c.name, "update_id", id)
	}
}

// watchConfirmation resolves an entry from its confirmation channel.
// The goroutine lives until the confirmation delivers or closes; a
// retired entry makes the outcome a no-op.
func (c *Channel[T]) watchConfirmation(entry *optimisticEntry[T], confirmation <-chan error) {
	err := <-confirmation

	c.mu.Lock()
	if entry.retired {
		c.mu.Unlock()
		return
	}
	if err == nil {
		c.commitLocked(entry)
	} else {
		c.revertLocked(entry)
	}
	value := c.recomputeLocked()
	c.mu.Unlock()

	c.value.Set(value)
	if c.opts.Debug {
		c.logger.Debug("optimistic update resolved",
			"channel", c.name, "update_id", entry.id, "committed", err == nil)
	}
}

// expireOptimistic reverts an unconfirmed entry whose deadline passed.
func (c *Channel[T]) expireOptimistic(entry *optimisticEntry[T]) {
	c.mu.Lock()
	if entry.retired {
		c.mu.Unlock()
		return
	}
	c.revertLocked(entry)
	value := c.recomputeLocked()
	c.mu.Unlock()

	c.value.Set(value)
	c.logger.Warn("optimistic update timed out, reverted",
		"channel", c.name, "update_id", entry.id)
}

// commitLocked retires the entry and folds its updater into the
// authoritative value. Replaying onto the current authoritative state
// (rather than freezing the value computed at submission time)
// preserves deltas that arrived while the edit was pending.
func (c *Channel[T]) commitLocked(entry *optimisticEntry[T]) {
	c.removeEntryLocked(entry)
	c.authoritative = entry.updater(c.authoritative)
}

// revertLocked retires the entry. The visible value is recomputed from
// the latest authoritative state with the remaining entries replayed,
// which restores "as if this edit never happened" even when the
// authoritative value advanced while the edit was pending.
func (c *Channel[T]) revertLocked(entry *optimisticEntry[T]) {
	c.removeEntryLocked(entry)
}

func (c *Channel[T]) removeEntryLocked(entry *optimisticEntry[T]) {
	entry.retire()
	for i, candidate := range c.pending {
		if candidate == entry {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// PendingOptimistic returns the number of unresolved optimistic
// entries. Exposed for consumer stores that render an "unsaved
// changes" affordance.
func (c *Channel[T]) PendingOptimistic() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
