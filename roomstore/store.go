// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package roomstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atrium-foundation/atrium/lib/serial"
	"github.com/atrium-foundation/atrium/lib/signal"
)

// Attachment is the channel set bound to one active resource. The
// binder constructs it during Select; Stop detaches every channel it
// started. Stop must be safe to call once per attachment.
type Attachment interface {
	Stop()
}

// Binder constructs and starts the attachment for a resource. A binder
// typically creates the resource's state channels, starts them, and
// registers shared handles in the store's Registry.
type Binder func(ctx context.Context, resourceID string) (Attachment, error)

// Options configures a Store.
type Options struct {
	// Binder builds the attachment when a resource becomes active.
	// Required.
	Binder Binder

	// Unread, when set, gives the store persistent per-resource unread
	// counters. Select clears the selected resource's counter.
	Unread *UnreadTracker

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// Store tracks which resource is active and owns its attachment.
// All methods are safe for concurrent use.
type Store struct {
	binder Binder
	unread *UnreadTracker
	logger *slog.Logger
	queue  *serial.Queue

	mu         sync.Mutex
	closed     bool
	activeID   string
	attachment Attachment

	registry *Registry
	active   *signal.Source[string]
	errValue *signal.Source[error]
}

// New creates a store with no active resource.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		binder:   opts.Binder,
		unread:   opts.Unread,
		logger:   logger,
		queue:    serial.NewQueue(),
		registry: NewRegistry(),
		active:   signal.New(""),
		errValue: signal.New[error](nil),
	}
}

// Select makes resourceID the active resource: the previous resource's
// attachment is stopped, collections and the error output reset, and
// the new resource's attachment built through the binder. Switches are
// strictly serialized; a switch queued behind others still runs in
// submission order, so the last Select to be submitted determines the
// final active resource.
//
// Selecting the already-active resource is a no-op. The returned error
// reports only context cancellation while queued or a closed store;
// binder failures surface on the error output with the resource left
// active and its attachment empty, so the caller's Select still
// resolves and the UI can render the failure.
func (s *Store) Select(ctx context.Context, resourceID string) error {
	return s.queue.Do(ctx, func(ctx context.Context) error {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return fmt.Errorf("roomstore: store closed")
		}
		if s.activeID == resourceID {
			s.mu.Unlock()
			return nil
		}
		previous := s.attachment
		previousID := s.activeID
		s.attachment = nil
		s.activeID = resourceID
		s.mu.Unlock()

		if previous != nil {
			previous.Stop()
			if previousID != "" {
				s.logger.Debug("detached resource", "resource", previousID)
			}
		}

		// The error output resets with the collections: a failure
		// belonging to the previous resource must not bleed into the
		// new one.
		s.errValue.Set(nil)
		s.active.Set(resourceID)
		if s.unread != nil && resourceID != "" {
			s.unread.Clear(resourceID)
		}
		if resourceID == "" {
			return nil
		}

		attachment, err := s.binder(ctx, resourceID)
		if err != nil {
			wrapped := fmt.Errorf("roomstore: attaching %s: %w", resourceID, err)
			s.logger.Warn("attach failed", "resource", resourceID, "error", err)
			s.errValue.Set(wrapped)
			return nil
		}

		s.mu.Lock()
		if s.closed || s.activeID != resourceID {
			// Closed while attaching. A later Select cannot have run:
			// the queue serializes them behind this one.
			s.mu.Unlock()
			attachment.Stop()
			return nil
		}
		s.attachment = attachment
		s.mu.Unlock()
		return nil
	})
}

// Deselect clears the active resource, stopping its attachment.
func (s *Store) Deselect(ctx context.Context) error {
	return s.Select(ctx, "")
}

// Active returns the id of the active resource, empty when none.
func (s *Store) Active() string { return s.active.Get() }

// Err returns the last attach failure, or nil. It resets on every
// switch.
func (s *Store) Err() error { return s.errValue.Get() }

// OnActive registers a listener for active-resource changes.
func (s *Store) OnActive(listener func(string)) (cancel func()) {
	return s.active.Subscribe(listener)
}

// OnError registers a listener for attach-failure changes (including
// clears to nil).
func (s *Store) OnError(listener func(error)) (cancel func()) {
	return s.errValue.Subscribe(listener)
}

// Registry returns the store's shared channel registry. Binders
// register handles here; Close stops whatever remains registered.
func (s *Store) Registry() *Registry { return s.registry }

// NoteActivity records n new records for resourceID. Activity on the
// active resource is considered read immediately; anything else
// increments the persistent unread counter. A no-op without an unread
// tracker.
func (s *Store) NoteActivity(resourceID string, n int) {
	if s.unread == nil || n <= 0 {
		return
	}
	if s.Active() == resourceID {
		return
	}
	s.unread.Add(resourceID, n)
}

// Unread returns the persistent unread counter for resourceID, zero
// without an unread tracker.
func (s *Store) Unread(resourceID string) int {
	if s.unread == nil {
		return 0
	}
	return s.unread.Count(resourceID)
}

// MarkRead clears the unread counter for resourceID.
func (s *Store) MarkRead(resourceID string) {
	if s.unread == nil {
		return
	}
	s.unread.Clear(resourceID)
}

// Close detaches the active resource and stops every registered
// channel. Select calls after Close fail.
func (s *Store) Close() {
	// Run through the queue so an in-flight switch finishes first.
	_ = s.queue.Do(context.Background(), func(context.Context) error {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil
		}
		s.closed = true
		attachment := s.attachment
		s.attachment = nil
		s.activeID = ""
		s.mu.Unlock()

		if attachment != nil {
			attachment.Stop()
		}
		s.registry.StopAll()
		s.active.Set("")
		return nil
	})
}
