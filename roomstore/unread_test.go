// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package roomstore

import (
	"context"
	"testing"

	"github.com/atrium-foundation/atrium/lib/kv"
)

func TestUnreadTracker(t *testing.T) {
	store := kv.NewMemory()
	tracker := NewUnreadTracker(store, nil)

	tracker.Add("room-a", 2)
	tracker.Add("room-a", 1)
	tracker.Add("room-b", 5)
	if got := tracker.Count("room-a"); got != 3 {
		t.Errorf("room-a count = %d, want 3", got)
	}
	if got := tracker.Count("room-c"); got != 0 {
		t.Errorf("unknown resource count = %d, want 0", got)
	}

	t.Run("counts survive a restart", func(t *testing.T) {
		reopened := NewUnreadTracker(store, nil)
		if got := reopened.Count("room-a"); got != 3 {
			t.Errorf("room-a count after restart = %d, want 3", got)
		}
		if got := reopened.Count("room-b"); got != 5 {
			t.Errorf("room-b count after restart = %d, want 5", got)
		}
	})

	t.Run("clear removes the persisted record", func(t *testing.T) {
		tracker.Clear("room-a")
		if got := tracker.Count("room-a"); got != 0 {
			t.Errorf("count after Clear = %d, want 0", got)
		}
		reopened := NewUnreadTracker(store, nil)
		if got := reopened.Count("room-a"); got != 0 {
			t.Errorf("count after Clear and restart = %d, want 0", got)
		}
	})

	t.Run("counts snapshot", func(t *testing.T) {
		counts := tracker.Counts()
		if counts["room-b"] != 5 {
			t.Errorf("Counts()[room-b] = %d, want 5", counts["room-b"])
		}
	})
}

func TestStoreUnreadIntegration(t *testing.T) {
	binder := &recordingBinder{}
	tracker := NewUnreadTracker(kv.NewMemory(), nil)
	store := New(Options{Binder: binder.bind, Unread: tracker})
	t.Cleanup(store.Close)
	ctx := context.Background()

	if err := store.Select(ctx, "room-a"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	// Activity on the active resource is read immediately; activity
	// elsewhere accumulates.
	store.NoteActivity("room-a", 3)
	store.NoteActivity("room-b", 2)
	if got := store.Unread("room-a"); got != 0 {
		t.Errorf("active resource unread = %d, want 0", got)
	}
	if got := store.Unread("room-b"); got != 2 {
		t.Errorf("inactive resource unread = %d, want 2", got)
	}

	t.Run("selecting clears the counter", func(t *testing.T) {
		if err := store.Select(ctx, "room-b"); err != nil {
			t.Fatalf("Select: %v", err)
		}
		if got := store.Unread("room-b"); got != 0 {
			t.Errorf("unread after select = %d, want 0", got)
		}
	})

	t.Run("mark read clears without selecting", func(t *testing.T) {
		store.NoteActivity("room-c", 4)
		store.MarkRead("room-c")
		if got := store.Unread("room-c"); got != 0 {
			t.Errorf("unread after MarkRead = %d, want 0", got)
		}
	})
}
