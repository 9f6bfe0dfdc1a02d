// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import "testing"

func TestGetReturnsInitialValue(t *testing.T) {
	source := New(42)
	if got := source.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}
}

func TestSetNotifiesSynchronously(t *testing.T) {
	source := New("")
	var seen []string
	source.Subscribe(func(value string) {
		seen = append(seen, value)
	})

	source.Set("a")
	if len(seen) != 1 || seen[0] != "a" {
		t.Fatalf("listener not invoked synchronously: seen = %v", seen)
	}

	// No coalescing: repeated writes of the same value each notify.
	source.Set("a")
	if len(seen) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(seen))
	}
}

func TestListenerCanReadSource(t *testing.T) {
	source := New(0)
	var observed int
	source.Subscribe(func(int) {
		// Get from inside a notification must not deadlock and must
		// see the just-written value.
		observed = source.Get()
	})
	source.Set(7)
	if observed != 7 {
		t.Errorf("Get inside listener = %d, want 7", observed)
	}
}

func TestNotificationOrder(t *testing.T) {
	source := New(0)
	var order []string
	source.Subscribe(func(int) { order = append(order, "first") })
	source.Subscribe(func(int) { order = append(order, "second") })

	source.Set(1)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("listeners fired out of registration order: %v", order)
	}
}

func TestCancelRemovesListener(t *testing.T) {
	source := New(0)
	calls := 0
	cancel := source.Subscribe(func(int) { calls++ })

	source.Set(1)
	cancel()
	source.Set(2)
	cancel() // safe to call twice

	if calls != 1 {
		t.Errorf("expected 1 call after cancel, got %d", calls)
	}
}

func TestSubscribeDoesNotReplayCurrentValue(t *testing.T) {
	source := New("existing")
	called := false
	source.Subscribe(func(string) { called = true })
	if called {
		t.Error("listener invoked at subscription time")
	}
}
