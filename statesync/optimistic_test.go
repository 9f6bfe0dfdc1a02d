// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import (
	"errors"
	"testing"
	"time"

	"github.com/atrium-foundation/atrium/lib/clock"
	"github.com/atrium-foundation/atrium/lib/testutil"
)

func appendItem(item string) func(todoState) todoState {
	return func(current todoState) todoState {
		items := append(append([]string(nil), current.Items...), item)
		return todoState{Items: items}
	}
}

func TestOptimisticApply(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, _ := startedChannel(t, conn, Options[todoState]{})

	channel.UpdateOptimistic("add-x", appendItem("x"), make(chan error))
	requireItems(t, channel, "a", "x")
	if got := channel.PendingOptimistic(); got != 1 {
		t.Errorf("PendingOptimistic = %d, want 1", got)
	}
}

func TestOptimisticConfirmCommit(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, _ := startedChannel(t, conn, Options[todoState]{})

	confirmation := make(chan error, 1)
	channel.UpdateOptimistic("add-x", appendItem("x"), confirmation)
	confirmation <- nil

	testutil.Eventually(t, time.Second, func() bool {
		return channel.PendingOptimistic() == 0
	}, "waiting for the confirmation to commit")
	requireItems(t, channel, "a", "x")

	// Committed state is authoritative: a later replace that includes
	// the item does not double it.
	conn.publish("todos", `{"items":["a","x"]}`)
	requireItems(t, channel, "a", "x")
}

func TestOptimisticClosedConfirmationCommits(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, _ := startedChannel(t, conn, Options[todoState]{})

	confirmation := make(chan error)
	channel.UpdateOptimistic("add-x", appendItem("x"), confirmation)
	close(confirmation)

	testutil.Eventually(t, time.Second, func() bool {
		return channel.PendingOptimistic() == 0
	}, "waiting for the closed confirmation to commit")
	requireItems(t, channel, "a", "x")
}

func TestOptimisticConfirmError(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, _ := startedChannel(t, conn, Options[todoState]{})

	confirmation := make(chan error, 1)
	channel.UpdateOptimistic("add-x", appendItem("x"), confirmation)
	requireItems(t, channel, "a", "x")
	confirmation <- errors.New("rejected by server")

	testutil.Eventually(t, time.Second, func() bool {
		return channel.PendingOptimistic() == 0
	}, "waiting for the rejection to revert")
	requireItems(t, channel, "a")
}

func TestOptimisticTimeout(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, fc := startedChannel(t, conn, Options[todoState]{})

	channel.UpdateOptimistic("add-x", appendItem("x"), nil)
	requireItems(t, channel, "a", "x")

	fc.Advance(DefaultOptimisticTimeout - time.Second)
	requireItems(t, channel, "a", "x")

	fc.Advance(time.Second)
	requireItems(t, channel, "a")
	if got := channel.PendingOptimistic(); got != 0 {
		t.Errorf("PendingOptimistic = %d after timeout, want 0", got)
	}
}

func TestOptimisticTimeoutOverride(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, fc := startedChannel(t, conn, Options[todoState]{
		OptimisticTimeout: 2 * time.Second,
	})

	channel.UpdateOptimistic("add-x", appendItem("x"), nil)
	fc.Advance(2 * time.Second)
	requireItems(t, channel, "a")
}

func TestOptimisticRevertKeepsInterveningDeltas(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, fc := startedChannel(t, conn, Options[todoState]{})

	channel.UpdateOptimistic("add-x", appendItem("x"), nil)
	// The server advances while the edit is pending; the replayed edit
	// stays on top of the new snapshot.
	conn.publish("todos", `{"items":["a","b"]}`)
	requireItems(t, channel, "a", "b", "x")

	// The revert undoes only the edit, not the delta.
	fc.Advance(DefaultOptimisticTimeout)
	requireItems(t, channel, "a", "b")
}

func TestOptimisticCommitKeepsInterveningDeltas(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, _ := startedChannel(t, conn, Options[todoState]{})

	confirmation := make(chan error, 1)
	channel.UpdateOptimistic("add-x", appendItem("x"), confirmation)
	conn.publish("todos", `{"items":["a","b"]}`)
	confirmation <- nil

	testutil.Eventually(t, time.Second, func() bool {
		return channel.PendingOptimistic() == 0
	}, "waiting for the commit")
	requireItems(t, channel, "a", "b", "x")
}

func TestOptimisticSupersede(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, _ := startedChannel(t, conn, Options[todoState]{})

	first := make(chan error, 1)
	channel.UpdateOptimistic("edit", appendItem("draft"), first)
	channel.UpdateOptimistic("edit", appendItem("final"), make(chan error))
	requireItems(t, channel, "a", "final")
	if got := channel.PendingOptimistic(); got != 1 {
		t.Fatalf("PendingOptimistic = %d after supersede, want 1", got)
	}

	// The superseded entry's confirmation no longer has any effect.
	first <- errors.New("rejected")
	time.Sleep(10 * time.Millisecond)
	requireItems(t, channel, "a", "final")
	if got := channel.PendingOptimistic(); got != 1 {
		t.Errorf("PendingOptimistic = %d after a stale rejection, want 1", got)
	}
}

func TestOptimisticSupersedeDetachesTimer(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, fc := startedChannel(t, conn, Options[todoState]{})

	channel.UpdateOptimistic("edit", appendItem("draft"), nil)
	fc.Advance(DefaultOptimisticTimeout / 2)
	channel.UpdateOptimistic("edit", appendItem("final"), nil)

	// The first entry's deadline passes; only the second edit's own
	// deadline may revert it.
	fc.Advance(DefaultOptimisticTimeout / 2)
	requireItems(t, channel, "a", "final")

	fc.Advance(DefaultOptimisticTimeout / 2)
	requireItems(t, channel, "a")
}

func TestOptimisticBeforeLoad(t *testing.T) {
	conn := newFakeConn()
	channel := New(conn, "todos", Options[todoState]{Clock: clock.Fake(testEpoch)})

	channel.UpdateOptimistic("add-x", appendItem("x"), nil)
	if got := channel.PendingOptimistic(); got != 0 {
		t.Errorf("PendingOptimistic = %d before load, want 0", got)
	}
	if channel.HasValue() {
		t.Error("optimistic update before load produced a value")
	}
}

func TestOptimisticStackedUpdates(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, fc := startedChannel(t, conn, Options[todoState]{})

	confirmation := make(chan error, 1)
	channel.UpdateOptimistic("add-x", appendItem("x"), confirmation)
	channel.UpdateOptimistic("add-y", appendItem("y"), nil)
	requireItems(t, channel, "a", "x", "y")

	// Committing the first keeps the second pending on top.
	confirmation <- nil
	testutil.Eventually(t, time.Second, func() bool {
		return channel.PendingOptimistic() == 1
	}, "waiting for the first edit to commit")
	requireItems(t, channel, "a", "x", "y")

	// The second times out and reverts alone.
	fc.Advance(DefaultOptimisticTimeout)
	requireItems(t, channel, "a", "x")
}

func TestStopDiscardsPending(t *testing.T) {
	conn := newFakeConn(`{"items":["a"]}`)
	channel, fc := startedChannel(t, conn, Options[todoState]{})

	channel.UpdateOptimistic("add-x", appendItem("x"), nil)
	channel.Stop()
	if got := channel.PendingOptimistic(); got != 0 {
		t.Errorf("PendingOptimistic = %d after Stop, want 0", got)
	}
	// The detached timer firing later must not panic or resurrect the
	// entry.
	fc.Advance(DefaultOptimisticTimeout)
}
