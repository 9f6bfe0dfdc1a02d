// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import (
	"context"
	"testing"
	"time"

	"github.com/atrium-foundation/atrium/lib/clock"
	"github.com/atrium-foundation/atrium/lib/config"
)

func TestOptionsFrom(t *testing.T) {
	section := config.Channel{
		RefreshInterval:         config.Duration(30 * time.Second),
		OptimisticTimeout:       config.Duration(5 * time.Second),
		EnableDeltas:            true,
		NonBlocking:             true,
		OptimisticSubscriptions: true,
		Debug:                   true,
	}

	opts := OptionsFrom[todoState](section, "room-7")
	if opts.SessionID != "room-7" {
		t.Errorf("SessionID = %q", opts.SessionID)
	}
	if opts.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %v", opts.RefreshInterval)
	}
	if opts.OptimisticTimeout != 5*time.Second {
		t.Errorf("OptimisticTimeout = %v", opts.OptimisticTimeout)
	}
	if !opts.EnableDeltas || !opts.NonBlocking || !opts.UseOptimisticSubscriptions || !opts.Debug {
		t.Error("boolean settings not carried over")
	}
}

func TestOptionsFromDrivesChannel(t *testing.T) {
	cfg := config.Default()
	section := cfg.For("state.todos")

	conn := newFakeConn(`{"items":["a"]}`)
	fc := clock.Fake(testEpoch)
	opts := OptionsFrom[todoState](section, cfg.SessionID)
	opts.Clock = fc

	channel := New(conn, "state.todos", opts)
	if err := channel.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(channel.Stop)

	requireItems(t, channel, "a")
	if channel.scope.SessionID != "global" {
		t.Errorf("scope session %q, want global", channel.scope.SessionID)
	}

	// The built-in default timeout flows through to the ledger.
	channel.UpdateOptimistic("add-x", appendItem("x"), nil)
	fc.Advance(10 * time.Second)
	requireItems(t, channel, "a")
}
