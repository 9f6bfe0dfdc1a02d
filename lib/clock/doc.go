// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that timer
// behavior is deterministic under test.
//
// Production code accepts a Clock instead of calling time.Now,
// time.AfterFunc, or time.NewTicker directly. Real() is the standard
// library behavior; Fake() is a clock that only moves when Advance is
// called.
//
// The state channel uses a Clock for three things: the optimistic
// update deadline (AfterFunc), the periodic snapshot refresh
// (NewTicker), and staleness queries (Now). Tests drive all three with
// a FakeClock:
//
//	c := clock.Fake(time.Unix(1000, 0))
//	// ... hand c to the code under test, start goroutines ...
//	c.WaitForTimers(1)          // block until a timer is registered
//	c.Advance(10 * time.Second) // fire it deterministically
package clock
