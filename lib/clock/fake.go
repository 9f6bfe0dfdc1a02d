// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only through
// Advance. Safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.registered = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. Timers and tickers
// registered against it fire during Advance, in deadline order, on the
// goroutine calling Advance. Do not call Advance from inside an
// AfterFunc callback.
type FakeClock struct {
	mu         sync.Mutex
	now        time.Time
	pending    []*fakeTimer
	registered *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	callback func()          // AfterFunc timers
	channel  chan time.Time  // ticker timers
	interval time.Duration   // non-zero for tickers
	done     bool            // fired (one-shot) or stopped
}

// Now returns the frozen current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to fire when the clock advances past d. If
// d <= 0, f runs synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}

	c.mu.Lock()
	timer := &fakeTimer{deadline: c.now.Add(d), callback: f}
	c.pending = append(c.pending, timer)
	c.registered.Broadcast()
	c.mu.Unlock()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if timer.done {
			return false
		}
		timer.done = true
		return true
	}}
}

// NewTicker registers a repeating timer delivering on its C channel
// each time the clock advances past the next interval boundary.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	timer := &fakeTimer{
		deadline: c.now.Add(d),
		channel:  make(chan time.Time, 1),
		interval: d,
	}
	c.pending = append(c.pending, timer)
	c.registered.Broadcast()
	c.mu.Unlock()

	return &Ticker{
		C: timer.channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			timer.done = true
		},
	}
}

// Advance moves the clock forward by d and fires every timer whose
// deadline falls within the new time, in deadline order. AfterFunc
// callbacks run synchronously on the calling goroutine; ticker sends
// are non-blocking (ticks are dropped when the buffer is full).
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		expired := c.takeExpired(target)
		if len(expired) == 0 {
			return
		}
		sort.Slice(expired, func(i, j int) bool {
			return expired[i].deadline.Before(expired[j].deadline)
		})
		for _, timer := range expired {
			if timer.callback != nil {
				timer.callback()
				continue
			}
			select {
			case timer.channel <- target:
			default:
			}
		}
	}
}

// takeExpired removes timers due at or before target from the pending
// list and returns them. Tickers are rescheduled for their next
// interval instead of being removed.
func (c *FakeClock) takeExpired(target time.Time) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired, remaining []*fakeTimer
	for _, timer := range c.pending {
		if timer.done {
			continue
		}
		if timer.deadline.After(target) {
			remaining = append(remaining, timer)
			continue
		}
		expired = append(expired, timer)
		if timer.interval > 0 {
			timer.deadline = timer.deadline.Add(timer.interval)
			remaining = append(remaining, timer)
		} else {
			timer.done = true
		}
	}
	c.pending = remaining
	return expired
}

// WaitForTimers blocks until at least n timers or tickers are pending.
// This removes the race between a goroutine registering a timer and
// the test advancing the clock.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.registered.Wait()
	}
}

// PendingCount returns the number of live pending timers and tickers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, timer := range c.pending {
		if !timer.done {
			count++
		}
	}
	return count
}
