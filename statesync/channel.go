// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atrium-foundation/atrium/lib/clock"
	"github.com/atrium-foundation/atrium/lib/signal"
)

// DefaultOptimisticTimeout bounds the speculative window for
// optimistic updates submitted without a confirmation. After this long
// without resolution the update reverts, so forgotten confirmations
// cannot let UI state drift from the server indefinitely.
const DefaultOptimisticTimeout = 10 * time.Second

// DecodeJSON is the default payload decoder: the snapshot is the JSON
// encoding of T.
func DecodeJSON[T any](payload []byte) (T, error) {
	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		return value, err
	}
	return value, nil
}

// Options configures a Channel. The zero value is usable: JSON
// decoding, full-replace merging, the default optimistic timeout, no
// polling, no auxiliary delta feed.
type Options[T any] struct {
	// SessionID scopes every RPC and subscription. Empty means
	// DefaultSessionID.
	SessionID string

	// RefreshInterval enables periodic snapshot re-fetch. Zero
	// disables polling.
	RefreshInterval time.Duration

	// OptimisticTimeout overrides DefaultOptimisticTimeout for
	// optimistic updates submitted without a confirmation.
	OptimisticTimeout time.Duration

	// NonBlocking makes Start return without awaiting subscription
	// acknowledgment; subscription failures are then logged instead
	// of failing Start.
	NonBlocking bool

	// UseOptimisticSubscriptions subscribes on the facade's
	// low-latency, non-confirmed path.
	UseOptimisticSubscriptions bool

	// EnableDeltas opens the auxiliary "<channel>.delta" feed,
	// applied through MergeDelta. Requires MergeDelta.
	EnableDeltas bool

	// MergeDelta applies auxiliary delta payloads.
	MergeDelta MergeDelta[T]

	// Merge combines main-feed payloads with the current snapshot.
	// Nil means Replace.
	Merge Merge[T]

	// Decode turns raw snapshot payloads into T. Nil means
	// DecodeJSON.
	Decode func(payload []byte) (T, error)

	// Cache, when set, persists the last good snapshot payload so a
	// consumer can Prime the channel before Start for instant first
	// paint.
	Cache *SnapshotCache

	// Debug enables verbose logging of fetches, deltas, and ledger
	// activity.
	Debug bool

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger

	// Clock injects time for timers and staleness. Nil means the real
	// clock.
	Clock clock.Clock
}

type lifecycle int

const (
	lifecycleStopped lifecycle = iota
	lifecycleStarting
	lifecycleRunning
)

// Channel binds one named server-side resource to one observable local
// snapshot of type T. Create with New, then Start. All methods are
// safe for concurrent use.
type Channel[T any] struct {
	conn   Conn
	name   string
	scope  Scope
	opts   Options[T]
	merge  Merge[T]
	decode func([]byte) (T, error)
	logger *slog.Logger
	clk    clock.Clock

	mu            sync.Mutex
	state         lifecycle
	startDone     chan struct{}
	startErr      error
	authoritative T
	loaded        bool
	pending       []*optimisticEntry[T]
	cancels       []func()
	refreshStop   chan struct{}
	degraded      bool

	value    *signal.Source[T]
	loading  *signal.Source[bool]
	errValue *signal.Source[error]
	lastSync *signal.Source[time.Time]
}

// New creates a stopped Channel bound to the named server resource.
func New[T any](conn Conn, name string, opts Options[T]) *Channel[T] {
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	merge := opts.Merge
	if merge == nil {
		merge = Replace[T]()
	}
	decode := opts.Decode
	if decode == nil {
		decode = DecodeJSON[T]
	}
	if opts.OptimisticTimeout == 0 {
		opts.OptimisticTimeout = DefaultOptimisticTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	var zero T
	return &Channel[T]{
		conn:     conn,
		name:     name,
		scope:    Scope{SessionID: sessionID},
		opts:     opts,
		merge:    merge,
		decode:   decode,
		logger:   logger,
		clk:      clk,
		value:    signal.New(zero),
		loading:  signal.New(false),
		errValue: signal.New[error](nil),
		lastSync: signal.New(time.Time{}),
	}
}

// Name returns the channel name this Channel is bound to.
func (c *Channel[T]) Name() string { return c.name }

// Start fetches the baseline snapshot, opens the subscriptions, and
// begins periodic refresh and reconnection recovery. A failed initial
// fetch sets the error output, clears loading, and is returned; the
// caller decides whether to retry.
//
// Start is safe under concurrent calls: a second Start while one is in
// flight waits for it and returns its result rather than subscribing
// twice. Starting a running channel is a no-op.
func (c *Channel[T]) Start(ctx context.Context) error {
	for {
		c.mu.Lock()
		switch c.state {
		case lifecycleRunning:
			c.mu.Unlock()
			return nil
		case lifecycleStarting:
			done := c.startDone
			c.mu.Unlock()
			<-done
			// Re-check: the concurrent Start may have failed, in
			// which case this call reports the same error.
			c.mu.Lock()
			if c.state == lifecycleStarting {
				c.mu.Unlock()
				continue
			}
			err := c.startErr
			c.mu.Unlock()
			return err
		}
		c.state = lifecycleStarting
		c.startDone = make(chan struct{})
		c.refreshStop = make(chan struct{})
		c.mu.Unlock()
		break
	}

	err := c.runStart(ctx)

	c.mu.Lock()
	if err != nil {
		c.state = lifecycleStopped
	} else {
		c.state = lifecycleRunning
	}
	c.startErr = err
	done := c.startDone
	c.mu.Unlock()
	close(done)
	return err
}

// runStart runs the start sequence. The channel is in
// lifecycleStarting, which keeps other Start and Stop calls parked
// until the sequence finishes.
func (c *Channel[T]) runStart(ctx context.Context) error {
	c.loading.Set(true)

	payload, decoded, err := c.fetchSnapshot(ctx)
	if err != nil {
		wrapped := fmt.Errorf("statesync: initial fetch for %s: %w", c.name, err)
		c.errValue.Set(wrapped)
		c.loading.Set(false)
		return wrapped
	}

	c.mu.Lock()
	c.authoritative = decoded
	c.loaded = true
	value := c.recomputeLocked()
	c.mu.Unlock()

	now := c.clk.Now()
	c.value.Set(value)
	c.lastSync.Set(now)
	c.errValue.Set(nil)
	c.loading.Set(false)
	c.saveToCache(payload, now)

	if err := c.subscribeFeeds(ctx); err != nil {
		c.teardown()
		c.errValue.Set(err)
		return err
	}

	if c.opts.RefreshInterval > 0 {
		ticker := c.clk.NewTicker(c.opts.RefreshInterval)
		c.mu.Lock()
		stop := c.refreshStop
		c.cancels = append(c.cancels, ticker.Stop)
		c.mu.Unlock()
		go c.refreshLoop(ticker, stop)
	}

	cancelObserver := c.conn.OnConnectionChange(c.handleConnectionChange)
	c.mu.Lock()
	c.cancels = append(c.cancels, cancelObserver)
	c.mu.Unlock()

	if c.opts.Debug {
		c.logger.Debug("state channel started", "channel", c.name, "session", c.scope.SessionID)
	}
	return nil
}

// subscribeFeeds opens the main feed and, when configured, the
// auxiliary delta feed. With NonBlocking set, acknowledged
// subscriptions are opened in the background and failures are logged
// rather than returned.
func (c *Channel[T]) subscribeFeeds(ctx context.Context) error {
	feeds := []struct {
		channel string
		handler func([]byte)
	}{
		{c.name, c.handleMain},
	}
	if c.opts.EnableDeltas && c.opts.MergeDelta != nil {
		feeds = append(feeds, struct {
			channel string
			handler func([]byte)
		}{c.name + ".delta", c.handleAux})
	}

	for _, feed := range feeds {
		if c.opts.UseOptimisticSubscriptions {
			cancel := c.conn.SubscribeOptimistic(feed.channel, c.scope, feed.handler)
			c.registerCancel(cancel)
			continue
		}
		if c.opts.NonBlocking {
			feed := feed
			// The subscription outlives Start's context.
			background := context.WithoutCancel(ctx)
			go func() {
				cancel, err := c.conn.Subscribe(background, feed.channel, c.scope, feed.handler)
				if err != nil {
					c.logger.Warn("non-blocking subscribe failed",
						"channel", feed.channel, "error", err)
					return
				}
				if !c.registerCancel(cancel) {
					// Channel stopped while the subscribe was in
					// flight; undo it.
					cancel()
				}
			}()
			continue
		}
		cancel, err := c.conn.Subscribe(ctx, feed.channel, c.scope, feed.handler)
		if err != nil {
			return fmt.Errorf("statesync: subscribing %s: %w", feed.channel, err)
		}
		c.registerCancel(cancel)
	}
	return nil
}

// registerCancel records an unsubscribe function for Stop. It returns
// false when the channel is already stopped (or stopping), in which
// case the caller owns the cancel.
func (c *Channel[T]) registerCancel(cancel func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == lifecycleStopped {
		return false
	}
	c.cancels = append(c.cancels, cancel)
	return true
}

// Stop cancels the subscriptions and the refresh timer and discards
// outstanding optimistic entries without invoking their reverts — the
// channel itself is going away. Safe to call repeatedly or on a
// channel that never started. The last observed value is left in
// place; a later Start re-fetches and replaces it.
func (c *Channel[T]) Stop() {
	for {
		c.mu.Lock()
		if c.state == lifecycleStarting {
			done := c.startDone
			c.mu.Unlock()
			<-done
			continue
		}
		c.mu.Unlock()
		break
	}
	c.teardown()
	c.loading.Set(false)
}

// teardown moves the channel to stopped and releases everything Start
// acquired. Idempotent.
func (c *Channel[T]) teardown() {
	c.mu.Lock()
	c.state = lifecycleStopped
	cancels := c.cancels
	c.cancels = nil
	if c.refreshStop != nil {
		close(c.refreshStop)
		c.refreshStop = nil
	}
	for _, entry := range c.pending {
		entry.retire()
	}
	c.pending = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Refresh re-fetches the snapshot and replaces the local value,
// last-fetch-wins. The error is returned to the explicit caller;
// internal invocations (reconnection, the refresh ticker) go through
// internalRefresh, which logs instead.
func (c *Channel[T]) Refresh(ctx context.Context) error {
	payload, decoded, err := c.fetchSnapshot(ctx)
	if err != nil {
		wrapped := fmt.Errorf("statesync: refresh for %s: %w", c.name, err)
		c.errValue.Set(wrapped)
		return wrapped
	}

	c.mu.Lock()
	c.authoritative = decoded
	c.loaded = true
	value := c.recomputeLocked()
	c.mu.Unlock()

	now := c.clk.Now()
	c.value.Set(value)
	c.lastSync.Set(now)
	c.errValue.Set(nil)
	c.saveToCache(payload, now)

	if c.opts.Debug {
		c.logger.Debug("snapshot refreshed", "channel", c.name)
	}
	return nil
}

// internalRefresh is the swallow-errors refresh used by the ticker and
// the reconnection path.
func (c *Channel[T]) internalRefresh(reason string) {
	if err := c.Refresh(context.Background()); err != nil {
		c.logger.Warn("background refresh failed",
			"channel", c.name, "reason", reason, "error", err)
	}
}

func (c *Channel[T]) refreshLoop(ticker *clock.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-ticker.C:
			c.internalRefresh("interval")
		case <-stop:
			return
		}
	}
}

// fetchSnapshot performs the RPC and decodes the payload.
func (c *Channel[T]) fetchSnapshot(ctx context.Context) ([]byte, T, error) {
	var zero T
	payload, err := c.conn.Call(ctx, c.name, nil, c.scope)
	if err != nil {
		return nil, zero, err
	}
	decoded, err := c.decode(payload)
	if err != nil {
		return nil, zero, fmt.Errorf("decoding snapshot: %w", err)
	}
	return payload, decoded, nil
}

// handleMain applies a payload from the main feed through the merge
// strategy.
func (c *Channel[T]) handleMain(payload []byte) {
	incoming, err := c.decode(payload)
	if err != nil {
		c.logger.Warn("dropping undecodable payload", "channel", c.name, "error", err)
		return
	}

	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		// Delta delivery order relative to the initial fetch is not
		// guaranteed by the transport.
		c.logger.Warn("delta before initial snapshot, ignoring", "channel", c.name)
		return
	}
	c.authoritative = c.merge(c.authoritative, incoming)
	value := c.recomputeLocked()
	c.mu.Unlock()

	c.value.Set(value)
	if c.opts.Debug {
		c.logger.Debug("merged main-feed payload", "channel", c.name)
	}
}

// handleAux applies a payload from the auxiliary delta feed through
// the caller-supplied MergeDelta.
func (c *Channel[T]) handleAux(payload []byte) {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		c.logger.Warn("delta before initial snapshot, ignoring", "channel", c.name+".delta")
		return
	}
	next, err := c.opts.MergeDelta(c.authoritative, payload)
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("dropping delta", "channel", c.name+".delta", "error", err)
		return
	}
	c.authoritative = next
	value := c.recomputeLocked()
	c.mu.Unlock()

	c.value.Set(value)
	if c.opts.Debug {
		c.logger.Debug("merged auxiliary delta", "channel", c.name)
	}
}

// handleConnectionChange drives reconnection recovery. Connectivity
// loss surfaces as a synthetic error without touching subscriptions —
// they resume on their own once the facade reconnects. Recovery
// triggers a hybrid refresh: re-fetch the snapshot to resolve
// divergence accumulated while offline, keeping subscriptions intact.
func (c *Channel[T]) handleConnectionChange(state ConnectionState) {
	switch state {
	case ConnectionConnected:
		c.mu.Lock()
		wasDegraded := c.degraded
		c.degraded = false
		c.mu.Unlock()
		if wasDegraded {
			go c.internalRefresh("reconnect")
		}
	case ConnectionDisconnected:
		c.mu.Lock()
		c.degraded = true
		c.mu.Unlock()
		c.errValue.Set(ErrTransportDown)
	case ConnectionError:
		c.mu.Lock()
		c.degraded = true
		c.mu.Unlock()
		c.errValue.Set(ErrTransportFailed)
	}
}

// recomputeLocked rebuilds the visible value: the authoritative
// snapshot with every pending optimistic updater replayed in
// submission order. Callers hold c.mu and publish the returned value
// on the value signal after unlocking.
func (c *Channel[T]) recomputeLocked() T {
	value := c.authoritative
	for _, entry := range c.pending {
		value = entry.updater(value)
	}
	return value
}

// Value returns the current snapshot. Before the first fetch (or
// Prime) it is the zero value of T; HasValue distinguishes.
func (c *Channel[T]) Value() T { return c.value.Get() }

// HasValue reports whether a snapshot has been applied.
func (c *Channel[T]) HasValue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Loading reports whether an initial fetch is in flight.
func (c *Channel[T]) Loading() bool { return c.loading.Get() }

// Err returns the last error, or nil. A non-nil value while the
// channel keeps running means degraded, not dead.
func (c *Channel[T]) Err() error { return c.errValue.Get() }

// LastSync returns the time of the last successful snapshot fetch,
// zero until the first one.
func (c *Channel[T]) LastSync() time.Time { return c.lastSync.Get() }

// IsStale reports whether the channel has never synced or last synced
// longer than maxAge ago.
func (c *Channel[T]) IsStale(maxAge time.Duration) bool {
	last := c.lastSync.Get()
	if last.IsZero() {
		return true
	}
	return c.clk.Now().Sub(last) > maxAge
}

// OnValue registers a listener for snapshot changes. The listener runs
// synchronously with each change; the returned cancel unregisters it.
func (c *Channel[T]) OnValue(listener func(T)) (cancel func()) {
	return c.value.Subscribe(listener)
}

// OnError registers a listener for error output changes (including
// clears to nil).
func (c *Channel[T]) OnError(listener func(error)) (cancel func()) {
	return c.errValue.Subscribe(listener)
}

// OnLoading registers a listener for loading flag changes.
func (c *Channel[T]) OnLoading(listener func(bool)) (cancel func()) {
	return c.loading.Subscribe(listener)
}
