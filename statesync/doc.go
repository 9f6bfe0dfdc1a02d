// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package statesync keeps a locally observed snapshot of
// server-authoritative state consistent over an unreliable,
// reconnecting transport.
//
// A [Channel] binds one named server-side resource (for example
// "state.messages") to one observable local snapshot. Start fetches
// the authoritative snapshot over RPC, subscribes to the resource's
// delta feed, and from then on folds deltas into the local value
// through a configurable merge strategy. Consumers read the snapshot
// with Value and observe changes with OnValue; loading, error, and
// last-sync-time outputs drive "loading", "stale", and "degraded" UI
// affordances.
//
// The channel supports speculative local edits: UpdateOptimistic
// applies an updater to the visible value immediately and registers
// the edit in a ledger. The edit is confirmed (kept) or rolled back
// when its confirmation resolves, or rolled back automatically when a
// deadline passes without confirmation. Rollback recomputes the
// visible value from the latest authoritative state, so an unrelated
// delta that arrived while the edit was pending is not lost.
//
// Transport connectivity is observed through the [Conn] facade. On
// reconnection the channel re-fetches the snapshot without tearing
// down its subscriptions (a "hybrid refresh"), resolving whatever
// divergence accumulated while offline. Disconnection surfaces as a
// synthetic error on the channel's error output; subscriptions stay
// registered and resume when the transport recovers.
//
// The package does not implement a transport. [Conn] is consumed, not
// produced: production code hands the channel the application's
// connection facade, tests hand it an in-process fake.
package statesync
