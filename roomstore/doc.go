// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package roomstore is the consumer-side store binding the active
// resource (a room, a session) to its set of state channels.
//
// Switching resources is the hazardous operation: the channels of the
// previous resource must be fully detached before the next resource's
// channels attach, or a stale subscription can deliver into the new
// resource's collections. Store.Select serializes the whole switch
// {detach old, reset, attach new} through a strict FIFO queue, so
// overlapping switches cannot interleave and the last requested
// resource always wins.
//
// The store also owns the channel registry shared by attachments and
// per-resource unread counters persisted through an injected key-value
// store.
package roomstore
