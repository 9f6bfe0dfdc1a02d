// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package kv provides the small key-value persistence interface the
// sync core uses for locally durable state: per-room unread counters
// and cached snapshots.
//
// The interface exists so consumers and tests can swap the backing
// store. Memory is the test implementation. File persists each record
// as its own file under a directory: values are zstd-compressed when
// that saves space, and every record carries a BLAKE3 digest of the
// raw value so corruption (truncated writes, bit rot) surfaces as an
// explicit error on read instead of as garbage state.
package kv
