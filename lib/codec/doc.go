// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for locally persisted
// sync records (unread counters, cached snapshots).
//
// Encoding is Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer forms, no indefinite-length items. The same
// logical record always produces identical bytes, which keeps the
// content digests stored next to cached snapshots meaningful.
//
// Decoding accepts standard CBOR and ignores unknown fields, so
// records written by a newer build remain readable by an older one.
package codec
