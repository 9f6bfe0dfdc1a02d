// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import (
	"sort"
	"time"
)

// Merge combines the current snapshot with an incoming payload from
// the channel's main feed, producing the next snapshot. Strategies are
// selected by configuration, never by sniffing the payload shape.
//
// A Merge must not mutate either argument; it returns a new value.
type Merge[T any] func(current, incoming T) T

// Replace is the default strategy: the incoming payload is the whole
// new snapshot.
func Replace[T any]() Merge[T] {
	return func(_, incoming T) T { return incoming }
}

// Record is one entry of an ordered, id-keyed append log (messages,
// transcript lines). Identity and timestamp drive the ordered-log
// merge.
type Record interface {
	// RecordID identifies the record across deliveries.
	RecordID() string

	// RecordTime orders the record within the log.
	RecordTime() time.Time
}

// OrderedLog merges id-keyed record batches: records are deduplicated
// by id with the incoming batch winning, and the result is sorted
// ascending by timestamp (ties broken by id for determinism).
//
// Re-delivery of a record is idempotent, and out-of-order delivery
// still yields a monotonically timestamp-ordered view.
func OrderedLog[R Record]() Merge[[]R] {
	return func(current, incoming []R) []R {
		byID := make(map[string]R, len(current)+len(incoming))
		for _, record := range current {
			byID[record.RecordID()] = record
		}
		for _, record := range incoming {
			byID[record.RecordID()] = record
		}

		merged := make([]R, 0, len(byID))
		for _, record := range byID {
			merged = append(merged, record)
		}
		sort.Slice(merged, func(i, j int) bool {
			ti, tj := merged[i].RecordTime(), merged[j].RecordTime()
			if ti.Equal(tj) {
				return merged[i].RecordID() < merged[j].RecordID()
			}
			return ti.Before(tj)
		})
		return merged
	}
}

// MergeDelta applies a payload from the auxiliary "<channel>.delta"
// feed to the current snapshot. The payload bytes are passed through
// undecoded because delta shapes are channel-specific; the function
// owns both decoding and application. Returning an error drops the
// delta with a logged warning.
type MergeDelta[T any] func(current T, delta []byte) (T, error)
