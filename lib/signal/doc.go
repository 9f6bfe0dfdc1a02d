// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package signal provides a minimal observable value: a current value
// plus a listener list with synchronous notification on write.
//
// A Source is readable at any time with Get, including from outside a
// notification callback. Set stores the new value and then invokes
// every registered listener with it before returning. There is no
// coalescing: every Set produces one notification per listener, even
// when the value is unchanged.
//
// Sources carry the observable outputs of a state channel (current
// snapshot, loading flag, last error, last sync time) to consumer
// stores without pulling in a reactive framework.
package signal
