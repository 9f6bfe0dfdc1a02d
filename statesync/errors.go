// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import "errors"

// Synthetic errors surfaced on a channel's error output when the
// transport degrades. They describe connectivity, not a failed
// operation: subscriptions stay registered and the channel recovers on
// its own when the facade reconnects.
var (
	// ErrTransportDown is set while the facade reports the transport
	// disconnected.
	ErrTransportDown = errors.New("statesync: transport disconnected")

	// ErrTransportFailed is set when the facade reports a transport
	// error it could not classify as a plain disconnect.
	ErrTransportFailed = errors.New("statesync: transport error")
)
