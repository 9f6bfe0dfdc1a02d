// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import "context"

// Scope identifies the caller on every RPC and subscribe call, letting
// the server multiplex per-caller state on a shared channel name. The
// zero SessionID is replaced with DefaultSessionID by the channel.
type Scope struct {
	SessionID string `json:"sessionId"`
}

// DefaultSessionID is the scope used by channels not bound to a
// specific session or room.
const DefaultSessionID = "global"

// ConnectionState describes transport connectivity as reported by the
// Conn facade.
type ConnectionState int

const (
	// ConnectionConnected means the transport is up and delivering.
	ConnectionConnected ConnectionState = iota

	// ConnectionDisconnected means the transport is down and the
	// facade is reconnecting on its own schedule.
	ConnectionDisconnected

	// ConnectionError means the transport failed in a way the facade
	// could not classify as a plain disconnect.
	ConnectionError
)

// String returns the state name used in logs.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionError:
		return "error"
	default:
		return "unknown"
	}
}

// Conn is the connection facade a Channel runs against. Implementations
// own the wire protocol (framing, reconnection, backoff); channels only
// issue RPCs, register subscription handlers, and observe connectivity.
//
// Handlers are invoked from the facade's delivery goroutine; channels
// do their own locking and keep handler bodies short.
type Conn interface {
	// Call performs an RPC against the named channel and returns the
	// raw response payload.
	Call(ctx context.Context, channel string, request any, scope Scope) ([]byte, error)

	// Subscribe registers handler for payloads published to the named
	// channel, awaiting the server's acknowledgment. The returned
	// cancel function unregisters the handler and is safe to call
	// more than once.
	Subscribe(ctx context.Context, channel string, scope Scope, handler func(payload []byte)) (cancel func(), err error)

	// SubscribeOptimistic registers handler on the low-latency path:
	// no server acknowledgment is awaited, so delivery before the
	// registration propagates may be missed.
	SubscribeOptimistic(channel string, scope Scope, handler func(payload []byte)) (cancel func())

	// OnConnectionChange registers an observer for connectivity
	// transitions. The current state is not replayed; only
	// transitions after registration are delivered.
	OnConnectionChange(handler func(state ConnectionState)) (cancel func())
}
