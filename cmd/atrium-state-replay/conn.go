// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"sync"

	"github.com/atrium-foundation/atrium/statesync"
)

// scriptedConn is the in-process facade the replay runs against.
// Snapshot responses come from a queue fed by the scenario; published
// payloads go straight to the registered handlers.
type scriptedConn struct {
	mu        sync.Mutex
	snapshots [][]byte
	handlers  map[string]func([]byte)
	observers []func(statesync.ConnectionState)
}

func newScriptedConn(initialSnapshot []byte) *scriptedConn {
	return &scriptedConn{
		snapshots: [][]byte{initialSnapshot},
		handlers:  make(map[string]func([]byte)),
	}
}

// queueSnapshot appends a response for the next fetch.
func (c *scriptedConn) queueSnapshot(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, payload)
}

func (c *scriptedConn) Call(_ context.Context, _ string, _ any, _ statesync.Scope) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snapshots) == 0 {
		return nil, errors.New("no snapshot scripted for this fetch")
	}
	payload := c.snapshots[0]
	if len(c.snapshots) > 1 {
		c.snapshots = c.snapshots[1:]
	}
	return payload, nil
}

func (c *scriptedConn) Subscribe(_ context.Context, channel string, _ statesync.Scope, handler func([]byte)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[channel] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, channel)
	}, nil
}

func (c *scriptedConn) SubscribeOptimistic(channel string, scope statesync.Scope, handler func([]byte)) func() {
	cancel, _ := c.Subscribe(context.Background(), channel, scope, handler)
	return cancel
}

func (c *scriptedConn) OnConnectionChange(handler func(statesync.ConnectionState)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, handler)
	return func() {}
}

// publish delivers payload to the subscriber on channel.
func (c *scriptedConn) publish(channel string, payload []byte) error {
	c.mu.Lock()
	handler, ok := c.handlers[channel]
	c.mu.Unlock()
	if !ok {
		return errors.New("no subscriber on " + channel)
	}
	handler(payload)
	return nil
}

// setConnection reports a connectivity transition.
func (c *scriptedConn) setConnection(state statesync.ConnectionState) {
	c.mu.Lock()
	observers := append(([]func(statesync.ConnectionState))(nil), c.observers...)
	c.mu.Unlock()
	for _, observer := range observers {
		observer(state)
	}
}
