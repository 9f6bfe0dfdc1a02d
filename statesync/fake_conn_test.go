// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import (
	"context"
	"errors"
	"sync"
)

// fakeConn is an in-process Conn for tests. Snapshot responses are
// scripted as a queue (the last one repeats); subscriptions record
// their handlers so tests can publish payloads directly.
type fakeConn struct {
	mu           sync.Mutex
	snapshots    [][]byte
	callErr      error
	callCount    int
	subErr       error
	handlers     map[string]func([]byte)
	optimistic   map[string]bool
	unsubscribed []string
	observers    map[int]func(ConnectionState)
	nextObserver int
}

func newFakeConn(snapshots ...string) *fakeConn {
	conn := &fakeConn{
		handlers:   make(map[string]func([]byte)),
		optimistic: make(map[string]bool),
		observers:  make(map[int]func(ConnectionState)),
	}
	for _, snapshot := range snapshots {
		conn.snapshots = append(conn.snapshots, []byte(snapshot))
	}
	return conn
}

func (f *fakeConn) Call(_ context.Context, _ string, _ any, _ Scope) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	if f.callErr != nil {
		return nil, f.callErr
	}
	if len(f.snapshots) == 0 {
		return nil, errors.New("no snapshot scripted")
	}
	payload := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return payload, nil
}

func (f *fakeConn) Subscribe(_ context.Context, channel string, _ Scope, handler func([]byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.handlers[channel] = handler
	return f.cancelFor(channel), nil
}

func (f *fakeConn) SubscribeOptimistic(channel string, _ Scope, handler func([]byte)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[channel] = handler
	f.optimistic[channel] = true
	return f.cancelFor(channel)
}

// cancelFor builds the unsubscribe closure for channel. Caller holds
// f.mu.
func (f *fakeConn) cancelFor(channel string) func() {
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.handlers[channel]; !ok {
			return
		}
		delete(f.handlers, channel)
		f.unsubscribed = append(f.unsubscribed, channel)
	}
}

func (f *fakeConn) OnConnectionChange(handler func(ConnectionState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextObserver
	f.nextObserver++
	f.observers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.observers, id)
	}
}

// publish delivers a payload to the handler subscribed on channel, as
// the facade's delivery goroutine would.
func (f *fakeConn) publish(channel, payload string) bool {
	f.mu.Lock()
	handler, ok := f.handlers[channel]
	f.mu.Unlock()
	if !ok {
		return false
	}
	handler([]byte(payload))
	return true
}

// setConnection reports a connectivity transition to every observer.
func (f *fakeConn) setConnection(state ConnectionState) {
	f.mu.Lock()
	observers := make([]func(ConnectionState), 0, len(f.observers))
	for _, observer := range f.observers {
		observers = append(observers, observer)
	}
	f.mu.Unlock()
	for _, observer := range observers {
		observer(state)
	}
}

func (f *fakeConn) subscribedTo(channel string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[channel]
	return ok
}

func (f *fakeConn) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}
