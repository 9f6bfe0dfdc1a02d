// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atrium-foundation/atrium/lib/clock"
	"github.com/atrium-foundation/atrium/statesync"
)

// settleTimeout bounds waits on the channel's background goroutines
// (confirmation watchers, the reconnect refresh).
const settleTimeout = 2 * time.Second

// replayRecord is the record shape for ordered-log scenarios.
type replayRecord struct {
	ID   string          `json:"id"`
	At   time.Time       `json:"at"`
	Body json.RawMessage `json:"body,omitempty"`
}

func (r replayRecord) RecordID() string      { return r.ID }
func (r replayRecord) RecordTime() time.Time { return r.At }

// replay drives one channel through a scenario's event list. The
// updater factory turns an optimistic event's payload into a local
// edit, which is where the ordered-log and replace modes differ.
type replay[T any] struct {
	scenario *scenario
	conn     *scriptedConn
	channel  *statesync.Channel[T]
	clk      *clock.FakeClock
	updater  func(payload json.RawMessage) (func(T) T, error)
	verbose  bool
}

func (r *replay[T]) run(ctx context.Context) error {
	if err := r.channel.Start(ctx); err != nil {
		return err
	}
	defer r.channel.Stop()

	for i, ev := range r.scenario.Events {
		if r.verbose {
			fmt.Printf("# event %d: %s\n", i, ev.Type)
		}
		if err := r.apply(ctx, ev); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, ev.Type, err)
		}
	}

	return r.printResult()
}

func (r *replay[T]) apply(ctx context.Context, ev event) error {
	name := r.channel.Name()
	switch ev.Type {
	case "publish":
		return r.conn.publish(name, ev.Payload)
	case "delta":
		return r.conn.publish(name+".delta", ev.Payload)
	case "disconnect":
		r.conn.setConnection(statesync.ConnectionDisconnected)
		return nil
	case "error":
		r.conn.setConnection(statesync.ConnectionError)
		return nil
	case "connect":
		degraded := r.channel.Err() != nil
		r.conn.setConnection(statesync.ConnectionConnected)
		if degraded {
			// The recovery refresh runs on its own goroutine; wait
			// for it so the next event sees the refreshed state.
			return r.settle(func() bool { return r.channel.Err() == nil })
		}
		return nil
	case "refresh":
		r.conn.queueSnapshot(ev.Payload)
		return r.channel.Refresh(ctx)
	case "optimistic":
		return r.applyOptimistic(ev)
	case "advance":
		duration, err := time.ParseDuration(ev.Duration)
		if err != nil {
			return err
		}
		r.clk.Advance(duration)
		return nil
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (r *replay[T]) applyOptimistic(ev event) error {
	updater, err := r.updater(ev.Payload)
	if err != nil {
		return err
	}

	switch ev.Outcome {
	case "confirm", "reject":
		confirmation := make(chan error, 1)
		if ev.Outcome == "confirm" {
			confirmation <- nil
		} else {
			confirmation <- errors.New("rejected by scenario")
		}
		before := r.channel.PendingOptimistic()
		r.channel.UpdateOptimistic(ev.ID, updater, confirmation)
		return r.settle(func() bool { return r.channel.PendingOptimistic() <= before })
	default:
		// timeout (or unspecified): the edit reverts when a later
		// advance event passes the optimistic deadline.
		r.channel.UpdateOptimistic(ev.ID, updater, nil)
		return nil
	}
}

// settle polls condition until it holds or settleTimeout elapses.
func (r *replay[T]) settle(condition func() bool) error {
	deadline := time.Now().Add(settleTimeout)
	for time.Now().Before(deadline) {
		if condition() {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return errors.New("timed out waiting for the channel to settle")
}

func (r *replay[T]) printResult() error {
	encoded, err := json.MarshalIndent(r.channel.Value(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(encoded))

	if r.verbose {
		fmt.Printf("# lastSync: %s\n", r.channel.LastSync().Format(time.RFC3339))
		fmt.Printf("# pending optimistic: %d\n", r.channel.PendingOptimistic())
		if err := r.channel.Err(); err != nil {
			fmt.Printf("# error: %v\n", err)
		}
	}
	return nil
}

// orderedLogUpdater decodes an optimistic payload (one record or an
// array) and merges it into the log the same way the main feed would.
func orderedLogUpdater(payload json.RawMessage) (func([]replayRecord) []replayRecord, error) {
	batch, err := decodeRecordBatch(payload)
	if err != nil {
		return nil, err
	}
	merge := statesync.OrderedLog[replayRecord]()
	return func(current []replayRecord) []replayRecord {
		return merge(current, batch)
	}, nil
}

// replaceUpdater decodes an optimistic payload as an object and
// shallow-merges its keys into the current value. A non-object current
// value is replaced wholesale.
func replaceUpdater(payload json.RawMessage) (func(any) any, error) {
	var incoming map[string]any
	if err := json.Unmarshal(payload, &incoming); err != nil {
		return nil, fmt.Errorf("optimistic payload must be an object: %w", err)
	}
	return func(current any) any {
		base, ok := current.(map[string]any)
		if !ok {
			return incoming
		}
		next := make(map[string]any, len(base)+len(incoming))
		for key, value := range base {
			next[key] = value
		}
		for key, value := range incoming {
			next[key] = value
		}
		return next
	}, nil
}

// decodeRecordBatch accepts either a single record or an array.
func decodeRecordBatch(payload json.RawMessage) ([]replayRecord, error) {
	var batch []replayRecord
	if err := json.Unmarshal(payload, &batch); err == nil {
		return batch, nil
	}
	var single replayRecord
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, fmt.Errorf("decoding record batch: %w", err)
	}
	return []replayRecord{single}, nil
}

// orderedLogDelta applies an auxiliary delta in ordered-log mode: the
// payload is a record (or array) merged into the log.
func orderedLogDelta(current []replayRecord, delta []byte) ([]replayRecord, error) {
	batch, err := decodeRecordBatch(delta)
	if err != nil {
		return nil, err
	}
	return statesync.OrderedLog[replayRecord]()(current, batch), nil
}

// replaceDelta applies an auxiliary delta in replace mode: the payload
// is an object shallow-merged into the current value.
func replaceDelta(current any, delta []byte) (any, error) {
	updater, err := replaceUpdater(delta)
	if err != nil {
		return nil, err
	}
	return updater(current), nil
}
