// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/atrium-foundation/atrium/lib/clock"
	"github.com/atrium-foundation/atrium/statesync"
)

func TestLoadScenario(t *testing.T) {
	parsed, err := loadScenario("testdata/transcript.jsonc")
	if err != nil {
		t.Fatalf("loadScenario: %v", err)
	}
	if parsed.Channel != "transcript" {
		t.Errorf("channel = %q, want transcript", parsed.Channel)
	}
	if !parsed.OrderedLog || !parsed.EnableDeltas {
		t.Error("mode flags not parsed")
	}
	if len(parsed.Events) != 6 {
		t.Errorf("parsed %d events, want 6", len(parsed.Events))
	}
}

func TestScenarioValidate(t *testing.T) {
	base := func() *scenario {
		return &scenario{Snapshot: json.RawMessage(`[]`)}
	}

	cases := []struct {
		name  string
		event event
	}{
		{"unknown type", event{Type: "explode"}},
		{"missing type", event{}},
		{"publish without payload", event{Type: "publish"}},
		{"optimistic without id", event{Type: "optimistic", Payload: json.RawMessage(`{}`)}},
		{"optimistic bad outcome", event{Type: "optimistic", ID: "u", Payload: json.RawMessage(`{}`), Outcome: "maybe"}},
		{"advance bad duration", event{Type: "advance", Duration: "soon"}},
		{"delta without enableDeltas", event{Type: "delta", Payload: json.RawMessage(`{}`)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := base()
			s.Events = []event{tc.event}
			if err := s.validate(); err == nil {
				t.Error("validate accepted a bad event")
			}
		})
	}
}

func TestDecodeRecordBatch(t *testing.T) {
	t.Run("single record", func(t *testing.T) {
		batch, err := decodeRecordBatch(json.RawMessage(`{"id":"m1","at":"2026-01-01T00:00:00Z"}`))
		if err != nil {
			t.Fatalf("decodeRecordBatch: %v", err)
		}
		if len(batch) != 1 || batch[0].ID != "m1" {
			t.Errorf("batch = %+v", batch)
		}
	})
	t.Run("array", func(t *testing.T) {
		batch, err := decodeRecordBatch(json.RawMessage(`[{"id":"m1","at":"2026-01-01T00:00:00Z"},{"id":"m2","at":"2026-01-01T00:00:01Z"}]`))
		if err != nil {
			t.Fatalf("decodeRecordBatch: %v", err)
		}
		if len(batch) != 2 {
			t.Errorf("batch has %d records, want 2", len(batch))
		}
	})
}

func TestReplaceUpdater(t *testing.T) {
	updater, err := replaceUpdater(json.RawMessage(`{"status":"busy"}`))
	if err != nil {
		t.Fatalf("replaceUpdater: %v", err)
	}
	next := updater(map[string]any{"status": "idle", "name": "atrium"})
	object, ok := next.(map[string]any)
	if !ok {
		t.Fatalf("updater returned %T", next)
	}
	if object["status"] != "busy" || object["name"] != "atrium" {
		t.Errorf("merged object = %v", object)
	}
}

func TestReplayTranscriptScenario(t *testing.T) {
	parsed, err := loadScenario("testdata/transcript.jsonc")
	if err != nil {
		t.Fatalf("loadScenario: %v", err)
	}

	conn := newScriptedConn(parsed.Snapshot)
	fakeClock := clock.Fake(replayEpoch)
	channel := statesync.New(conn, parsed.Channel, statesync.Options[[]replayRecord]{
		SessionID:    parsed.SessionID,
		Merge:        statesync.OrderedLog[replayRecord](),
		EnableDeltas: parsed.EnableDeltas,
		MergeDelta:   orderedLogDelta,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:        fakeClock,
	})
	runner := &replay[[]replayRecord]{
		scenario: parsed,
		conn:     conn,
		channel:  channel,
		clk:      fakeClock,
		updater:  orderedLogUpdater,
	}

	if err := runner.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// After the timeout advance the optimistic m3 reverted; the log
	// holds the refreshed m1+m2.
	log := channel.Value()
	if len(log) != 2 {
		t.Fatalf("final log has %d records, want 2: %+v", len(log), log)
	}
	if log[0].ID != "m1" || log[1].ID != "m2" {
		t.Errorf("final log order [%s %s], want [m1 m2]", log[0].ID, log[1].ID)
	}
	if channel.PendingOptimistic() != 0 {
		t.Error("optimistic entry survived its timeout")
	}
}
