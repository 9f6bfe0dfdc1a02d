// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"
)

// scenario is the parsed replay script. Snapshot is the response to
// the channel's initial fetch; Events run in order after Start.
type scenario struct {
	// Channel is the channel name to bind; the --channel flag
	// overrides it.
	Channel string `json:"channel"`

	// SessionID scopes the channel; empty means the global session.
	SessionID string `json:"sessionId"`

	// OrderedLog selects the id+timestamp ordered-log merge. Payloads
	// are then arrays of records with "id" and "at" fields. The
	// default is full replace with arbitrary JSON values.
	OrderedLog bool `json:"orderedLog"`

	// EnableDeltas opens the auxiliary delta feed.
	EnableDeltas bool `json:"enableDeltas"`

	Snapshot json.RawMessage `json:"snapshot"`
	Events   []event         `json:"events"`
}

// event is one scripted facade event.
//
// Types and their fields:
//
//	publish     payload: main-feed payload
//	delta       payload: auxiliary-feed payload
//	disconnect, connect, error: connectivity transitions
//	refresh     payload: the snapshot the re-fetch returns
//	optimistic  id, payload, outcome: confirm | reject | timeout
//	advance     duration: move the fake clock (fires timers)
type event struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	ID       string          `json:"id,omitempty"`
	Outcome  string          `json:"outcome,omitempty"`
	Duration string          `json:"duration,omitempty"`
}

// loadScenario reads and parses a JSONC scenario file.
func loadScenario(path string) (*scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var parsed scenario
	if err := json.Unmarshal(jsonc.ToJSON(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if len(parsed.Snapshot) == 0 {
		return nil, fmt.Errorf("scenario %s: missing initial snapshot", path)
	}
	if err := parsed.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &parsed, nil
}

func (s *scenario) validate() error {
	for i, ev := range s.Events {
		switch ev.Type {
		case "publish", "delta", "refresh":
			if len(ev.Payload) == 0 {
				return fmt.Errorf("event %d (%s): missing payload", i, ev.Type)
			}
		case "disconnect", "connect", "error":
		case "optimistic":
			if ev.ID == "" {
				return fmt.Errorf("event %d (optimistic): missing id", i)
			}
			if len(ev.Payload) == 0 {
				return fmt.Errorf("event %d (optimistic): missing payload", i)
			}
			switch ev.Outcome {
			case "confirm", "reject", "timeout", "":
			default:
				return fmt.Errorf("event %d (optimistic): unknown outcome %q", i, ev.Outcome)
			}
		case "advance":
			if _, err := time.ParseDuration(ev.Duration); err != nil {
				return fmt.Errorf("event %d (advance): %w", i, err)
			}
		case "":
			return fmt.Errorf("event %d: missing type", i)
		default:
			return fmt.Errorf("event %d: unknown type %q", i, ev.Type)
		}
		if ev.Type == "delta" && !s.EnableDeltas {
			return fmt.Errorf("event %d: delta event without enableDeltas", i)
		}
	}
	return nil
}
