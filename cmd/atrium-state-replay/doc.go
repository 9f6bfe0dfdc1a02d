// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Atrium-state-replay replays a scripted sequence of connection facade
// events through a real state channel and prints the resulting
// snapshot as JSON. It is a debugging aid: a merge or recovery bug
// reported from the app can be captured as a scenario file and
// replayed offline until the channel behavior is understood.
//
// Scenario files are JSONC (JSON with comments), describing the
// initial snapshot, the channel mode, and an ordered list of events:
// published payloads, auxiliary deltas, connectivity transitions,
// optimistic updates with their outcomes, and clock advances. See
// testdata/ for examples.
//
// Exit codes:
//
//	0  replay completed
//	2  error (unreadable scenario, bad event, start failure)
package main
