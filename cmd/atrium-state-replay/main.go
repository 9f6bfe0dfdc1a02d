// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/atrium-foundation/atrium/lib/clock"
	"github.com/atrium-foundation/atrium/lib/version"
	"github.com/atrium-foundation/atrium/statesync"
)

// replayEpoch is the fake clock's starting time. Fixed so scenario
// output is reproducible run to run.
var replayEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func main() {
	os.Exit(run())
}

func run() int {
	var scenarioPath string
	var channelName string
	var verbose bool

	flagSet := pflag.NewFlagSet("atrium-state-replay", pflag.ContinueOnError)
	flagSet.StringVar(&scenarioPath, "scenario", "", "path to the JSONC scenario file (required)")
	flagSet.StringVar(&channelName, "channel", "", "override the scenario's channel name")
	flagSet.BoolVar(&verbose, "verbose", false, "print each event and a result summary")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if *showVersion {
		fmt.Printf("atrium-state-replay %s\n", version.Info())
		return 0
	}
	if scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "error: --scenario is required\n")
		flagSet.PrintDefaults()
		return 2
	}

	parsed, err := loadScenario(scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if channelName != "" {
		parsed.Channel = channelName
	}
	if parsed.Channel == "" {
		parsed.Channel = "replay"
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := runScenario(context.Background(), parsed, logger, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return 0
}

// runScenario builds the channel in the scenario's mode and replays
// the event list.
func runScenario(ctx context.Context, parsed *scenario, logger *slog.Logger, verbose bool) error {
	conn := newScriptedConn(parsed.Snapshot)
	fakeClock := clock.Fake(replayEpoch)

	if parsed.OrderedLog {
		channel := statesync.New(conn, parsed.Channel, statesync.Options[[]replayRecord]{
			SessionID:    parsed.SessionID,
			Merge:        statesync.OrderedLog[replayRecord](),
			EnableDeltas: parsed.EnableDeltas,
			MergeDelta:   orderedLogDelta,
			Debug:        verbose,
			Logger:       logger,
			Clock:        fakeClock,
		})
		runner := &replay[[]replayRecord]{
			scenario: parsed,
			conn:     conn,
			channel:  channel,
			clk:      fakeClock,
			updater:  orderedLogUpdater,
			verbose:  verbose,
		}
		return runner.run(ctx)
	}

	channel := statesync.New(conn, parsed.Channel, statesync.Options[any]{
		SessionID:    parsed.SessionID,
		EnableDeltas: parsed.EnableDeltas,
		MergeDelta:   replaceDelta,
		Debug:        verbose,
		Logger:       logger,
		Clock:        fakeClock,
	})
	runner := &replay[any]{
		scenario: parsed,
		conn:     conn,
		channel:  channel,
		clk:      fakeClock,
		updater:  replaceUpdater,
		verbose:  verbose,
	}
	return runner.run(ctx)
}
