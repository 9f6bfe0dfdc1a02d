// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package statesync

import "github.com/atrium-foundation/atrium/lib/config"

// OptionsFrom builds channel Options from an effective configuration
// section (config.Config.For). Code-level choices stay with the
// caller: Merge, Decode, MergeDelta, Cache, Logger, and Clock are left
// zero for the caller to fill. The configuration's OrderedLog flag is
// likewise the caller's to honor by passing an OrderedLog merge, since
// only the caller knows the record type.
func OptionsFrom[T any](section config.Channel, sessionID string) Options[T] {
	return Options[T]{
		SessionID:                  sessionID,
		RefreshInterval:            section.RefreshInterval.Std(),
		OptimisticTimeout:          section.OptimisticTimeout.Std(),
		NonBlocking:                section.NonBlocking,
		UseOptimisticSubscriptions: section.OptimisticSubscriptions,
		EnableDeltas:               section.EnableDeltas,
		Debug:                      section.Debug,
	}
}
