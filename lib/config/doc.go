// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the sync core.
//
// Configuration is loaded from a single YAML file specified by the
// ATRIUM_SYNC_CONFIG environment variable or an explicit path. There
// are no fallbacks or automatic discovery; the file is the single
// source of truth.
//
// The file holds store-wide settings (session id, cache directory),
// channel defaults, and per-channel overrides:
//
//	session_id: global
//	cache_dir: ${HOME}/.cache/atrium/sync
//	defaults:
//	  optimistic_timeout: 10s
//	channels:
//	  state.messages:
//	    ordered_log: true
//	    enable_deltas: true
//	  state.sessions:
//	    refresh_interval: 30s
package config
