// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small helpers shared by tests: bounded
// channel receives and condition polling, so individual tests do not
// scatter raw time.After selects.
package testutil
