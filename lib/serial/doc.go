// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package serial provides a FIFO asynchronous task queue: at most one
// task runs at a time, and tasks run in the order they were submitted.
//
// This is the structural equivalent of chaining work onto a single
// promise. The room store uses a Queue to serialize resource switches
// so that teardown of one resource fully completes before setup of the
// next begins, no matter how quickly switches are requested.
package serial
