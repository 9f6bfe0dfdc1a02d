// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package serial

import (
	"context"
	"sync"
)

// Queue serializes tasks: Do blocks until every previously submitted
// task has finished, runs its task, then releases the next waiter.
// The zero value is not usable; create Queues with NewQueue.
//
// Queue is safe for concurrent use. Ordering is the order in which Do
// calls acquire their place in the chain, which for a single caller
// goroutine is submission order.
type Queue struct {
	mu   sync.Mutex
	tail <-chan struct{}
}

// NewQueue returns an empty Queue ready for use.
func NewQueue() *Queue {
	released := make(chan struct{})
	close(released)
	return &Queue{tail: released}
}

// Do runs task after all previously submitted tasks complete, and
// returns task's error. If ctx is done before the task's turn arrives
// (or before the task starts), Do returns ctx.Err() without running
// the task; the slot is still released so later tasks proceed.
//
// The context passed to task is the caller's ctx; long tasks should
// honor it.
func (q *Queue) Do(ctx context.Context, task func(ctx context.Context) error) error {
	q.mu.Lock()
	predecessor := q.tail
	turn := make(chan struct{})
	q.tail = turn
	q.mu.Unlock()

	// Releasing the slot regardless of outcome keeps the chain moving
	// when a waiter gives up.
	defer close(turn)

	select {
	case <-predecessor:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return task(ctx)
}
