// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package serial

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDoRunsTask(t *testing.T) {
	queue := NewQueue()
	ran := false
	err := queue.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !ran {
		t.Fatal("task did not run")
	}
}

func TestDoReturnsTaskError(t *testing.T) {
	queue := NewQueue()
	want := errors.New("task failed")
	err := queue.Do(context.Background(), func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("Do error = %v, want %v", err, want)
	}
}

func TestTasksNeverOverlap(t *testing.T) {
	queue := NewQueue()
	var mu sync.Mutex
	running := 0
	maxRunning := 0

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queue.Do(context.Background(), func(context.Context) error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("observed %d overlapping tasks, want 1", maxRunning)
	}
}

func TestSubmissionOrderPreserved(t *testing.T) {
	queue := NewQueue()
	release := make(chan struct{})
	var order []int
	var mu sync.Mutex

	done := make(chan struct{})
	go queue.Do(context.Background(), func(context.Context) error {
		<-release
		mu.Lock()
		order = append(order, 0)
		mu.Unlock()
		return nil
	})

	// Give the first task its slot before enqueueing the rest from
	// this goroutine, in order.
	time.Sleep(10 * time.Millisecond)

	go func() {
		for i := 1; i <= 3; i++ {
			i := i
			queue.Do(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(order))
	}
	if order[0] != 0 {
		t.Errorf("blocked head task did not run first: %v", order)
	}
	for i := 1; i < 4; i++ {
		if order[i] != i {
			t.Errorf("tasks ran out of order: %v", order)
			break
		}
	}
}

func TestContextCancelledWhileQueued(t *testing.T) {
	queue := NewQueue()
	release := make(chan struct{})
	headRunning := make(chan struct{})

	go queue.Do(context.Background(), func(context.Context) error {
		close(headRunning)
		<-release
		return nil
	})
	<-headRunning

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := queue.Do(ctx, func(context.Context) error {
		t.Error("cancelled task ran")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do error = %v, want context.Canceled", err)
	}

	// The abandoned slot must not wedge the chain.
	close(release)
	ran := false
	queue.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if !ran {
		t.Error("queue wedged after a cancelled waiter")
	}
}
