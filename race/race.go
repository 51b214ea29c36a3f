// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package race demonstrates lost updates on a shared counter that is
// incremented concurrently without mutual exclusion, and contrasts it
// with two correct alternatives.
//
// Unguarded is deliberately incorrect: it must not be fixed. The
// number of increments it loses is the quantity being demonstrated.
package race

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/team"
)

// An Experiment records the outcome of incrementing a counter.
type Experiment struct {
	Expected, Actual int64
}

// Lost returns the number of increments that were lost.
func (e Experiment) Lost() int64 { return e.Expected - e.Actual }

func (e Experiment) String() string {
	return fmt.Sprintf("Expected Result: %d\nActual Result:   %d\nLost Increments: %d", e.Expected, e.Actual, e.Lost())
}

// A Counter is a way of performing n increments of a shared counter
// from the workers of a team.
type Counter func(ctx context.Context, t *team.Team, n int64) (Experiment, error)

// Unguarded increments one shared counter from every worker with no
// synchronization. Each increment is a separate load followed by a
// store; the pair is not atomic, so a worker may overwrite increments
// made by others between its load and its store. The load and store
// are individually atomic only to keep the program's behavior defined
// under the Go memory model.
func Unguarded(ctx context.Context, t *team.Team, n int64) (Experiment, error) {
	var counter int64
	err := t.Run(ctx, func(_ context.Context, rank, size int) error {
		lo, hi := grid.Split(int(n), size, rank)
		for i := lo; i < hi; i++ {
			v := atomic.LoadInt64(&counter)
			atomic.StoreInt64(&counter, v+1)
		}
		return nil
	})
	return Experiment{Expected: n, Actual: atomic.LoadInt64(&counter)}, err
}

// Guarded increments one shared counter from every worker, holding a
// mutex around each increment.
func Guarded(ctx context.Context, t *team.Team, n int64) (Experiment, error) {
	var (
		mu      sync.Mutex
		counter int64
	)
	err := t.Run(ctx, func(_ context.Context, rank, size int) error {
		lo, hi := grid.Split(int(n), size, rank)
		for i := lo; i < hi; i++ {
			mu.Lock()
			counter++
			mu.Unlock()
		}
		return nil
	})
	return Experiment{Expected: n, Actual: counter}, err
}

// Private has every worker count into its own slot and sums the slots
// after all workers have been joined.
func Private(ctx context.Context, t *team.Team, n int64) (Experiment, error) {
	counts := make([]int64, t.Size())
	err := t.Run(ctx, func(_ context.Context, rank, size int) error {
		lo, hi := grid.Split(int(n), size, rank)
		for i := lo; i < hi; i++ {
			counts[rank]++
		}
		return nil
	})
	var total int64
	for _, c := range counts {
		total += c
	}
	return Experiment{Expected: n, Actual: total}, err
}

// Counters returns the available counters by name.
func Counters() map[string]Counter {
	return map[string]Counter{
		"unguarded": Unguarded,
		"guarded":   Guarded,
		"private":   Private,
	}
}
