// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"context"
	"fmt"
	"sync"

	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/team"
)

// Serial reduces m in a single goroutine.
func Serial(m *grid.Matrix) Partial {
	var p Partial
	sumRows(&p, m.Data, m.Cols, 0, m.Rows)
	return p
}

// Threads reduces m on the team's workers. Each worker owns one
// contiguous range of rows and writes its result into its own slot of
// a pre-sized result slice; the slots are read only after every worker
// has been joined.
func Threads(ctx context.Context, t *team.Team, m *grid.Matrix) (Partial, error) {
	results := make([]Partial, t.Size())
	err := t.Run(ctx, func(_ context.Context, rank, _ int) error {
		lo, hi := t.Rows(rank, m.Rows)
		sumRows(&results[rank], m.Data, m.Cols, lo, hi)
		return nil
	})
	if err != nil {
		return Partial{}, err
	}
	return Combine(results...), nil
}

// Loop reduces m with a parallel loop over its rows. The loop is split
// into as many batches as the team has workers; batches are reduced
// independently and their partials are combined pairwise. Unlike the
// other strategies, Loop leaves scheduling to the parallel runtime.
func Loop(t *team.Team, m *grid.Matrix) Partial {
	if m.Rows == 0 {
		return Partial{}
	}
	result := parallel.RangeReduce(0, m.Rows, t.Size(),
		func(lo, hi int) interface{} {
			var p Partial
			sumRows(&p, m.Data, m.Cols, lo, hi)
			return p
		},
		func(x, y interface{}) interface{} {
			return Combine(x.(Partial), y.(Partial))
		},
	)
	return result.(Partial)
}

// A Schedule determines which rows a worker visits inside a critical
// region reduction.
type Schedule int

const (
	// Static assigns each worker one contiguous block of rows.
	Static Schedule = iota
	// Cyclic assigns row i to the worker with rank i%size.
	Cyclic
)

// ParseSchedule returns the schedule named by s.
func ParseSchedule(s string) (Schedule, error) {
	switch s {
	case "static":
		return Static, nil
	case "cyclic":
		return Cyclic, nil
	}
	return 0, fmt.Errorf("unknown schedule %q", s)
}

func (s Schedule) String() string {
	switch s {
	case Static:
		return "static"
	case Cyclic:
		return "cyclic"
	default:
		return fmt.Sprintf("Schedule(%d)", int(s))
	}
}

// Critical reduces m on the team's workers using the provided
// schedule. Every worker accumulates into private variables and then
// merges them into shared accumulators inside a critical section: only
// one worker at a time executes the merge.
func Critical(ctx context.Context, t *team.Team, m *grid.Matrix, sched Schedule) (Partial, error) {
	var (
		mu    sync.Mutex
		total Partial
	)
	err := t.Run(ctx, func(_ context.Context, rank, size int) error {
		var local Partial
		switch sched {
		case Static:
			lo, hi := t.Rows(rank, m.Rows)
			sumRows(&local, m.Data, m.Cols, lo, hi)
		case Cyclic:
			for i := rank; i < m.Rows; i += size {
				sumRows(&local, m.Data, m.Cols, i, i+1)
			}
		default:
			return fmt.Errorf("reduce.Critical: invalid schedule %v", sched)
		}
		mu.Lock()
		total.Merge(local)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return Partial{}, err
	}
	return total, nil
}
