// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package team implements fixed-size teams of worker goroutines with
// fork-join semantics. A team stands in for a thread pool: its size is
// an explicit configuration value chosen when the team is created, and
// it does not change afterwards.
//
// A team is used as follows:
//
//	t := team.New(team.Threads(4))
//	err := t.Run(ctx, func(ctx context.Context, rank, size int) error {
//		lo, hi := t.Rows(rank, n)
//		// Work on rows [lo, hi).
//		return nil
//	})
//
// Run returns only after every worker has returned.
package team

import (
	"context"
	"fmt"
	"runtime"

	"github.com/grailbio/base/log"
	"github.com/grailbio/parreduce/grid"
	"golang.org/x/sync/errgroup"
)

// A Team is a fixed-size set of workers.
type Team struct {
	size int
	name string
}

// An Option represents a team configuration parameter value.
type Option func(t *Team)

// Threads configures the team with n workers.
func Threads(n int) Option {
	if n <= 0 {
		panic("team.Threads: n <= 0")
	}
	return func(t *Team) {
		t.size = n
	}
}

// Name configures a name for the team, used in log messages.
func Name(name string) Option {
	return func(t *Team) {
		t.name = name
	}
}

// New returns a new team configured by the provided options. If no
// thread count is configured, the team has runtime.GOMAXPROCS(0)
// workers.
func New(options ...Option) *Team {
	t := new(Team)
	for _, opt := range options {
		opt(t)
	}
	if t.size == 0 {
		t.size = runtime.GOMAXPROCS(0)
	}
	if t.name == "" {
		t.name = "team"
	}
	return t
}

// Size returns the number of workers in the team.
func (t *Team) Size() int { return t.size }

// Rows returns the contiguous range [lo, hi) of n rows owned by the
// worker with the provided rank. Ranges of distinct ranks are disjoint
// and together cover [0, n).
func (t *Team) Rows(rank, n int) (lo, hi int) {
	return grid.Split(n, t.size, rank)
}

// Run forks one goroutine per worker, invoking fn with the worker's
// rank and the team size, and joins all of them. Run returns the first
// error returned by any worker; in that case the context passed to the
// other workers is canceled. Panics in workers are converted to
// errors.
func (t *Team) Run(ctx context.Context, fn func(ctx context.Context, rank, size int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < t.size; rank++ {
		rank := rank
		g.Go(func() (err error) {
			defer func() {
				if e := recover(); e != nil {
					err = fmt.Errorf("%s: worker %d panicked: %v", t.name, rank, e)
				}
			}()
			return fn(ctx, rank, t.size)
		})
	}
	err := g.Wait()
	if err != nil {
		log.Debug.Printf("%s: run failed: %v", t.name, err)
	}
	return err
}

func (t *Team) String() string {
	return fmt.Sprintf("%s(%d)", t.name, t.size)
}
