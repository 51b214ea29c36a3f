// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/team"
)

// A Strategy names one of the reduction strategies in this package so
// that it may be selected by configuration or sent to a remote
// process.
type Strategy string

// The available strategies.
const (
	SerialStrategy   Strategy = "serial"
	ThreadsStrategy  Strategy = "threads"
	LoopStrategy     Strategy = "loop"
	StaticStrategy   Strategy = "static"
	CyclicStrategy   Strategy = "cyclic"
	DefaultStrategy           = LoopStrategy
)

var strategies = map[Strategy]func(context.Context, *team.Team, *grid.Matrix) (Partial, error){
	SerialStrategy: func(_ context.Context, _ *team.Team, m *grid.Matrix) (Partial, error) {
		return Serial(m), nil
	},
	ThreadsStrategy: Threads,
	LoopStrategy: func(_ context.Context, t *team.Team, m *grid.Matrix) (Partial, error) {
		return Loop(t, m), nil
	},
	StaticStrategy: func(ctx context.Context, t *team.Team, m *grid.Matrix) (Partial, error) {
		return Critical(ctx, t, m, Static)
	},
	CyclicStrategy: func(ctx context.Context, t *team.Team, m *grid.Matrix) (Partial, error) {
		return Critical(ctx, t, m, Cyclic)
	},
}

// Strategies returns the names of all available strategies, sorted.
func Strategies() []string {
	names := make([]string, 0, len(strategies))
	for s := range strategies {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// Run reduces m on t with the named strategy.
func Run(ctx context.Context, s Strategy, t *team.Team, m *grid.Matrix) (Partial, error) {
	fn, ok := strategies[s]
	if !ok {
		return Partial{}, fmt.Errorf("unknown strategy %q (available: %s)", s, strings.Join(Strategies(), ", "))
	}
	return fn(ctx, t, m)
}

// Mean reduces m on t with the named strategy and returns the mean.
func Mean(ctx context.Context, s Strategy, t *team.Team, m *grid.Matrix) (float64, error) {
	p, err := Run(ctx, s, t, m)
	if err != nil {
		return 0, err
	}
	return p.Mean()
}
