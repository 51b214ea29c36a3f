// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cluster

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/bigmachine/testsystem"
	"github.com/grailbio/parreduce/bench"
	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/reduce"
)

func startTest(t *testing.T, n int, options ...Option) (*Cluster, func()) {
	t.Helper()
	b := bigmachine.Start(testsystem.New())
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	c, err := Start(ctx, b, n, options...)
	if err != nil {
		b.Shutdown()
		t.Fatal(err)
	}
	return c, b.Shutdown
}

func TestReduce(t *testing.T) {
	const rows, cols = 200, 150
	m := grid.Random(1, rows, cols)
	want := m.Sum() / float64(m.Len())
	for _, strategy := range []reduce.Strategy{reduce.LoopStrategy, reduce.StaticStrategy, reduce.ThreadsStrategy} {
		for _, n := range []int{1, 3, 4} {
			t.Run(fmt.Sprintf("%s/%d", strategy, n), func(t *testing.T) {
				counters := bench.NewCounters()
				c, shutdown := startTest(t, n, Threads(2), Strategy(strategy), Counters(counters))
				defer shutdown()
				if got, want := c.Size(), n; got != want {
					t.Fatalf("got %v, want %v", got, want)
				}
				got, err := c.Mean(context.Background(), m)
				if err != nil {
					t.Fatal(err)
				}
				if math.Abs(got-want) > 1e-9 {
					t.Errorf("got %v, want %v", got, want)
				}
				vals := counters.Snapshot()
				if got, want := vals.Total(), int64(rows*cols); got != want {
					t.Errorf("got %v, want %v", got, want)
				}
				if got, want := len(vals), n; got != want {
					t.Errorf("got %v, want %v", got, want)
				}
			})
		}
	}
}

func TestReduceMoreRanksThanRows(t *testing.T) {
	m := grid.Random(2, 2, 5)
	c, shutdown := startTest(t, 4, MaxInflight(1))
	defer shutdown()
	p, err := c.Reduce(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := p.Count, int64(10); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBroadcast(t *testing.T) {
	fz := fuzz.New()
	fz.NilChance(0)
	fz.NumElements(1000, 1000)
	var data []float64
	fz.Fuzz(&data)
	var st status.Status
	c, shutdown := startTest(t, 3, Status(&st))
	defer shutdown()
	sums, err := c.Broadcast(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	want := Fingerprint(data)
	for rank, got := range sums {
		if got != want {
			t.Errorf("rank %d: got %x, want %x", rank, got, want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 2, 3}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("equal slices have different fingerprints")
	}
	b[2] = math.Nextafter(3, 4)
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("different slices have equal fingerprints")
	}
}

func TestSystem(t *testing.T) {
	for _, name := range Systems() {
		sys, err := System(name)
		if name == Internal {
			if err == nil {
				t.Error("expected error for internal system")
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if sys == nil {
			t.Errorf("%s: nil system", name)
		}
	}
	if _, err := System("bogus"); err == nil {
		t.Error("expected error")
	}
}
