// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package race

import (
	"context"
	"runtime"
	"testing"

	"github.com/grailbio/parreduce/team"
)

func TestCorrectCountersAreExact(t *testing.T) {
	ctx := context.Background()
	for _, workers := range []int{1, 2, 4, 16} {
		tm := team.New(team.Threads(workers))
		for _, c := range []struct {
			name string
			fn   Counter
		}{{"guarded", Guarded}, {"private", Private}} {
			for trial := 0; trial < 5; trial++ {
				e, err := c.fn(ctx, tm, 100000)
				if err != nil {
					t.Fatal(err)
				}
				if got, want := e.Actual, e.Expected; got != want {
					t.Errorf("%s/%d: got %v, want %v", c.name, workers, got, want)
				}
				if got, want := e.Lost(), int64(0); got != want {
					t.Errorf("%s/%d: lost %v", c.name, workers, got)
				}
			}
		}
	}
}

func TestUnguardedLosesUpdates(t *testing.T) {
	if runtime.NumCPU() < 2 {
		t.Skip("lost updates require at least two CPUs")
	}
	ctx := context.Background()
	tm := team.New(team.Threads(16))
	const n = 1000000
	var lost bool
	for trial := 0; trial < 20 && !lost; trial++ {
		e, err := Unguarded(ctx, tm, n)
		if err != nil {
			t.Fatal(err)
		}
		if e.Actual > e.Expected {
			t.Fatalf("counted more increments than performed: %v", e)
		}
		lost = e.Lost() > 0
	}
	if !lost {
		t.Error("no increments were lost in any trial")
	}
}

func TestUnguardedSingleWorker(t *testing.T) {
	e, err := Unguarded(context.Background(), team.New(team.Threads(1)), 1000)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := e.Actual, int64(1000); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
