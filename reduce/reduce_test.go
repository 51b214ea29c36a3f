// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"context"
	"fmt"
	"math"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/team"
	"gonum.org/v1/gonum/stat"
)

// tolerance returns the admissible absolute error for a mean over n
// elements of magnitude about 1.
func tolerance(n int) float64 {
	return 1e-12 * float64(n+1)
}

func TestStrategiesMatchDirectMean(t *testing.T) {
	ctx := context.Background()
	shapes := []struct{ rows, cols int }{
		{1, 1}, {16, 3}, {64, 64}, {500, 200}, {7, 1000},
	}
	for _, shape := range shapes {
		m := grid.Random(1, shape.rows, shape.cols)
		want := stat.Mean(m.Data, nil)
		for _, threads := range []int{1, 2, 4, 8, 16} {
			tm := team.New(team.Threads(threads))
			for _, s := range Strategies() {
				t.Run(fmt.Sprintf("%dx%d/%d/%s", shape.rows, shape.cols, threads, s), func(t *testing.T) {
					p, err := Run(ctx, Strategy(s), tm, m)
					if err != nil {
						t.Fatal(err)
					}
					if got, want := p.Count, int64(m.Len()); got != want {
						t.Errorf("count: got %v, want %v", got, want)
					}
					got, err := p.Mean()
					if err != nil {
						t.Fatal(err)
					}
					if math.Abs(got-want) > tolerance(m.Len()) {
						t.Errorf("mean: got %v, want %v", got, want)
					}
				})
			}
		}
	}
}

func TestFuzzedPartials(t *testing.T) {
	ctx := context.Background()
	fz := fuzz.New()
	fz.NilChance(0)
	for iter := 0; iter < 20; iter++ {
		var rows, cols, threads uint8
		fz.Fuzz(&rows)
		fz.Fuzz(&cols)
		fz.Fuzz(&threads)
		r, c, n := int(rows%50)+1, int(cols%50)+1, int(threads%9)+1
		m := grid.New(r, c)
		fz.NumElements(m.Len(), m.Len())
		fz.Fuzz(&m.Data)
		want := Serial(m)
		tm := team.New(team.Threads(n))
		for _, s := range Strategies() {
			got, err := Run(ctx, Strategy(s), tm, m)
			if err != nil {
				t.Fatal(err)
			}
			if got.Count != want.Count || math.Abs(got.Sum-want.Sum) > tolerance(m.Len()) {
				t.Errorf("%dx%d/%d/%s: got %v, want %v", r, c, n, s, got, want)
			}
		}
	}
}

func TestMoreWorkersThanRows(t *testing.T) {
	m := grid.Random(5, 3, 10)
	tm := team.New(team.Threads(16))
	for _, s := range Strategies() {
		p, err := Run(context.Background(), Strategy(s), tm, m)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := p.Count, int64(30); got != want {
			t.Errorf("%s: got %v, want %v", s, got, want)
		}
	}
}

func TestEmptyMean(t *testing.T) {
	m := grid.New(0, 10)
	tm := team.New(team.Threads(4))
	for _, s := range Strategies() {
		_, err := Mean(context.Background(), Strategy(s), tm, m)
		if err == nil {
			t.Errorf("%s: expected error", s)
			continue
		}
		if !errors.Is(errors.Invalid, err) {
			t.Errorf("%s: unexpected error %v", s, err)
		}
	}
}

func TestUnknownStrategy(t *testing.T) {
	_, err := Run(context.Background(), "bogus", team.New(), grid.New(1, 1))
	if err == nil {
		t.Error("expected error")
	}
}

func TestParseSchedule(t *testing.T) {
	for _, s := range []Schedule{Static, Cyclic} {
		got, err := ParseSchedule(s.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != s {
			t.Errorf("got %v, want %v", got, s)
		}
	}
	if _, err := ParseSchedule("guided"); err == nil {
		t.Error("expected error")
	}
}

func TestCombine(t *testing.T) {
	p := Combine(Partial{1, 2}, Partial{3, 4}, Partial{})
	if got, want := p, (Partial{4, 6}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func BenchmarkStrategies(b *testing.B) {
	m := grid.Random(1, 1000, 1000)
	ctx := context.Background()
	for _, s := range Strategies() {
		for _, threads := range []int{1, 2, 4, 8, 16} {
			tm := team.New(team.Threads(threads))
			b.Run(fmt.Sprintf("%s/%d", s, threads), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					if _, err := Run(ctx, Strategy(s), tm, m); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
