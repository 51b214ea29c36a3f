// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bench

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestCounters(t *testing.T) {
	c := NewCounters()
	var wg sync.WaitGroup
	for rank := 0; rank < 4; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Rank(rank, 2)
			}
		}(rank)
	}
	wg.Wait()
	vals := c.Snapshot()
	if got, want := len(vals), 4; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := vals["rank03"], int64(2000); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := vals.Total(), int64(8000); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := vals.String(), "rank00:2000 rank01:2000 rank02:2000 rank03:2000"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNilCounters(t *testing.T) {
	var c *Counters
	c.Add("x", 1)
	if got, want := len(c.Snapshot()), 0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTime(t *testing.T) {
	var n int
	r, err := Time(3, func() (float64, error) {
		n++
		return float64(n), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := r.Value, 3.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := r.Iterations, 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	var b bytes.Buffer
	r.Report(&b)
	if !strings.HasPrefix(b.String(), "Result:    3 | Time: ") {
		t.Errorf("unexpected report %q", b.String())
	}
}

func TestTimeError(t *testing.T) {
	errTest := errors.New("test")
	if _, err := Time(2, func() (float64, error) { return 0, errTest }); err != errTest {
		t.Errorf("got %v, want %v", err, errTest)
	}
}
