// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bench provides the timing and reporting used by the
// parreduce benchmarks: repeated timed runs whose mean duration is
// reported together with the computed result, and per-worker counters.
package bench

import (
	"fmt"
	"io"
	"time"
)

// A Result is the outcome of a timed benchmark.
type Result struct {
	// Value is the value computed by the last iteration.
	Value float64
	// Mean is the mean duration of one iteration.
	Mean time.Duration
	// Iterations is the number of iterations that were timed.
	Iterations int
}

// Time runs fn niter times and returns the mean duration of one run
// together with the value returned by the last run. Time stops at the
// first error.
func Time(niter int, fn func() (float64, error)) (Result, error) {
	if niter <= 0 {
		niter = 1
	}
	var (
		res   = Result{Iterations: niter}
		start = time.Now()
	)
	for i := 0; i < niter; i++ {
		v, err := fn()
		if err != nil {
			return Result{}, err
		}
		res.Value = v
	}
	res.Mean = time.Since(start) / time.Duration(niter)
	return res, nil
}

// Report writes r in the benchmarks' standard format.
func (r Result) Report(w io.Writer) {
	fmt.Fprintf(w, "Result:    %v | Time: %.4fs\n", r.Value, r.Mean.Seconds())
}
