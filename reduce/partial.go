// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package reduce implements the partitioned mean reduction over
// dense matrices with several shared-memory parallelism strategies.
// Each strategy partitions a matrix across the workers of a team,
// has every worker compute a partial (sum, count) pair over its
// share, and combines the partials into one result.
//
// The strategies differ only in how iterations are assigned to workers
// and how partials are combined:
//
//	Serial    one worker, no partitioning
//	Threads   contiguous row ranges, one result slot per worker, joined
//	Loop      automatic range splitting with a typed pair reducer
//	Critical  static or cyclic schedules, merged in a critical section
package reduce

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// A Partial is the result of reducing some portion of a matrix: the
// sum of its elements and the number of elements summed. A Partial is
// owned by the worker that produced it until it is combined.
type Partial struct {
	Sum   float64
	Count int64
}

// Add accumulates v into p.
func (p *Partial) Add(v float64) {
	p.Sum += v
	p.Count++
}

// Merge adds q into p.
func (p *Partial) Merge(q Partial) {
	p.Sum += q.Sum
	p.Count += q.Count
}

// Combine returns the sum of the provided partials.
func Combine(partials ...Partial) Partial {
	var p Partial
	for _, q := range partials {
		p.Merge(q)
	}
	return p
}

// Mean returns the arithmetic mean represented by p. Mean returns an
// error of kind errors.Invalid if p counts no elements.
func (p Partial) Mean() (float64, error) {
	if p.Count == 0 {
		return 0, errors.E(errors.Invalid, "mean of an empty selection")
	}
	return p.Sum / float64(p.Count), nil
}

func (p Partial) String() string {
	return fmt.Sprintf("sum:%g count:%d", p.Sum, p.Count)
}

// sumRows reduces the values of rows [lo, hi) of an r x c row-major
// array into p, visiting every element in order.
func sumRows(p *Partial, data []float64, cols, lo, hi int) {
	for i := lo; i < hi; i++ {
		for _, v := range data[i*cols : (i+1)*cols] {
			p.Add(v)
		}
	}
}
