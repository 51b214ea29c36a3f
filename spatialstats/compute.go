// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package spatialstats

import (
	"context"
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/parreduce/team"
	"gonum.org/v1/gonum/stat"
)

// Compute returns the spatial mean and population variance of every
// time step selected by box. Time steps are divided among the workers
// of t; each step is computed by exactly one worker. Missing cells are
// excluded from the statistics.
func Compute(ctx context.Context, t *team.Team, c *Cube, box Box) (*Series, error) {
	if err := box.Validate(c); err != nil {
		return nil, err
	}
	n := box.Steps()
	s := &Series{
		Mean:     make([]float64, n),
		Variance: make([]float64, n),
	}
	err := t.Run(ctx, func(ctx context.Context, rank, size int) error {
		lo, hi := t.Rows(rank, n)
		vals := make([]float64, 0, box.Cells())
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			vals = selectStep(vals[:0], c, box, box.TimeMin+i)
			s.Mean[i], s.Variance[i] = meanVariance(vals)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("spatialstats: computed %d steps of %s over %s", n, c, box)
	return s, nil
}

// selectStep appends the present values of time step ts within box to
// vals.
func selectStep(vals []float64, c *Cube, box Box, ts int) []float64 {
	for y := box.LatMin; y < box.LatMax; y++ {
		for _, v := range c.Row(ts, y, box.LonMin, box.LonMax) {
			if !isMissing(v) {
				vals = append(vals, v)
			}
		}
	}
	return vals
}

func meanVariance(vals []float64) (mean, variance float64) {
	if len(vals) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanVariance(vals, nil)
}
