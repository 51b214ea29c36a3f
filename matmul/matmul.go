// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package matmul multiplies dense matrices on a team of workers. The
// number of workers is taken from the team, which is configured
// explicitly when it is created, rather than from process-wide
// environment variables read when a numerical library initializes.
package matmul

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/team"
	"gonum.org/v1/gonum/mat"
)

// Mul returns the product a x b. The rows of the product are divided
// into contiguous blocks, one per worker; each worker multiplies its
// block of rows of a by b, writing directly into its rows of the
// product.
func Mul(ctx context.Context, t *team.Team, a, b *grid.Matrix) (*grid.Matrix, error) {
	if a.Cols != b.Rows {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("matmul.Mul: cannot multiply %v by %v", a, b))
	}
	c := grid.New(a.Rows, b.Cols)
	if c.Len() == 0 || a.Cols == 0 {
		return c, nil
	}
	bd := b.Dense()
	err := t.Run(ctx, func(_ context.Context, rank, _ int) error {
		lo, hi := t.Rows(rank, a.Rows)
		if lo == hi {
			return nil
		}
		out := c.Block(lo, hi).Dense()
		out.Mul(a.Block(lo, hi).Dense(), bd)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Naive returns the product a x b computed with a triple loop in a
// single goroutine. It is the reference for Mul.
func Naive(a, b *grid.Matrix) *grid.Matrix {
	c := grid.New(a.Rows, b.Cols)
	for i := 0; i < a.Rows; i++ {
		crow := c.Row(i)
		for k, aik := range a.Row(i) {
			for j, bkj := range b.Row(k) {
				crow[j] += aik * bkj
			}
		}
	}
	return c
}

// Dense returns the product of a and b as computed by gonum, for
// comparison.
func Dense(a, b *grid.Matrix) *mat.Dense {
	var c mat.Dense
	c.Mul(a.Dense(), b.Dense())
	return &c
}
