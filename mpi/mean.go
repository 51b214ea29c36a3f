// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package mpi

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/reduce"
)

// A LocalReducer reduces the block of rows owned by one rank.
type LocalReducer func(ctx context.Context, block *grid.Matrix) (reduce.Partial, error)

// SerialReducer reduces a block in the calling goroutine.
func SerialReducer(_ context.Context, block *grid.Matrix) (reduce.Partial, error) {
	return reduce.Serial(block), nil
}

// ScatterReduce computes the combined partial of a rows x cols matrix
// held by the root. The root scatters equal blocks of rows to every
// rank, each rank reduces its block with local, and the partial sums
// and counts are sum-reduced to the root. The matrix m is used only on
// the root; rows must be divisible by Size(). The returned partial is
// meaningful only on the root.
func ScatterReduce(ctx context.Context, c *Comm, m *grid.Matrix, rows, cols int, local LocalReducer) (reduce.Partial, error) {
	if rows%c.Size() != 0 {
		return reduce.Partial{}, errors.E(errors.Invalid,
			fmt.Sprintf("mpi.ScatterReduce: %d rows cannot be divided among %d ranks", rows, c.Size()))
	}
	var send []float64
	if c.Rank() == Root {
		if m == nil || m.Rows != rows || m.Cols != cols {
			return reduce.Partial{}, errors.E(errors.Invalid,
				fmt.Sprintf("mpi.ScatterReduce: root matrix %v is not %dx%d", m, rows, cols))
		}
		send = m.Data
	}
	block := grid.New(rows/c.Size(), cols)
	if err := Scatter(ctx, c, send, block.Data, Root); err != nil {
		return reduce.Partial{}, err
	}
	p, err := local(ctx, block)
	if err != nil {
		return reduce.Partial{}, err
	}
	sum, err := ReduceValue(ctx, c, p.Sum, Sum, Root)
	if err != nil {
		return reduce.Partial{}, err
	}
	count, err := ReduceValue(ctx, c, p.Count, Sum, Root)
	if err != nil {
		return reduce.Partial{}, err
	}
	if c.Rank() != Root {
		return reduce.Partial{}, nil
	}
	return reduce.Partial{Sum: sum, Count: count}, nil
}
