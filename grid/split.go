// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package grid

import "fmt"

// Split returns the half-open range [lo, hi) of block i when n items
// are divided into parts contiguous blocks. Blocks are disjoint, appear
// in block order, and together cover [0, n). When parts does not
// divide n, the leading n%parts blocks receive one extra item.
func Split(n, parts, i int) (lo, hi int) {
	if parts <= 0 || i < 0 || i >= parts {
		panic(fmt.Sprintf("grid.Split: block %d of %d", i, parts))
	}
	size, rem := n/parts, n%parts
	lo = i*size + min(i, rem)
	hi = lo + size
	if i < rem {
		hi++
	}
	return
}

// Blocks returns the views of m obtained by splitting its rows into
// parts contiguous blocks with Split.
func (m *Matrix) Blocks(parts int) []*Matrix {
	blocks := make([]*Matrix, parts)
	for i := range blocks {
		blocks[i] = m.Block(Split(m.Rows, parts, i))
	}
	return blocks
}
