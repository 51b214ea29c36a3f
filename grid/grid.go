// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package grid implements the dense two-dimensional arrays reduced by
// the parreduce benchmarks, together with the row partitioning shared
// by every parallel variant.
package grid

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// A Matrix is a dense, row-major matrix of float64 values. Rows are
// stored contiguously, so that a range of rows is itself a Matrix
// sharing the same storage.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

// New returns a zero-valued matrix with the provided shape.
func New(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("grid.New: negative shape %dx%d", rows, cols))
	}
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// FromData returns a matrix backed by data, which must hold exactly
// rows*cols values.
func FromData(rows, cols int, data []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("grid: %d values do not form a %dx%d matrix", len(data), rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// Random returns a matrix of standard normal deviates drawn from a
// generator seeded with seed. Equal seeds and shapes produce
// bit-identical matrices.
func Random(seed int64, rows, cols int) *Matrix {
	m := New(rows, cols)
	r := rand.New(rand.NewSource(seed))
	for i := range m.Data {
		m.Data[i] = r.NormFloat64()
	}
	return m
}

// Len returns the number of elements in m.
func (m *Matrix) Len() int { return m.Rows * m.Cols }

// Row returns row i of m. The returned slice aliases m.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

// Block returns a view of rows [lo, hi) of m. The view shares storage
// with m.
func (m *Matrix) Block(lo, hi int) *Matrix {
	if lo < 0 || hi > m.Rows || lo > hi {
		panic(fmt.Sprintf("grid.Block: rows [%d, %d) out of range [0, %d)", lo, hi, m.Rows))
	}
	return &Matrix{Rows: hi - lo, Cols: m.Cols, Data: m.Data[lo*m.Cols : hi*m.Cols]}
}

// Copy returns a deep copy of m.
func (m *Matrix) Copy() *Matrix {
	c := New(m.Rows, m.Cols)
	copy(c.Data, m.Data)
	return c
}

// Sum returns the sum of every element of m, computed directly.
func (m *Matrix) Sum() float64 {
	return floats.Sum(m.Data)
}

// Dense returns m as a gonum matrix sharing m's storage. Empty
// matrices cannot be represented by gonum; Dense returns nil for them.
func (m *Matrix) Dense() *mat.Dense {
	if m.Rows == 0 || m.Cols == 0 {
		return nil
	}
	return mat.NewDense(m.Rows, m.Cols, m.Data)
}

// Equal tells whether m and n have the same shape and bit-identical
// contents.
func (m *Matrix) Equal(n *Matrix) bool {
	if m.Rows != n.Rows || m.Cols != n.Cols {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != n.Data[i] {
			return false
		}
	}
	return true
}

func (m *Matrix) String() string {
	return fmt.Sprintf("matrix(%dx%d)", m.Rows, m.Cols)
}
