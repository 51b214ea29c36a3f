// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package spatialstats computes time series of spatial statistics from
// gridded climate data stored in NetCDF files. A run loads a
// (time, lat, lon) variable, selects a box of indices, computes the
// spatial mean and population variance of every selected time step,
// plots both series and saves them to a new NetCDF file.
//
// Paths may be local or any URL supported by GRAIL's file library,
// such as s3://bucket/key.
package spatialstats

import (
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
)

// A Cube is a dense (time, lat, lon) array of values stored in row
// major order. Missing values are NaN.
type Cube struct {
	Times, Lats, Lons int
	Data              []float64
}

// NewCube returns a zero-valued cube of the provided shape.
func NewCube(times, lats, lons int) *Cube {
	return &Cube{times, lats, lons, make([]float64, times*lats*lons)}
}

// At returns the value at time t, latitude index y and longitude
// index x.
func (c *Cube) At(t, y, x int) float64 {
	return c.Data[c.index(t, y, x)]
}

// Set sets the value at (t, y, x) to v.
func (c *Cube) Set(t, y, x int, v float64) {
	c.Data[c.index(t, y, x)] = v
}

func (c *Cube) index(t, y, x int) int {
	return (t*c.Lats+y)*c.Lons + x
}

// Row returns the longitudes [lo, hi) of latitude y at time t. The
// returned slice shares storage with c.
func (c *Cube) Row(t, y, lo, hi int) []float64 {
	off := c.index(t, y, 0)
	return c.Data[off+lo : off+hi]
}

func (c *Cube) String() string {
	return fmt.Sprintf("cube(%dx%dx%d)", c.Times, c.Lats, c.Lons)
}

// A Box selects the half-open index ranges [TimeMin, TimeMax),
// [LatMin, LatMax) and [LonMin, LonMax) of a cube.
type Box struct {
	TimeMin, TimeMax int
	LatMin, LatMax   int
	LonMin, LonMax   int
}

// Validate returns an errors.Invalid error unless b selects a
// non-empty region that lies within c.
func (b Box) Validate(c *Cube) error {
	for _, d := range []struct {
		name   string
		lo, hi int
		extent int
	}{
		{"time", b.TimeMin, b.TimeMax, c.Times},
		{"latitude", b.LatMin, b.LatMax, c.Lats},
		{"longitude", b.LonMin, b.LonMax, c.Lons},
	} {
		switch {
		case d.lo < 0:
			return errors.E(errors.Invalid, fmt.Sprintf("%s: negative lower bound %d", d.name, d.lo))
		case d.hi > d.extent:
			return errors.E(errors.Invalid, fmt.Sprintf("%s: bound %d exceeds extent %d", d.name, d.hi, d.extent))
		case d.hi <= d.lo:
			return errors.E(errors.Invalid, fmt.Sprintf("%s: empty selection [%d, %d)", d.name, d.lo, d.hi))
		}
	}
	return nil
}

// Steps returns the number of time steps selected by b.
func (b Box) Steps() int { return b.TimeMax - b.TimeMin }

// Cells returns the number of grid cells selected by b at each time
// step.
func (b Box) Cells() int { return (b.LatMax - b.LatMin) * (b.LonMax - b.LonMin) }

func (b Box) String() string {
	return fmt.Sprintf("time[%d:%d] lat[%d:%d] lon[%d:%d]",
		b.TimeMin, b.TimeMax, b.LatMin, b.LatMax, b.LonMin, b.LonMax)
}

// A Series holds the statistics computed for each selected time step.
// Mean[i] and Variance[i] describe time step Box.TimeMin+i. A time step
// whose cells are all missing has NaN statistics.
type Series struct {
	Mean, Variance []float64
}

// Len returns the number of time steps in s.
func (s *Series) Len() int { return len(s.Mean) }

func isMissing(v float64) bool { return math.IsNaN(v) }
