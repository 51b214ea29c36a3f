// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package spatialstats

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/parreduce/team"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"gonum.org/v1/gonum/stat"
)

// writeVar writes a single variable to a new NetCDF file at path.
func writeVar(t *testing.T, path, name string, values interface{}, dims []string, attrs api.AttributeMap) {
	t.Helper()
	cw, err := cdf.OpenWriter(path)
	assert.NoError(t, err)
	assert.NoError(t, cw.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: attrs}))
	assert.NoError(t, cw.Close())
}

// testValues returns a (times, lats, lons) array whose value at
// (t, y, x) is distinct and varies along every axis.
func testValues(times, lats, lons int) [][][]float32 {
	v := make([][][]float32, times)
	for t := range v {
		v[t] = make([][]float32, lats)
		for y := range v[t] {
			v[t][y] = make([]float32, lons)
			for x := range v[t][y] {
				v[t][y][x] = float32(250 + float64(t) + 0.5*float64(y) + 0.25*float64(x*x%7))
			}
		}
	}
	return v
}

var cubeDims = []string{"time", "latitude", "longitude"}

// directStats computes the statistics of box the slow way.
func directStats(c *Cube, box Box) *Series {
	s := new(Series)
	for ts := box.TimeMin; ts < box.TimeMax; ts++ {
		var vals []float64
		for y := box.LatMin; y < box.LatMax; y++ {
			for x := box.LonMin; x < box.LonMax; x++ {
				vals = append(vals, c.At(ts, y, x))
			}
		}
		mean := stat.Mean(vals, nil)
		var ss float64
		for _, v := range vals {
			ss += (v - mean) * (v - mean)
		}
		s.Mean = append(s.Mean, mean)
		s.Variance = append(s.Variance, ss/float64(len(vals)))
	}
	return s
}

func checkSeries(t *testing.T, got, want *Series, tol float64) {
	t.Helper()
	if got, want := got.Len(), want.Len(); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want.Mean {
		if math.Abs(got.Mean[i]-want.Mean[i]) > tol*math.Max(1, math.Abs(want.Mean[i])) {
			t.Errorf("mean %d: got %v, want %v", i, got.Mean[i], want.Mean[i])
		}
		if math.Abs(got.Variance[i]-want.Variance[i]) > tol*math.Max(1, math.Abs(want.Variance[i])) {
			t.Errorf("variance %d: got %v, want %v", i, got.Variance[i], want.Variance[i])
		}
	}
}

func TestLoad(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "in.nc")
	values := testValues(4, 5, 6)
	writeVar(t, path, "t2m", values, cubeDims, nil)

	c, err := Load(context.Background(), path, "t2m")
	assert.NoError(t, err)
	expect.EQ(t, c.Times, 4)
	expect.EQ(t, c.Lats, 5)
	expect.EQ(t, c.Lons, 6)
	for ts := range values {
		for y := range values[ts] {
			for x, v := range values[ts][y] {
				if got, want := c.At(ts, y, x), float64(v); got != want {
					t.Errorf("(%d, %d, %d): got %v, want %v", ts, y, x, got, want)
				}
			}
		}
	}
}

func TestLoadPacked(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "packed.nc")
	values := [][][]int16{{{0, 2}, {-1, 4}}}
	attrs, err := util.NewOrderedMap(
		[]string{"scale_factor", "add_offset", "_FillValue"},
		map[string]interface{}{
			"scale_factor": 0.5,
			"add_offset":   100.0,
			"_FillValue":   int16(-1),
		})
	assert.NoError(t, err)
	writeVar(t, path, "t2m", values, cubeDims, attrs)

	c, err := Load(context.Background(), path, "t2m")
	assert.NoError(t, err)
	expect.EQ(t, c.At(0, 0, 0), 100.0)
	expect.EQ(t, c.At(0, 0, 1), 101.0)
	expect.EQ(t, c.At(0, 1, 1), 102.0)
	if !math.IsNaN(c.At(0, 1, 0)) {
		t.Errorf("fill value not masked: %v", c.At(0, 1, 0))
	}
}

func TestLoadErrors(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	_, err := Load(ctx, filepath.Join(dir, "missing.nc"), "t2m")
	if !errors.Is(errors.NotExist, err) {
		t.Errorf("missing file: got %v", err)
	}

	path := filepath.Join(dir, "in.nc")
	writeVar(t, path, "t2m", testValues(2, 2, 2), cubeDims, nil)
	_, err = Load(ctx, path, "precip")
	if !errors.Is(errors.NotExist, err) {
		t.Errorf("missing variable: got %v", err)
	}

	path = filepath.Join(dir, "flat.nc")
	writeVar(t, path, "t2m", []float32{1, 2, 3}, []string{"time"}, nil)
	_, err = Load(ctx, path, "t2m")
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("wrong rank: got %v", err)
	}
}

func TestBoxValidate(t *testing.T) {
	c := NewCube(10, 20, 30)
	for _, test := range []struct {
		box Box
		ok  bool
	}{
		{Box{0, 10, 0, 20, 0, 30}, true},
		{Box{2, 3, 5, 6, 7, 8}, true},
		{Box{-1, 10, 0, 20, 0, 30}, false},
		{Box{0, 11, 0, 20, 0, 30}, false},
		{Box{0, 10, 0, 21, 0, 30}, false},
		{Box{0, 10, 0, 20, 0, 31}, false},
		{Box{5, 5, 0, 20, 0, 30}, false},
		{Box{0, 10, 8, 4, 0, 30}, false},
		{Box{0, 10, 0, 20, 30, 30}, false},
	} {
		err := test.box.Validate(c)
		if test.ok {
			if err != nil {
				t.Errorf("%v: %v", test.box, err)
			}
			continue
		}
		if !errors.Is(errors.Invalid, err) {
			t.Errorf("%v: got %v, want invalid", test.box, err)
		}
	}
}

func TestCompute(t *testing.T) {
	fz := fuzz.New()
	fz.NilChance(0)
	c := NewCube(12, 9, 11)
	var vals []float64
	fz.NumElements(len(c.Data), len(c.Data))
	fz.Fuzz(&vals)
	copy(c.Data, vals)
	ctx := context.Background()
	for _, box := range []Box{
		{0, 12, 0, 9, 0, 11},
		{3, 7, 2, 5, 4, 10},
		{11, 12, 8, 9, 10, 11},
	} {
		want := directStats(c, box)
		for _, threads := range []int{1, 2, 4, 8, 16} {
			t.Run(fmt.Sprintf("%v/%d", box, threads), func(t *testing.T) {
				got, err := Compute(ctx, team.New(team.Threads(threads)), c, box)
				assert.NoError(t, err)
				checkSeries(t, got, want, 1e-9)
			})
		}
	}
}

func TestComputeMissing(t *testing.T) {
	c := NewCube(2, 2, 2)
	copy(c.Data, []float64{
		1, math.NaN(),
		3, 5,
		math.NaN(), math.NaN(),
		math.NaN(), math.NaN(),
	})
	s, err := Compute(context.Background(), team.New(team.Threads(2)), c, Box{0, 2, 0, 2, 0, 2})
	assert.NoError(t, err)
	checkSeries(t, &Series{Mean: s.Mean[:1], Variance: s.Variance[:1]}, &Series{Mean: []float64{3}, Variance: []float64{8.0 / 3}}, 1e-12)
	if !math.IsNaN(s.Mean[1]) || !math.IsNaN(s.Variance[1]) {
		t.Errorf("got %v, %v, want NaN", s.Mean[1], s.Variance[1])
	}
}

func TestComputeInvalidBox(t *testing.T) {
	_, err := Compute(context.Background(), team.New(), NewCube(2, 2, 2), Box{0, 2, 0, 3, 0, 2})
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
}

func TestSaveReadSeries(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(dir, "out.nc")
	want := &Series{
		Mean:     []float64{1.5, 2.25, -3},
		Variance: []float64{0.5, 0, 12.125},
	}
	assert.NoError(t, Save(ctx, path, want))
	got, err := ReadSeries(ctx, path)
	assert.NoError(t, err)
	checkSeries(t, got, want, 0)
}

func TestPlot(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(dir, "plot.png")
	s := &Series{Mean: []float64{1, 2, 3}, Variance: []float64{0.1, 0.2, 0.1}}
	assert.NoError(t, Plot(ctx, s, "Statistics for t2m", path))
	info, err := os.Stat(path)
	assert.NoError(t, err)
	if info.Size() == 0 {
		t.Error("empty plot")
	}
	if err := Plot(ctx, new(Series), "empty", path); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
}

func TestConfig(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs, &cfg)
	assert.NoError(t, fs.Parse([]string{"-LAT_MIN=3", "-VAR_NAME=precip"}))
	want := DefaultConfig
	want.LatMin = 3
	want.VarName = "precip"
	expect.EQ(t, cfg, want)

	path := filepath.Join(dir, "config.json")
	assert.NoError(t, writeFile(ctx, path, []byte(`{"LAT_MAX": 7, "OUTPUT_FILE": "stats.nc"}`)))
	assert.NoError(t, cfg.Merge(ctx, path))
	want.LatMax = 7
	want.OutputFile = "stats.nc"
	expect.EQ(t, cfg, want)

	// A missing file leaves the configuration unchanged.
	assert.NoError(t, cfg.Merge(ctx, filepath.Join(dir, "missing.json")))
	expect.EQ(t, cfg, want)

	assert.NoError(t, writeFile(ctx, path, []byte(`{"LAT_MAX": `)))
	if err := cfg.Merge(ctx, path); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
	expect.EQ(t, cfg, want)

	// Written configurations merge back to themselves.
	assert.NoError(t, want.WriteJSON(ctx, path))
	var back Config
	assert.NoError(t, back.Merge(ctx, path))
	expect.EQ(t, back, want)
}

func TestRun(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	input := filepath.Join(dir, "in.nc")
	writeVar(t, input, "t2m", testValues(12, 60, 110), cubeDims, nil)

	cfg := DefaultConfig
	cfg.InputFile = input
	cfg.OutputFile = filepath.Join(dir, "out.nc")
	cfg.PlotFile = filepath.Join(dir, "plot.png")
	s, err := Run(ctx, cfg, team.New(team.Threads(4)))
	assert.NoError(t, err)
	expect.EQ(t, s.Len(), 10)

	c, err := Load(ctx, input, "t2m")
	assert.NoError(t, err)
	checkSeries(t, s, directStats(c, cfg.Box()), 1e-9)

	saved, err := ReadSeries(ctx, cfg.OutputFile)
	assert.NoError(t, err)
	checkSeries(t, saved, s, 1e-6)
	_, err = os.Stat(cfg.PlotFile)
	assert.NoError(t, err)

	// Plot failures are not fatal.
	cfg.PlotFile = filepath.Join(dir, "plot.unsupported")
	_, err = Run(ctx, cfg, team.New())
	assert.NoError(t, err)

	cfg.VarName = "precip"
	_, err = Run(ctx, cfg, team.New())
	if !errors.Is(errors.NotExist, err) {
		t.Errorf("got %v, want not exist", err)
	}
}
