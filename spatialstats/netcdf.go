// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package spatialstats

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Load reads the (time, lat, lon) variable named varName from the
// NetCDF file at path. Packed variables are unpacked with their
// scale_factor and add_offset attributes, and cells equal to the
// variable's _FillValue or missing_value become NaN.
//
// Load returns an errors.NotExist error if the file or the variable
// does not exist, and an errors.Invalid error if the variable is not
// three-dimensional or has an unsupported type.
func Load(ctx context.Context, path, varName string) (*Cube, error) {
	if _, err := file.Stat(ctx, path); err != nil {
		if errors.Is(errors.NotExist, err) {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("input file %s does not exist", path), err)
		}
		return nil, errors.E(fmt.Sprintf("stat %s", path), err)
	}
	local, cleanup, err := fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	nc, err := netcdf.Open(local)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("open %s", path), err)
	}
	defer nc.Close()
	if !hasVariable(nc, varName) {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("variable %q not found in %s", varName, path))
	}
	v, err := nc.GetVariable(varName)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("read %s in %s", varName, path), err)
	}
	if len(v.Dimensions) != 3 {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("variable %q has dimensions %v, want (time, lat, lon)", varName, v.Dimensions))
	}
	cube, err := toCube(v.Values)
	if err != nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("variable %q", varName), err)
	}
	unpack(cube, v.Attributes)
	log.Debug.Printf("spatialstats: loaded %s %v from %s", varName, cube, path)
	return cube, nil
}

func hasVariable(nc api.Group, name string) bool {
	for _, v := range nc.ListVariables() {
		if v == name {
			return true
		}
	}
	return false
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func toCube(values interface{}) (*Cube, error) {
	switch v := values.(type) {
	case [][][]float64:
		return flatten(v)
	case [][][]float32:
		return flatten(v)
	case [][][]int8:
		return flatten(v)
	case [][][]uint8:
		return flatten(v)
	case [][][]int16:
		return flatten(v)
	case [][][]uint16:
		return flatten(v)
	case [][][]int32:
		return flatten(v)
	case [][][]uint32:
		return flatten(v)
	case [][][]int64:
		return flatten(v)
	case [][][]uint64:
		return flatten(v)
	default:
		return nil, fmt.Errorf("unsupported value type %T", values)
	}
}

func flatten[T number](v [][][]T) (*Cube, error) {
	var lats, lons int
	if len(v) > 0 {
		lats = len(v[0])
		if lats > 0 {
			lons = len(v[0][0])
		}
	}
	c := NewCube(len(v), lats, lons)
	for t := range v {
		if len(v[t]) != lats {
			return nil, fmt.Errorf("ragged array at time %d", t)
		}
		for y := range v[t] {
			if len(v[t][y]) != lons {
				return nil, fmt.Errorf("ragged array at time %d, latitude %d", t, y)
			}
			row := c.Row(t, y, 0, lons)
			for x, val := range v[t][y] {
				row[x] = float64(val)
			}
		}
	}
	return c, nil
}

// unpack applies the CF packing and missing value conventions to c.
func unpack(c *Cube, attrs api.AttributeMap) {
	if attrs == nil {
		return
	}
	var missing []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrFloat(attrs, key); ok {
			missing = append(missing, v)
		}
	}
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, hasOffset := attrFloat(attrs, "add_offset")
	if !hasScale {
		scale = 1
	}
	if len(missing) == 0 && !hasScale && !hasOffset {
		return
	}
	for i, v := range c.Data {
		for _, m := range missing {
			if v == m {
				v = math.NaN()
				break
			}
		}
		c.Data[i] = v*scale + offset
	}
}

// attrFloat returns the numeric attribute key as a float64. NetCDF
// attributes are vectors; single-element vectors are accepted as
// scalars.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	val, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case []float64:
		if len(v) == 1 {
			return v[0], true
		}
	case []float32:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	case []int16:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	case []int32:
		if len(v) == 1 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

// Save writes s to a new NetCDF file at path. The file has one
// dimension, t, and two float32 variables indexed by it:
// temporal_spatial_mean and temporal_spatial_variance.
func Save(ctx context.Context, path string, s *Series) error {
	return publish(ctx, path, func(local string) error {
		cw, err := cdf.OpenWriter(local)
		if err != nil {
			return err
		}
		for _, v := range []struct {
			name   string
			values []float64
		}{
			{"temporal_spatial_mean", s.Mean},
			{"temporal_spatial_variance", s.Variance},
		} {
			err := cw.AddVar(v.name, api.Variable{
				Values:     toFloat32(v.values),
				Dimensions: []string{"t"},
			})
			if err != nil {
				cw.Close()
				return errors.E(fmt.Sprintf("add variable %s", v.name), err)
			}
		}
		return cw.Close()
	})
}

// ReadSeries reads the statistics saved by Save from the NetCDF file
// at path.
func ReadSeries(ctx context.Context, path string) (*Series, error) {
	local, cleanup, err := fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	nc, err := netcdf.Open(local)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("open %s", path), err)
	}
	defer nc.Close()
	s := new(Series)
	for _, v := range []struct {
		name string
		dst  *[]float64
	}{
		{"temporal_spatial_mean", &s.Mean},
		{"temporal_spatial_variance", &s.Variance},
	} {
		if !hasVariable(nc, v.name) {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("variable %q not found in %s", v.name, path))
		}
		vr, err := nc.GetVariable(v.name)
		if err != nil {
			return nil, err
		}
		vals, ok := vr.Values.([]float32)
		if !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("variable %q has type %T, want []float32", v.name, vr.Values))
		}
		*v.dst = make([]float64, len(vals))
		for i, x := range vals {
			(*v.dst)[i] = float64(x)
		}
	}
	if len(s.Mean) != len(s.Variance) {
		return nil, errors.E(errors.Integrity,
			fmt.Sprintf("%s: %d means, %d variances", path, len(s.Mean), len(s.Variance)))
	}
	return s, nil
}

func toFloat32(vs []float64) []float32 {
	out := make([]float32, len(vs))
	for i, v := range vs {
		out[i] = float32(v)
	}
	return out
}

// isLocal tells whether path names a file on the local file system.
func isLocal(path string) bool {
	scheme, _, err := file.ParsePath(path)
	return err == nil && scheme == ""
}

// fetch returns the path of a local file with the contents of path.
// Remote files are copied to a temporary file, which is removed by
// the returned cleanup function.
func fetch(ctx context.Context, path string) (local string, cleanup func(), err error) {
	if isLocal(path) {
		return path, func() {}, nil
	}
	f, err := file.Open(ctx, path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close(ctx)
	tmp, err := os.CreateTemp("", "spatialstats-*"+filepath.Ext(path))
	if err != nil {
		return "", nil, err
	}
	cleanup = func() {
		if err := os.Remove(tmp.Name()); err != nil {
			log.Error.Printf("remove %s: %v", tmp.Name(), err)
		}
	}
	if _, err := io.Copy(tmp, f.Reader(ctx)); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, errors.E(fmt.Sprintf("fetch %s", path), err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	log.Debug.Printf("spatialstats: fetched %s to %s", path, tmp.Name())
	return tmp.Name(), cleanup, nil
}

// publish calls write with a local path and makes its contents
// available at path. For remote paths, write produces a temporary
// file that is then uploaded.
func publish(ctx context.Context, path string, write func(local string) error) (err error) {
	if isLocal(path) {
		return write(path)
	}
	dir, err := os.MkdirTemp("", "spatialstats")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	local := filepath.Join(dir, filepath.Base(path))
	if err := write(local); err != nil {
		return err
	}
	in, err := os.Open(local)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(ctx); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out.Writer(ctx), in)
	return err
}
