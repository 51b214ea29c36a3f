// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package spatialstats

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot size, matching a 10x6 inch figure.
const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// Plot draws the mean and variance series of s against the time step
// and writes the figure to path. The image format is taken from the
// extension of path and defaults to PNG.
func Plot(ctx context.Context, s *Series, title, path string) (err error) {
	if s.Len() == 0 {
		return errors.E(errors.Invalid, "plot: no statistics to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time Step"
	p.Y.Label.Text = "Value"
	p.Legend.Top = true
	if err := plotutil.AddLines(p,
		"Spatial Mean", xys(s.Mean),
		"Spatial Variance", xys(s.Variance),
	); err != nil {
		return errors.E("plot", err)
	}
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if format == "" {
		format = "png"
	}
	w, err := p.WriterTo(plotWidth, plotHeight, format)
	if err != nil {
		return errors.E(errors.Invalid, "plot", err)
	}
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(ctx); err == nil {
			err = cerr
		}
	}()
	_, err = w.WriteTo(f.Writer(ctx))
	return err
}

func xys(ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(ys))
	for i, y := range ys {
		pts[i].X = float64(i)
		pts[i].Y = y
	}
	return pts
}
