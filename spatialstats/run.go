// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package spatialstats

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/parreduce/team"
)

// Run performs a full analysis as configured by cfg: it loads the
// input variable, computes its statistics on t, plots them and saves
// them, in that order. A failure to plot is logged and does not fail
// the run. Run returns the computed series.
func Run(ctx context.Context, cfg Config, t *team.Team) (*Series, error) {
	log.Printf("loading %s from %s", cfg.VarName, cfg.InputFile)
	cube, err := Load(ctx, cfg.InputFile, cfg.VarName)
	if err != nil {
		return nil, err
	}
	log.Printf("computing the statistics over %s on %v", cfg.Box(), t)
	s, err := Compute(ctx, t, cube, cfg.Box())
	if err != nil {
		return nil, err
	}
	log.Printf("visualizing the data")
	if err := Plot(ctx, s, fmt.Sprintf("Statistics for %s", cfg.VarName), cfg.PlotFile); err != nil {
		log.Error.Printf("error during visualization: %v", err)
	} else {
		log.Printf("plot saved to %s", cfg.PlotFile)
	}
	log.Printf("saving statistics to %s", cfg.OutputFile)
	if err := Save(ctx, cfg.OutputFile, s); err != nil {
		return nil, errors.E(fmt.Sprintf("save %s", cfg.OutputFile), err)
	}
	log.Printf("processing complete")
	return s, nil
}
