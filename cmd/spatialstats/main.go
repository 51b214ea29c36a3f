// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Spatialstats computes the spatial mean and variance of a gridded
// NetCDF variable over a box of time, latitude and longitude indices,
// plots both series, and saves them to a new NetCDF file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/parreduce/spatialstats"
	"github.com/grailbio/parreduce/team"
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: spatialstats [flags]

Spatialstats loads VAR_NAME from INPUT_FILE, computes the spatial mean
and variance of every time step in [TIME_MIN, TIME_MAX) over latitudes
[LAT_MIN, LAT_MAX) and longitudes [LON_MIN, LON_MAX), writes a plot to
PLOT_FILE and the statistics to OUTPUT_FILE. Keys in JSON_FILE override
flag values. Files may be local paths or s3:// URLs.

Flags:
`)
		flag.PrintDefaults()
		os.Exit(2)
	}
	var cfg spatialstats.Config
	spatialstats.RegisterFlags(flag.CommandLine, &cfg)
	threads := flag.Int("threads", 0, "number of threads computing time steps (0 for one per processor)")
	log.AddFlags()
	flag.Parse()
	if flag.NArg() > 0 {
		flag.Usage()
	}

	ctx := context.Background()
	if cfg.JSONFile != "" {
		if err := cfg.Merge(ctx, cfg.JSONFile); err != nil {
			log.Fatalf("error loading JSON config: %v", err)
		}
	}
	var options []team.Option
	if *threads > 0 {
		options = append(options, team.Threads(*threads))
	}
	if _, err := spatialstats.Run(ctx, cfg, team.New(options...)); err != nil {
		log.Fatalf("analysis failed: %v", err)
	}
}
