// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package spatialstats

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Config holds the parameters of a run. The JSON names of its fields
// are the keys accepted in a JSON configuration file; the same names
// are used for command line flags.
type Config struct {
	InputFile  string `json:"INPUT_FILE"`
	OutputFile string `json:"OUTPUT_FILE"`
	PlotFile   string `json:"PLOT_FILE"`
	VarName    string `json:"VAR_NAME"`

	TimeMin int `json:"TIME_MIN"`
	TimeMax int `json:"TIME_MAX"`
	LatMin  int `json:"LAT_MIN"`
	LatMax  int `json:"LAT_MAX"`
	LonMin  int `json:"LON_MIN"`
	LonMax  int `json:"LON_MAX"`

	JSONFile string `json:"JSON_FILE"`
}

// DefaultConfig is the configuration used when neither flags nor a
// JSON file say otherwise.
var DefaultConfig = Config{
	InputFile:  "era_interim_monthly_197901_201512_upscaled_annual.nc",
	OutputFile: "out.nc",
	PlotFile:   "plot.png",
	VarName:    "t2m",
	TimeMin:    0,
	TimeMax:    10,
	LatMin:     5,
	LatMax:     50,
	LonMin:     10,
	LonMax:     100,
}

// RegisterFlags registers flags for each configuration key in fs,
// bound to the fields of cfg. Flag defaults are the values of
// DefaultConfig.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	d := DefaultConfig
	fs.StringVar(&cfg.InputFile, "INPUT_FILE", d.InputFile, "path or URL of the input NetCDF file")
	fs.StringVar(&cfg.OutputFile, "OUTPUT_FILE", d.OutputFile, "path or URL of the output NetCDF file")
	fs.StringVar(&cfg.PlotFile, "PLOT_FILE", d.PlotFile, "path or URL of the diagnostic plot")
	fs.StringVar(&cfg.VarName, "VAR_NAME", d.VarName, "name of the variable to analyze (e.g., t2m, precip)")
	fs.IntVar(&cfg.TimeMin, "TIME_MIN", d.TimeMin, "first time index")
	fs.IntVar(&cfg.TimeMax, "TIME_MAX", d.TimeMax, "time index bound (exclusive)")
	fs.IntVar(&cfg.LatMin, "LAT_MIN", d.LatMin, "first latitude index")
	fs.IntVar(&cfg.LatMax, "LAT_MAX", d.LatMax, "latitude index bound (exclusive)")
	fs.IntVar(&cfg.LonMin, "LON_MIN", d.LonMin, "first longitude index")
	fs.IntVar(&cfg.LonMax, "LON_MAX", d.LonMax, "longitude index bound (exclusive)")
	fs.StringVar(&cfg.JSONFile, "JSON_FILE", "", "JSON configuration file; its keys override flag values")
}

// Merge overrides the fields of cfg with the keys present in the JSON
// file at path. Keys absent from the file keep their current values.
// A missing file is not an error: Merge logs a warning and leaves cfg
// unchanged. A file that cannot be read or decoded is an error.
func (cfg *Config) Merge(ctx context.Context, path string) error {
	if _, err := file.Stat(ctx, path); err != nil {
		if errors.Is(errors.NotExist, err) {
			log.Printf("warning: JSON file %s not found; using flag values", path)
			return nil
		}
		return errors.E(fmt.Sprintf("config %s", path), err)
	}
	b, err := readFile(ctx, path)
	if err != nil {
		return errors.E(fmt.Sprintf("config %s", path), err)
	}
	merged := *cfg
	if err := json.Unmarshal(b, &merged); err != nil {
		return errors.E(errors.Invalid, fmt.Sprintf("config %s", path), err)
	}
	*cfg = merged
	log.Printf("configuration loaded from %s", path)
	return nil
}

// Box returns the selection box named by cfg.
func (cfg Config) Box() Box {
	return Box{
		TimeMin: cfg.TimeMin, TimeMax: cfg.TimeMax,
		LatMin: cfg.LatMin, LatMax: cfg.LatMax,
		LonMin: cfg.LonMin, LonMax: cfg.LonMax,
	}
}

// WriteJSON writes cfg as a JSON configuration file to path.
func (cfg Config) WriteJSON(ctx context.Context, path string) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(ctx, path, b)
}

func writeFile(ctx context.Context, path string, b []byte) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(ctx); err == nil {
			err = cerr
		}
	}()
	_, err = f.Writer(ctx).Write(b)
	return err
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close(ctx)
	return io.ReadAll(f.Reader(ctx))
}
