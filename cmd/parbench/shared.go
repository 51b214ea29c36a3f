// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/parreduce/bench"
	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/matmul"
	"github.com/grailbio/parreduce/race"
	"github.com/grailbio/parreduce/reduce"
	"github.com/grailbio/parreduce/team"
)

func reduceCmd(cfg *config, name string, args []string) error {
	var (
		flags    = commandFlags(name, fmt.Sprintf("usage: parbench %s [-schedule static|cyclic]", name))
		schedule = flags.String("schedule", "static", "iteration schedule for the critical command")
	)
	if err := flags.Parse(args); err != nil {
		log.Fatal(err)
	}
	strategy := reduce.Strategy(name)
	if name == "critical" {
		sched, err := reduce.ParseSchedule(*schedule)
		if err != nil {
			return err
		}
		strategy = reduce.Strategy(sched.String())
	}
	ctx := context.Background()
	m := grid.Random(cfg.seed, cfg.rows, cfg.cols)
	log.Printf("reducing %v with %s", m, strategy)
	threads := cfg.threads
	if strategy == reduce.SerialStrategy {
		threads = []int{1}
	}
	for _, n := range threads {
		t := team.New(team.Threads(n))
		res, err := bench.Time(cfg.niter, func() (float64, error) {
			return reduce.Mean(ctx, strategy, t, m)
		})
		if err != nil {
			return err
		}
		if strategy != reduce.SerialStrategy {
			fmt.Printf("%d threads\n", n)
		}
		res.Report(os.Stdout)
	}
	return nil
}

func raceCmd(cfg *config, args []string) error {
	var (
		flags = commandFlags("race", "usage: parbench race [-n increments] [-counter "+
			strings.Join(counterNames(), "|")+"] [-trials n]")
		n       = flags.Int64("n", 1e6, "number of increments")
		counter = flags.String("counter", "unguarded", "how workers share the counter")
		trials  = flags.Int("trials", 1, "number of experiments per thread count")
	)
	if err := flags.Parse(args); err != nil {
		log.Fatal(err)
	}
	fn, ok := race.Counters()[*counter]
	if !ok {
		return fmt.Errorf("unknown counter %q", *counter)
	}
	ctx := context.Background()
	for _, threads := range cfg.threads {
		t := team.New(team.Threads(threads))
		for i := 0; i < *trials; i++ {
			exp, err := fn(ctx, t, *n)
			if err != nil {
				return err
			}
			fmt.Printf("%d threads\n%s\n", threads, exp)
		}
	}
	return nil
}

func counterNames() []string {
	var names []string
	for name := range race.Counters() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func matmulCmd(cfg *config, args []string) error {
	flags := commandFlags("matmul", "usage: parbench matmul")
	if err := flags.Parse(args); err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	a := grid.Random(cfg.seed, cfg.rows, cfg.cols)
	b := grid.Random(cfg.seed+1, cfg.cols, cfg.rows)
	for _, threads := range cfg.threads {
		t := team.New(team.Threads(threads))
		start := time.Now()
		if _, err := matmul.Mul(ctx, t, a, b); err != nil {
			return err
		}
		fmt.Printf("%d threads\nTime: %.8f seconds\n", threads, time.Since(start).Seconds())
	}
	return nil
}
