// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Parbench runs the parallel reduction benchmarks and message passing
// demonstrations.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/parreduce/cluster"
)

// config holds the flags shared by all commands.
type config struct {
	rows, cols int
	seed       int64
	niter      int
	threads    []int
	np         int
	system     string
	status     bool

	// b is the bigmachine instance started for -system. It is nil for
	// the internal system.
	b *bigmachine.B
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: parbench [flags] command [command flags]

Command parbench computes the mean of a random matrix with several
parallelism strategies and reports the result and mean time of each,
and demonstrates message passing collectives between ranks.

Shared memory commands:

	serial
		Reduce on a single thread.
	threads
		Reduce on explicitly partitioned threads, one result slot each.
	loop
		Reduce with an automatically split parallel loop.
	critical
		Reduce with private accumulators merged in a critical section,
		using a static or cyclic schedule.
	race
		Demonstrate lost updates to an unguarded shared counter.
	matmul
		Time a matrix product on teams of different sizes.

Message passing commands (-np ranks):

	mean
		Scatter rows, reduce locally, and sum-reduce to the root.
	hybrid
		Like mean, with a thread team reducing within each rank. With
		-system other than internal, ranks are separate processes.
	bcast, scatter, gather, p2p, allreduce
		Demonstrate the corresponding collective or point to point
		operation.

Flags:
`)
		flag.PrintDefaults()
		os.Exit(2)
	}
	var (
		cfg     config
		threads = flag.String("threads", "1,2,4,8,16", "comma-separated list of thread counts")
	)
	flag.IntVar(&cfg.rows, "rows", 5000, "number of matrix rows")
	flag.IntVar(&cfg.cols, "cols", 5000, "number of matrix columns")
	flag.Int64Var(&cfg.seed, "seed", 1, "random seed for the matrix")
	flag.IntVar(&cfg.niter, "niter", 10, "number of timed iterations")
	flag.IntVar(&cfg.np, "np", 4, "number of message passing ranks")
	flag.StringVar(&cfg.system, "system", cluster.Internal,
		"system on which to run ranks: "+strings.Join(cluster.Systems(), ", "))
	flag.BoolVar(&cfg.status, "status", false, "print machine status to stderr")
	log.AddFlags()
	flag.Parse()

	var err error
	cfg.threads, err = parseThreads(*threads)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.system != cluster.Internal {
		sys, err := cluster.System(cfg.system)
		if err != nil {
			log.Fatal(err)
		}
		// Worker processes never return from Start.
		cfg.b = bigmachine.Start(sys)
	}

	if flag.NArg() == 0 {
		flag.Usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n", cmd)
		flag.Usage()
	case "serial", "threads", "loop", "critical":
		err = reduceCmd(&cfg, cmd, args)
	case "race":
		err = raceCmd(&cfg, args)
	case "matmul":
		err = matmulCmd(&cfg, args)
	case "mean":
		err = meanCmd(&cfg, args)
	case "hybrid":
		err = hybridCmd(&cfg, args)
	case "bcast":
		err = bcastCmd(&cfg, args)
	case "scatter":
		err = scatterCmd(&cfg, args)
	case "gather":
		err = gatherCmd(&cfg, args)
	case "p2p":
		err = p2pCmd(&cfg, args)
	case "allreduce":
		err = allreduceCmd(&cfg, args)
	}
	if cfg.b != nil {
		cfg.b.Shutdown()
	}
	must.Nil(err, cmd)
}

func parseThreads(list string) ([]int, error) {
	var threads []int
	for _, s := range strings.Split(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("-threads: %v", err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("-threads: invalid thread count %d", n)
		}
		threads = append(threads, n)
	}
	return threads, nil
}

// commandFlags returns a flag set for the named command whose usage
// message is usage.
func commandFlags(name, usage string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flags.PrintDefaults()
		os.Exit(2)
	}
	return flags
}
