// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/parreduce/bench"
	"github.com/grailbio/parreduce/cluster"
	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/mpi"
	"github.com/grailbio/parreduce/reduce"
	"github.com/grailbio/parreduce/team"
)

// stdout serializes output lines printed by concurrent ranks.
var stdout sync.Mutex

func printf(format string, args ...interface{}) {
	stdout.Lock()
	fmt.Printf(format, args...)
	stdout.Unlock()
}

func noFlags(name string, args []string) {
	flags := commandFlags(name, "usage: parbench "+name)
	if err := flags.Parse(args); err != nil {
		log.Fatal(err)
	}
}

func meanCmd(cfg *config, args []string) error {
	noFlags("mean", args)
	var (
		ctx   = context.Background()
		start = time.Now()
		m     *grid.Matrix
	)
	return mpi.Run(ctx, cfg.np, func(ctx context.Context, c *mpi.Comm) error {
		if c.Rank() == mpi.Root {
			printf("Main: Starting collective calculation with %d processes...\n", c.Size())
			m = grid.Random(cfg.seed, cfg.rows, cfg.cols)
		}
		p, err := mpi.ScatterReduce(ctx, c, m, cfg.rows, cfg.cols, mpi.SerialReducer)
		if err != nil {
			return err
		}
		if c.Rank() != mpi.Root {
			return nil
		}
		mean, err := p.Mean()
		if err != nil {
			return err
		}
		printf("Main: Final Mean = %.6f\n", mean)
		printf("Main: Total Time = %.4fs\n", time.Since(start).Seconds())
		return nil
	})
}

func hybridCmd(cfg *config, args []string) error {
	var (
		flags    = commandFlags("hybrid", "usage: parbench hybrid [-strategy name] [-maxinflight n]")
		strategy = flags.String("strategy", string(reduce.DefaultStrategy), "reduction strategy within each rank")
		inflight = flags.Int("maxinflight", 0, "maximum number of blocks in transit (0 for all)")
	)
	if err := flags.Parse(args); err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	threads := cfg.threads[len(cfg.threads)-1]
	m := grid.Random(cfg.seed, cfg.rows, cfg.cols)
	counters := bench.NewCounters()
	var mean float64
	if cfg.b == nil {
		local := func(ctx context.Context, block *grid.Matrix) (reduce.Partial, error) {
			return reduce.Run(ctx, reduce.Strategy(*strategy), team.New(team.Threads(threads)), block)
		}
		err := mpi.Run(ctx, cfg.np, func(ctx context.Context, c *mpi.Comm) error {
			var root *grid.Matrix
			if c.Rank() == mpi.Root {
				root = m
			}
			p, err := mpi.ScatterReduce(ctx, c, root, cfg.rows, cfg.cols, func(ctx context.Context, block *grid.Matrix) (reduce.Partial, error) {
				p, err := local(ctx, block)
				counters.Rank(c.Rank(), p.Count)
				return p, err
			})
			if err != nil || c.Rank() != mpi.Root {
				return err
			}
			mean, err = p.Mean()
			return err
		})
		if err != nil {
			return err
		}
	} else {
		options := []cluster.Option{
			cluster.Threads(threads),
			cluster.Strategy(reduce.Strategy(*strategy)),
			cluster.Counters(counters),
		}
		if *inflight > 0 {
			options = append(options, cluster.MaxInflight(*inflight))
		}
		if cfg.status {
			var (
				st      status.Status
				console status.Reporter
			)
			go console.Go(os.Stderr, &st)
			options = append(options, cluster.Status(&st))
		}
		c, err := cluster.Start(ctx, cfg.b, cfg.np, options...)
		if err != nil {
			return err
		}
		defer c.Shutdown()
		mean, err = c.Mean(ctx, m)
		if err != nil {
			return err
		}
	}
	fmt.Printf("Hybrid Result: %v\n", mean)
	log.Printf("elements reduced per rank: %s", counters.Snapshot())
	return nil
}

func bcastCmd(cfg *config, args []string) error {
	noFlags("bcast", args)
	ctx := context.Background()
	err := mpi.Run(ctx, cfg.np, func(ctx context.Context, c *mpi.Comm) error {
		data := make([]int32, c.Size()*5)
		if c.Rank() == mpi.Root {
			for i := range data {
				data[i] = int32(i)
			}
		}
		if err := mpi.Bcast(ctx, c, data, mpi.Root); err != nil {
			return err
		}
		printf("Rank %d %v\n", c.Rank(), data)
		return nil
	})
	if err != nil || cfg.b == nil {
		return err
	}
	// Also broadcast to separate processes and compare fingerprints.
	c, err := cluster.Start(ctx, cfg.b, cfg.np)
	if err != nil {
		return err
	}
	defer c.Shutdown()
	m := grid.Random(cfg.seed, cfg.rows, cfg.cols)
	sums, err := c.Broadcast(ctx, m.Data)
	if err != nil {
		return err
	}
	want := cluster.Fingerprint(m.Data)
	for rank, sum := range sums {
		fmt.Printf("Rank %d fingerprint %016x match=%v\n", rank, sum, sum == want)
	}
	return nil
}

func scatterCmd(cfg *config, args []string) error {
	noFlags("scatter", args)
	return mpi.Run(context.Background(), cfg.np, func(ctx context.Context, c *mpi.Comm) error {
		var send []int32
		if c.Rank() == mpi.Root {
			send = make([]int32, c.Size()*5)
			for i := range send {
				send[i] = int32(i)
			}
		}
		recv := make([]int32, 5)
		if err := mpi.Scatter(ctx, c, send, recv, mpi.Root); err != nil {
			return err
		}
		if c.Rank() == mpi.Root {
			printf("Rank %d %v\n", c.Rank(), send)
		} else {
			printf("Rank %d %v\n", c.Rank(), recv)
		}
		return nil
	})
}

func gatherCmd(cfg *config, args []string) error {
	noFlags("gather", args)
	return mpi.Run(context.Background(), cfg.np, func(ctx context.Context, c *mpi.Comm) error {
		send := make([]int32, 5)
		for i := range send {
			send[i] = int32(c.Rank())
		}
		var recv []int32
		if c.Rank() == mpi.Root {
			recv = make([]int32, c.Size()*5)
		}
		if err := mpi.Gather(ctx, c, send, recv, mpi.Root); err != nil {
			return err
		}
		if c.Rank() == mpi.Root {
			for r := 0; r < c.Size(); r++ {
				printf("Rank %d %v\n", c.Rank(), recv[r*5:(r+1)*5])
			}
		}
		return nil
	})
}

func p2pCmd(cfg *config, args []string) error {
	noFlags("p2p", args)
	if cfg.np < 2 {
		return fmt.Errorf("p2p requires at least 2 ranks, have %d", cfg.np)
	}
	return mpi.Run(context.Background(), cfg.np, func(ctx context.Context, c *mpi.Comm) error {
		switch c.Rank() {
		case 0:
			ints := make([]int32, 10)
			floats := make([]float64, 10)
			for i := range ints {
				ints[i] = int32(i)
				floats[i] = float64(i)
			}
			if err := mpi.Send(ctx, c, ints, 1, 77); err != nil {
				return err
			}
			return mpi.Send(ctx, c, floats, 1, 13)
		case 1:
			ints := make([]int32, 10)
			if err := mpi.Recv(ctx, c, ints, 0, 77); err != nil {
				return err
			}
			printf("Explicit %d %v\n", c.Rank(), ints)
			floats := make([]float64, 10)
			if err := mpi.Recv(ctx, c, floats, 0, 13); err != nil {
				return err
			}
			printf("Automatic %d %v\n", c.Rank(), floats)
		}
		return nil
	})
}

func allreduceCmd(cfg *config, args []string) error {
	noFlags("allreduce", args)
	return mpi.Run(context.Background(), cfg.np, func(ctx context.Context, c *mpi.Comm) error {
		result, err := mpi.AllreduceValue(ctx, c, c.Rank(), mpi.Sum)
		if err != nil {
			return err
		}
		printf("Rank %d: Result is %d\n", c.Rank(), result)
		return nil
	})
}
