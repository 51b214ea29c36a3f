// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cluster runs the partitioned mean reduction across separate
// processes managed by bigmachine. The driver process acts as the
// root: it holds the input matrix, scatters blocks of rows to the
// ranks (one per machine) in rank order, and sum-reduces the partial
// results they return. Each rank reduces its block on its own team of
// threads, so a cluster reduction is a two-level (hybrid) reduction:
// threads within a process, then processes within the cluster.
//
// Because bigmachine launches additional copies of the running
// binary, bigmachine.Start must be called early in main, before any
// other work is done, and cluster.Start must be called with the
// returned *bigmachine.B:
//
//	b := bigmachine.Start(bigmachine.Local)
//	defer b.Shutdown()
//	c, err := cluster.Start(ctx, b, 4, cluster.Threads(8))
//	...
//	p, err := c.Reduce(ctx, m)
package cluster

import (
	"context"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/parreduce/bench"
	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/reduce"
	"golang.org/x/sync/errgroup"
)

func init() {
	gob.Register(&rankService{})
}

// A Cluster is a fixed set of ranks, each running in its own process.
type Cluster struct {
	machines []*bigmachine.Machine

	threads     int
	strategy    reduce.Strategy
	maxInflight int
	status      *status.Status
	counters    *bench.Counters

	// limiter bounds the number of blocks in transit at once.
	limiter *limiter.Limiter
}

// An Option represents a cluster configuration parameter value.
type Option func(c *Cluster)

// Threads configures the number of threads each rank uses to reduce
// its block. By default, each rank uses one thread per available
// processor.
func Threads(n int) Option {
	if n <= 0 {
		panic("cluster.Threads: n <= 0")
	}
	return func(c *Cluster) {
		c.threads = n
	}
}

// Strategy configures the strategy each rank uses to reduce its block.
func Strategy(s reduce.Strategy) Option {
	return func(c *Cluster) {
		c.strategy = s
	}
}

// MaxInflight configures the maximum number of blocks that may be in
// transit to ranks at the same time. By default all blocks are sent
// concurrently.
func MaxInflight(n int) Option {
	if n <= 0 {
		panic("cluster.MaxInflight: n <= 0")
	}
	return func(c *Cluster) {
		c.maxInflight = n
	}
}

// Status configures the cluster to report machine status to s.
func Status(s *status.Status) Option {
	return func(c *Cluster) {
		c.status = s
	}
}

// Counters configures the cluster to count the elements reduced by
// each rank.
func Counters(counters *bench.Counters) Option {
	return func(c *Cluster) {
		c.counters = counters
	}
}

// Start starts n ranks on b and waits for all of them to boot. Start
// fails if any machine fails to start.
func Start(ctx context.Context, b *bigmachine.B, n int, options ...Option) (*Cluster, error) {
	if n <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("cluster.Start: invalid size %d", n))
	}
	c := &Cluster{strategy: reduce.DefaultStrategy}
	for _, opt := range options {
		opt(c)
	}
	if c.maxInflight == 0 {
		c.maxInflight = n
	}
	c.limiter = limiter.New()
	c.limiter.Release(c.maxInflight)

	service := &rankService{Threads: c.threads, Strategy: c.strategy}
	machines, err := b.Start(ctx, n, bigmachine.Services{"Rank": service})
	if err != nil {
		return nil, err
	}
	var group *status.Group
	if c.status != nil {
		group = c.status.Group("cluster")
	}
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(machines))
	)
	for i := range machines {
		i, m := i, machines[i]
		var task *status.Task
		if group != nil {
			task = group.Start()
			task.Print("waiting for machine to boot")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-m.Wait(bigmachine.Running):
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			if err := m.Err(); err != nil {
				log.Error.Printf("cluster: machine %s failed to start: %v", m.Addr, err)
				errs[i] = err
			} else {
				log.Printf("cluster: rank %d is machine %s", i, m.Addr)
			}
			if task != nil {
				task.Title(fmt.Sprintf("rank %d: %s", i, m.Addr))
				if errs[i] != nil {
					task.Printf("failed to start: %v", errs[i])
				} else {
					task.Print("running")
				}
				task.Done()
			}
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			for _, m := range machines {
				m.Cancel()
			}
			return nil, errors.E(fmt.Sprintf("cluster.Start: rank %d", i), err)
		}
	}
	c.machines = machines
	return c, nil
}

// Size returns the number of ranks in the cluster.
func (c *Cluster) Size() int { return len(c.machines) }

// Reduce computes the combined partial of m. The rows of m are split
// into Size() contiguous blocks, block i is sent to rank i, and the
// partials returned by the ranks are combined in rank order.
func (c *Cluster) Reduce(ctx context.Context, m *grid.Matrix) (reduce.Partial, error) {
	var (
		blocks   = m.Blocks(len(c.machines))
		partials = make([]reduce.Partial, len(c.machines))
	)
	g, ctx := errgroup.WithContext(ctx)
	for i := range c.machines {
		i := i
		g.Go(func() error {
			if err := c.limiter.Acquire(ctx, 1); err != nil {
				return err
			}
			defer c.limiter.Release(1)
			req := reduceRequest{Rows: blocks[i].Rows, Cols: blocks[i].Cols, Data: blocks[i].Data}
			if err := c.machines[i].Call(ctx, "Rank.Reduce", req, &partials[i]); err != nil {
				return errors.E(fmt.Sprintf("rank %d (%s)", i, c.machines[i].Addr), err)
			}
			if got, want := partials[i].Count, int64(blocks[i].Len()); got != want {
				return errors.E(errors.Integrity, fmt.Sprintf("rank %d reduced %d elements, sent %d", i, got, want))
			}
			c.counters.Rank(i, partials[i].Count)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reduce.Partial{}, err
	}
	return reduce.Combine(partials...), nil
}

// Mean returns the mean of m as computed by Reduce.
func (c *Cluster) Mean(ctx context.Context, m *grid.Matrix) (float64, error) {
	p, err := c.Reduce(ctx, m)
	if err != nil {
		return 0, err
	}
	return p.Mean()
}

// Broadcast sends a copy of data to every rank and returns, in rank
// order, the fingerprint of the copy each rank received.
func (c *Cluster) Broadcast(ctx context.Context, data []float64) ([]uint64, error) {
	sums := make([]uint64, len(c.machines))
	g, ctx := errgroup.WithContext(ctx)
	for i := range c.machines {
		i := i
		g.Go(func() error {
			if err := c.limiter.Acquire(ctx, 1); err != nil {
				return err
			}
			defer c.limiter.Release(1)
			return c.machines[i].Call(ctx, "Rank.Fingerprint", data, &sums[i])
		})
	}
	return sums, g.Wait()
}

// Shutdown cancels every machine in the cluster.
func (c *Cluster) Shutdown() {
	for _, m := range c.machines {
		m.Cancel()
	}
}
