// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package mpi implements MPI-style message passing among a fixed
// number of ranks running in the same process. Each rank is a
// goroutine that shares nothing with the other ranks: data move only
// through the point-to-point and collective operations in this
// package, and every payload is copied when it is sent.
//
// A computation is started with Run, which invokes the same function
// once per rank, much like mpiexec launches one process per rank:
//
//	err := mpi.Run(ctx, 4, func(ctx context.Context, c *mpi.Comm) error {
//		data := make([]float64, 10)
//		if c.Rank() == mpi.Root {
//			// Fill data.
//		}
//		return mpi.Bcast(ctx, c, data, mpi.Root)
//	})
//
// All operations block. Send returns once the payload has been
// delivered to the destination's mailbox; Recv returns once a matching
// message has been received. Collective operations must be called by
// every rank of the communicator, in the same order.
//
// If any rank returns an error, the context passed to the other ranks
// is canceled, so that ranks blocked in communication with it return.
package mpi

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"golang.org/x/sync/errgroup"
)

// Root is the rank conventionally used as the source of input data
// and the destination of results.
const Root = 0

// A Comm is a rank's handle to its communicator.
type Comm struct {
	rank  int
	boxes []*mailbox
	// seq numbers the collective operations invoked by this rank. Since
	// every rank invokes collectives in the same order, equal sequence
	// numbers identify the same collective across ranks.
	seq int
}

// Run starts size ranks, invoking fn concurrently with each rank's
// communicator, and returns after all of them have returned. Run
// returns the first error returned by any rank.
func Run(ctx context.Context, size int, fn func(ctx context.Context, c *Comm) error) error {
	if size <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("mpi.Run: invalid size %d", size))
	}
	boxes := make([]*mailbox, size)
	for i := range boxes {
		boxes[i] = new(mailbox)
	}
	g, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		c := &Comm{rank: rank, boxes: boxes}
		g.Go(func() (err error) {
			defer func() {
				if e := recover(); e != nil {
					err = errors.E(errors.Fatal, fmt.Sprintf("rank %d panicked: %v", c.rank, e))
				}
			}()
			if err = fn(ctx, c); err != nil {
				log.Debug.Printf("mpi: rank %d: %v", c.rank, err)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for rank, box := range boxes {
		if n := box.Len(); n > 0 {
			log.Error.Printf("mpi: rank %d exited with %d unreceived messages", rank, n)
		}
	}
	return nil
}

// Rank returns the rank of c, 0 <= Rank() < Size().
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks in c's communicator.
func (c *Comm) Size() int { return len(c.boxes) }

func (c *Comm) String() string {
	return fmt.Sprintf("rank %d/%d", c.rank, len(c.boxes))
}

func (c *Comm) checkRank(op string, rank int) error {
	if rank < 0 || rank >= len(c.boxes) {
		return errors.E(errors.Invalid, fmt.Sprintf("mpi.%s: rank %d out of range [0, %d)", op, rank, len(c.boxes)))
	}
	return nil
}

// nextTag returns the tag reserved for the next collective operation.
// Collective tags are negative, so they never collide with user tags.
func (c *Comm) nextTag() int {
	c.seq++
	return -c.seq
}

func (c *Comm) send(ctx context.Context, data interface{}, dest, tag int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.boxes[dest].Put(message{src: c.rank, tag: tag, data: data})
	return nil
}

// Send delivers a copy of data to rank dest with the provided tag. Tags
// must be non-negative.
func Send[T any](ctx context.Context, c *Comm, data []T, dest, tag int) error {
	if err := c.checkRank("Send", dest); err != nil {
		return err
	}
	if tag < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("mpi.Send: negative tag %d", tag))
	}
	return c.send(ctx, append([]T(nil), data...), dest, tag)
}

// Recv receives a message sent by rank src with the provided tag into
// buf. The message must have been sent with the same element type and
// length as buf.
func Recv[T any](ctx context.Context, c *Comm, buf []T, src, tag int) error {
	if err := c.checkRank("Recv", src); err != nil {
		return err
	}
	if tag < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("mpi.Recv: negative tag %d", tag))
	}
	return recv(ctx, c, buf, src, tag)
}

func recv[T any](ctx context.Context, c *Comm, buf []T, src, tag int) error {
	data, err := c.boxes[c.rank].Take(ctx, src, tag)
	if err != nil {
		return err
	}
	msg, ok := data.([]T)
	if !ok {
		return errors.E(errors.Invalid, fmt.Sprintf("mpi: rank %d received %T from rank %d, want %T", c.rank, data, src, buf))
	}
	if len(msg) != len(buf) {
		return errors.E(errors.Invalid, fmt.Sprintf("mpi: rank %d received %d elements from rank %d into a buffer of %d", c.rank, len(msg), src, len(buf)))
	}
	copy(buf, msg)
	return nil
}
