// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package mpi

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
)

// Number is the set of element types that can be reduced.
type Number interface {
	~int | ~int32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Op is a reduction operator. All operators are associative and
// commutative.
type Op int

const (
	Sum Op = iota
	Prod
	Max
	Min
)

func (op Op) String() string {
	switch op {
	case Sum:
		return "sum"
	case Prod:
		return "prod"
	case Max:
		return "max"
	case Min:
		return "min"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

func apply[T Number](op Op, x, y T) T {
	switch op {
	case Prod:
		return x * y
	case Max:
		if y > x {
			return y
		}
		return x
	case Min:
		if y < x {
			return y
		}
		return x
	default:
		return x + y
	}
}

func invalid(op, format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf("mpi.%s: %s", op, fmt.Sprintf(format, args...)))
}

// Bcast copies buf on rank root into buf on every other rank. Every
// rank's buf must have the same length.
func Bcast[T any](ctx context.Context, c *Comm, buf []T, root int) error {
	if err := c.checkRank("Bcast", root); err != nil {
		return err
	}
	tag := c.nextTag()
	if c.rank != root {
		return recv(ctx, c, buf, root, tag)
	}
	for dest := range c.boxes {
		if dest == root {
			continue
		}
		if err := c.send(ctx, append([]T(nil), buf...), dest, tag); err != nil {
			return err
		}
	}
	return nil
}

// Scatter splits send on rank root into Size() contiguous chunks of
// len(recv) elements and delivers chunk i to rank i, in rank order.
// On the root, len(send) must equal Size()*len(recv); send is ignored
// on other ranks.
func Scatter[T any](ctx context.Context, c *Comm, send, recv []T, root int) error {
	if err := c.checkRank("Scatter", root); err != nil {
		return err
	}
	tag := c.nextTag()
	if c.rank != root {
		return recvInto(ctx, c, recv, root, tag)
	}
	n := len(recv)
	if len(send) != n*c.Size() {
		return invalid("Scatter", "send buffer of %d elements cannot be split into %d chunks of %d", len(send), c.Size(), n)
	}
	for dest := range c.boxes {
		chunk := send[dest*n : (dest+1)*n]
		if dest == root {
			copy(recv, chunk)
			continue
		}
		if err := c.send(ctx, append([]T(nil), chunk...), dest, tag); err != nil {
			return err
		}
	}
	return nil
}

// Gather is the inverse of Scatter: it concatenates send from every
// rank, in rank order, into recv on rank root. On the root, len(recv)
// must equal Size()*len(send); recv is ignored on other ranks.
func Gather[T any](ctx context.Context, c *Comm, send, recv []T, root int) error {
	if err := c.checkRank("Gather", root); err != nil {
		return err
	}
	tag := c.nextTag()
	if c.rank != root {
		return c.send(ctx, append([]T(nil), send...), root, tag)
	}
	n := len(send)
	if len(recv) != n*c.Size() {
		return invalid("Gather", "receive buffer of %d elements cannot hold %d chunks of %d", len(recv), c.Size(), n)
	}
	for src := range c.boxes {
		chunk := recv[src*n : (src+1)*n]
		if src == root {
			copy(chunk, send)
			continue
		}
		if err := recvInto(ctx, c, chunk, src, tag); err != nil {
			return err
		}
	}
	return nil
}

// Reduce combines send from every rank element-wise with op and
// stores the result in recv on rank root. Contributions are combined
// in rank order, so results are deterministic. On the root, len(recv)
// must equal len(send); recv is ignored on other ranks.
func Reduce[T Number](ctx context.Context, c *Comm, send, recv []T, op Op, root int) error {
	if err := c.checkRank("Reduce", root); err != nil {
		return err
	}
	tag := c.nextTag()
	if c.rank != root {
		return c.send(ctx, append([]T(nil), send...), root, tag)
	}
	if len(recv) != len(send) {
		return invalid("Reduce", "receive buffer has %d elements, send buffer %d", len(recv), len(send))
	}
	var (
		acc = make([]T, len(send))
		tmp = make([]T, len(send))
	)
	for src := range c.boxes {
		contrib := send
		if src != root {
			if err := recvInto(ctx, c, tmp, src, tag); err != nil {
				return err
			}
			contrib = tmp
		}
		if src == 0 {
			copy(acc, contrib)
			continue
		}
		for i := range acc {
			acc[i] = apply(op, acc[i], contrib[i])
		}
	}
	copy(recv, acc)
	return nil
}

// Allreduce is like Reduce, except that every rank receives the
// result. On every rank, len(recv) must equal len(send).
func Allreduce[T Number](ctx context.Context, c *Comm, send, recv []T, op Op) error {
	if len(recv) != len(send) {
		return invalid("Allreduce", "receive buffer has %d elements, send buffer %d", len(recv), len(send))
	}
	if err := Reduce(ctx, c, send, recv, op, Root); err != nil {
		return err
	}
	return Bcast(ctx, c, recv, Root)
}

// ReduceValue reduces a single value from every rank to root. The
// result is meaningful only on the root.
func ReduceValue[T Number](ctx context.Context, c *Comm, v T, op Op, root int) (T, error) {
	out := make([]T, 1)
	err := Reduce(ctx, c, []T{v}, out, op, root)
	return out[0], err
}

// AllreduceValue reduces a single value from every rank and returns
// the result on every rank.
func AllreduceValue[T Number](ctx context.Context, c *Comm, v T, op Op) (T, error) {
	out := make([]T, 1)
	err := Allreduce(ctx, c, []T{v}, out, op)
	return out[0], err
}

// Barrier returns once every rank has entered it.
func Barrier(ctx context.Context, c *Comm) error {
	return Allreduce[int](ctx, c, nil, nil, Sum)
}

// recvInto is recv, but reports the collective that failed.
func recvInto[T any](ctx context.Context, c *Comm, buf []T, src, tag int) error {
	if err := recv(ctx, c, buf, src, tag); err != nil {
		if errors.Is(errors.Invalid, err) {
			return errors.E(err, fmt.Sprintf("collective %d", -tag))
		}
		return err
	}
	return nil
}
