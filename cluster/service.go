// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cluster

import (
	"context"
	"encoding/binary"
	"math"
	"runtime"

	"github.com/grailbio/base/log"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/parreduce/grid"
	"github.com/grailbio/parreduce/reduce"
	"github.com/grailbio/parreduce/team"
	"github.com/spaolacci/murmur3"
)

// ReduceRequest carries one block of rows to a rank.
type reduceRequest struct {
	Rows, Cols int
	Data       []float64
}

// RankService is the bigmachine service installed on every rank. Its
// exported fields are the configuration sent from the driver; the
// team is created on the rank itself when the service is initialized.
type rankService struct {
	Threads  int
	Strategy reduce.Strategy

	team *team.Team
}

// Init implements bigmachine's service initialization. The rank's
// thread team is sized by the driver's configuration, or else by the
// machine's available processors.
func (s *rankService) Init(b *bigmachine.B) error {
	threads := s.Threads
	if threads == 0 {
		threads = b.System().Maxprocs()
	}
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	if s.Strategy == "" {
		s.Strategy = reduce.DefaultStrategy
	}
	s.team = team.New(team.Threads(threads), team.Name("rank"))
	log.Printf("rank: reducing with %s on %v", s.Strategy, s.team)
	return nil
}

// Reduce reduces the block carried by req on the rank's team.
func (s *rankService) Reduce(ctx context.Context, req reduceRequest, p *reduce.Partial) error {
	block, err := grid.FromData(req.Rows, req.Cols, req.Data)
	if err != nil {
		return err
	}
	*p, err = reduce.Run(ctx, s.Strategy, s.team, block)
	return err
}

// Fingerprint returns the fingerprint of the data it received.
func (s *rankService) Fingerprint(ctx context.Context, data []float64, sum *uint64) error {
	*sum = Fingerprint(data)
	return nil
}

// Fingerprint returns a 64-bit murmur3 hash of the bit patterns of
// data. Copies of a slice have equal fingerprints exactly when they are
// bit-identical, up to hash collisions.
func Fingerprint(data []float64) uint64 {
	h := murmur3.New64()
	var buf [8]byte
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return h.Sum64()
}
