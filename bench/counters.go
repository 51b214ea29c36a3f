// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bench

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Values is a snapshot of a set of counters.
type Values map[string]int64

// Total returns the sum of all values in the snapshot.
func (v Values) Total() int64 {
	var total int64
	for _, n := range v {
		total += n
	}
	return total
}

// String returns the values in this snapshot, sorted by key.
func (v Values) String() string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for i, key := range keys {
		keys[i] = fmt.Sprintf("%s:%d", key, v[key])
	}
	return strings.Join(keys, " ")
}

// Counters is a set of named counters that may be incremented
// concurrently, for example to record how many elements each worker
// reduced.
type Counters struct {
	mu     sync.Mutex
	values map[string]*int64
}

// NewCounters returns an empty set of counters.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]*int64)}
}

func (c *Counters) counter(name string) *int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.values[name]
	if v == nil {
		v = new(int64)
		c.values[name] = v
	}
	return v
}

// Add increments the counter with the provided name by delta. Add is
// a no-op on a nil Counters, so that instrumentation is optional.
func (c *Counters) Add(name string, delta int64) {
	if c == nil {
		return
	}
	atomic.AddInt64(c.counter(name), delta)
}

// Rank increments the counter for the worker with the provided rank.
func (c *Counters) Rank(rank int, delta int64) {
	c.Add(fmt.Sprintf("rank%02d", rank), delta)
}

// Snapshot returns the current values of all counters.
func (c *Counters) Snapshot() Values {
	vals := make(Values)
	if c == nil {
		return vals
	}
	c.mu.Lock()
	for k, v := range c.values {
		vals[k] = atomic.LoadInt64(v)
	}
	c.mu.Unlock()
	return vals
}
