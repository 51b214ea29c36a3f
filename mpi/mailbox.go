// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package mpi

import (
	"context"
	"sync"
)

// A message is a payload in transit between two ranks.
type message struct {
	src, tag int
	data     interface{}
}

// A mailbox holds the messages delivered to one rank that have not
// yet been received. Messages from the same source with the same tag
// are received in the order they were sent.
type mailbox struct {
	mu    sync.Mutex
	waitc chan struct{}
	q     []message
}

// Put delivers a message and wakes any receivers.
func (b *mailbox) Put(m message) {
	b.mu.Lock()
	b.q = append(b.q, m)
	if b.waitc != nil {
		close(b.waitc)
		b.waitc = nil
	}
	b.mu.Unlock()
}

// Take removes and returns the oldest message from src with the
// provided tag, blocking until one arrives or the context is done.
func (b *mailbox) Take(ctx context.Context, src, tag int) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		for i, m := range b.q {
			if m.src == src && m.tag == tag {
				b.q = append(b.q[:i], b.q[i+1:]...)
				return m.data, nil
			}
		}
		if err := b.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// Wait releases the mailbox lock until the next Put or until the
// context is done, reacquiring it before returning.
func (b *mailbox) wait(ctx context.Context) error {
	if b.waitc == nil {
		b.waitc = make(chan struct{})
	}
	waitc := b.waitc
	b.mu.Unlock()
	var err error
	select {
	case <-waitc:
	case <-ctx.Done():
		err = ctx.Err()
	}
	b.mu.Lock()
	return err
}

// Len returns the number of undelivered messages.
func (b *mailbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.q)
}
