// SPDX-License-Identifier: MIT
package transport

import "sync/atomic"

// Mailbox is a bounded hand-off that never blocks the sender: when it is
// full the oldest pending value is discarded to make room.
type Mailbox[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

// NewMailbox creates a mailbox holding at most size pending values.
func NewMailbox[T any](size int) *Mailbox[T] {
	if size <= 0 {
		size = 1
	}
	return &Mailbox[T]{ch: make(chan T, size)}
}

// Put enqueues v, evicting the oldest pending value if necessary.
func (m *Mailbox[T]) Put(v T) {
	for {
		select {
		case m.ch <- v:
			return
		default:
		}
		select {
		case <-m.ch:
			m.dropped.Add(1)
		default:
		}
	}
}

// C returns the receive side of the mailbox.
func (m *Mailbox[T]) C() <-chan T { return m.ch }

// Dropped returns how many values were evicted unread.
func (m *Mailbox[T]) Dropped() uint64 { return m.dropped.Load() }
