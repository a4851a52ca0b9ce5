// File: internal/concurrency/ring.go
// Package concurrency implements the lock-free MPMC ring buffer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RingBuffer is a bounded circular buffer with atomic head/tail, padded
// to prevent false sharing between producers and consumers. Enqueue and
// Dequeue follow Dmitry Vyukov's bounded MPMC queue algorithm: every cell
// carries its own sequence number so producers and consumers on
// different cells never contend on a single lock. Collapses the
// teacher's two near-duplicate ring drafts (core/concurrency/ring.go and
// core/concurrency/lock_free_queue.go) into the one this module needs.

package concurrency

import "sync/atomic"

type cell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// RingBuffer is a lock-free, bounded, multi-producer/multi-consumer queue.
type RingBuffer[T any] struct {
	head uint64
	_    [64]byte // keep head and tail on separate cache lines
	tail uint64
	_    [64]byte
	mask  uint64
	cells []cell[T]
}

// NewRingBuffer allocates a ring buffer whose capacity is size rounded up
// to the next power of two (at least 2).
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size < 2 {
		size = 2
	}
	capacity := 1
	for capacity < size {
		capacity <<= 1
	}
	r := &RingBuffer[T]{
		mask:  uint64(capacity - 1),
		cells: make([]cell[T], capacity),
	}
	for i := range r.cells {
		r.cells[i].sequence.Store(uint64(i))
	}
	return r
}

// Enqueue adds item to the ring; returns false if the ring is full.
func (r *RingBuffer[T]) Enqueue(item T) bool {
	for {
		tail := atomic.LoadUint64(&r.tail)
		c := &r.cells[tail&r.mask]
		seq := c.sequence.Load()

		switch diff := int64(seq) - int64(tail); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&r.tail, tail, tail+1) {
				c.data = item
				c.sequence.Store(tail + 1)
				return true
			}
		case diff < 0:
			return false // full
		default:
			// another producer advanced tail first; retry
		}
	}
}

// Dequeue removes and returns the oldest item; ok is false if empty.
func (r *RingBuffer[T]) Dequeue() (item T, ok bool) {
	for {
		head := atomic.LoadUint64(&r.head)
		c := &r.cells[head&r.mask]
		seq := c.sequence.Load()

		switch diff := int64(seq) - int64(head+1); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&r.head, head, head+1) {
				item = c.data
				var zero T
				c.data = zero
				c.sequence.Store(head + r.mask + 1)
				return item, true
			}
		case diff < 0:
			return item, false // empty
		default:
			// another consumer advanced head first; retry
		}
	}
}

// Len returns a snapshot count of items currently queued. Racy by
// construction under concurrent use; intended for metrics, not control flow.
func (r *RingBuffer[T]) Len() int {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	return int(tail - head)
}

// Cap returns the fixed buffer capacity (a power of two).
func (r *RingBuffer[T]) Cap() int {
	return len(r.cells)
}
