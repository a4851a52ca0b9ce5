// File: internal/concurrency/semaphore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Counting semaphore built on a buffered channel, the idiomatic Go stand-in
// for the platform counting_semaphore spec.md's work queue (C7) pairs with
// its MPMC ring. Grounded on the teacher's own channel-as-rendezvous style
// in internal/transport/transport_windows.go (recvDone/sendDone) and
// internal/concurrency/executor.go (stop chan struct{}).

package concurrency

// Semaphore is a counting semaphore. Its count is the authoritative
// signal for the paired RingBuffer: callers must Release exactly once
// per successful Enqueue, and Acquire before every Dequeue.
type Semaphore struct {
	tokens chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity (max count).
func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{tokens: make(chan struct{}, capacity)}
}

// Release increments the count by one, waking at most one blocked Acquire.
func (s *Semaphore) Release() {
	s.tokens <- struct{}{}
}

// Acquire blocks until the count is positive, then decrements it by one.
func (s *Semaphore) Acquire() {
	<-s.tokens
}

// TryAcquire decrements the count by one without blocking if it is
// already positive; returns false if it would block.
func (s *Semaphore) TryAcquire() bool {
	select {
	case <-s.tokens:
		return true
	default:
		return false
	}
}
