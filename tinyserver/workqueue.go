// File: tinyserver/workqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The work queue and deferred-close queue (spec component C7, spec.md
// §4.5). The MPMC ring pairs with a counting semaphore whose count is
// the authoritative signal — the ring need only be MPMC-safe, not
// blocking, exactly as spec.md specifies.
package tinyserver

import (
	"fmt"
	"os"

	"github.com/eapache/queue"
	"github.com/robertofig/tinyserver-go/internal/concurrency"
)

// workQueue hands completed *TsIo from backends to worker goroutines.
type workQueue struct {
	ring *concurrency.RingBuffer[*TsIo]
	sem  *concurrency.Semaphore
}

func newWorkQueue(capacity int) *workQueue {
	ring := concurrency.NewRingBuffer[*TsIo](capacity)
	return &workQueue{
		ring: ring,
		// Sized to the ring's rounded-up capacity so Release never blocks
		// after a successful Enqueue.
		sem: concurrency.NewSemaphore(ring.Cap()),
	}
}

// sendToIoQueue pushes io directly onto the work ring and signals the
// semaphore, with no kernel involvement (spec.md §4.2's
// send_to_io_queue). Returns ErrQueueFull if the ring is at capacity —
// the source's TODO "log and drop" is made an observable error instead.
func (q *workQueue) sendToIoQueue(io *TsIo) error {
	if !q.ring.Enqueue(io) {
		return ErrQueueFull
	}
	q.sem.Release()
	return nil
}

// waitOnIoQueue blocks on the semaphore, then pops the next completed
// ts_io (spec.md §4.5's pop: "blocks on the semaphore first, then
// performs the ring pop").
func (q *workQueue) waitOnIoQueue() *TsIo {
	q.sem.Acquire()
	io, ok := q.ring.Dequeue()
	if !ok {
		// The semaphore count and ring occupancy are kept in lockstep by
		// sendToIoQueue/waitOnIoQueue; reaching here would mean that
		// invariant broke.
		return nil
	}
	return io
}

// deferredCloseQueue holds sockets whose disconnect_socket call could
// not immediately reclaim the descriptor: on Windows a socket disconnected
// through DisconnectEx is queued here so it is eventually closed, and Linux defers
// EPOLL_CTL_DEL until the I/O event thread is not mid-dispatch on it
// (spec.md §4.4's "disconnect_socket may close it... or keep it for
// reuse"). Grounded on internal/concurrency/executor.go's Executor,
// repurposed as a plain FIFO since this path is not the hot completion
// path the MPMC ring must stay lock-free on.
type deferredCloseQueue struct {
	q        *queue.Queue
	finalize func(*TsIo)
}

func newDeferredCloseQueue(finalize func(*TsIo)) *deferredCloseQueue {
	return &deferredCloseQueue{q: queue.New(), finalize: finalize}
}

// push enqueues io for deferred terminate_conn once safe.
func (d *deferredCloseQueue) push(io *TsIo) {
	d.q.Add(io)
}

// drain runs finalize on every currently queued ts_io. Intended to be
// called periodically by a background goroutine, not the hot path.
func (d *deferredCloseQueue) drain() {
	for d.q.Length() > 0 {
		v := d.q.Remove()
		io, ok := v.(*TsIo)
		if !ok || io == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(os.Stderr, "tinyserver: deferred close panic: %v\n", r)
				}
			}()
			d.finalize(io)
		}()
	}
}
