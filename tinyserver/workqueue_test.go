// File: tinyserver/workqueue_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tinyserver

import (
	"sync"
	"testing"
)

func TestWorkQueue_SendAndWait(t *testing.T) {
	q := newWorkQueue(4)
	io := NewTsIo()
	io.Operation = OpAccept

	if err := q.sendToIoQueue(io); err != nil {
		t.Fatalf("sendToIoQueue: %v", err)
	}

	got := q.waitOnIoQueue()
	if got != io {
		t.Fatalf("waitOnIoQueue returned %v, want %v", got, io)
	}
}

func TestWorkQueue_FullReturnsErrQueueFull(t *testing.T) {
	q := newWorkQueue(2)
	for i := 0; i < 2; i++ {
		if err := q.sendToIoQueue(NewTsIo()); err != nil {
			t.Fatalf("unexpected error filling queue: %v", err)
		}
	}
	if err := q.sendToIoQueue(NewTsIo()); err != ErrQueueFull {
		t.Fatalf("got %v, want ErrQueueFull", err)
	}
}

func TestWorkQueue_FIFOOrder(t *testing.T) {
	q := newWorkQueue(8)
	ios := make([]*TsIo, 5)
	for i := range ios {
		ios[i] = NewTsIo()
		ios[i].IOSize = i
		if err := q.sendToIoQueue(ios[i]); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i := range ios {
		got := q.waitOnIoQueue()
		if got.IOSize != i {
			t.Fatalf("dequeue order broken: got IOSize=%d, want %d", got.IOSize, i)
		}
	}
}

func TestWorkQueue_ConcurrentProducersConsumers(t *testing.T) {
	q := newWorkQueue(64)
	const n = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			io := NewTsIo()
			for q.sendToIoQueue(io) != nil {
			}
		}
	}()

	received := 0
	for received < n {
		if q.waitOnIoQueue() != nil {
			received++
		}
	}
	wg.Wait()
}

func TestDeferredCloseQueue_DrainCallsFinalizeForEach(t *testing.T) {
	var mu sync.Mutex
	var finalized []*TsIo
	d := newDeferredCloseQueue(func(io *TsIo) {
		mu.Lock()
		finalized = append(finalized, io)
		mu.Unlock()
	})

	a, b := NewTsIo(), NewTsIo()
	d.push(a)
	d.push(b)
	d.drain()

	if len(finalized) != 2 || finalized[0] != a || finalized[1] != b {
		t.Fatalf("drain did not finalize in FIFO order: %v", finalized)
	}
}

func TestDeferredCloseQueue_DrainRecoversFinalizePanic(t *testing.T) {
	calls := 0
	d := newDeferredCloseQueue(func(io *TsIo) {
		calls++
		panic("boom")
	})
	d.push(NewTsIo())
	d.push(NewTsIo())

	d.drain() // must not panic out of the test

	if calls != 2 {
		t.Fatalf("expected both queued items to be processed despite panics, got %d calls", calls)
	}
}
