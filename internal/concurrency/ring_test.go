// File: internal/concurrency/ring_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"sync"
	"testing"
)

func TestRingBuffer_BasicFIFO(t *testing.T) {
	r := NewRingBuffer[int](4)
	if !r.Enqueue(1) || !r.Enqueue(2) || !r.Enqueue(3) {
		t.Fatalf("expected enqueues to succeed within capacity")
	}
	if got := r.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	for _, want := range []int{1, 2, 3} {
		got, ok := r.Dequeue()
		if !ok || got != want {
			t.Fatalf("Dequeue() = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if _, ok := r.Dequeue(); ok {
		t.Fatalf("Dequeue() on empty ring should fail")
	}
}

func TestRingBuffer_RoundsUpToPowerOfTwo(t *testing.T) {
	r := NewRingBuffer[int](5)
	if got := r.Cap(); got != 8 {
		t.Fatalf("Cap() = %d, want 8", got)
	}
}

func TestRingBuffer_RejectsEnqueueWhenFull(t *testing.T) {
	r := NewRingBuffer[int](2)
	if !r.Enqueue(1) || !r.Enqueue(2) {
		t.Fatalf("expected first two enqueues to succeed")
	}
	if r.Enqueue(3) {
		t.Fatalf("expected enqueue on full ring to fail")
	}
}

// TestRingBuffer_ConcurrentMPMC exercises exactly-once delivery (spec.md
// property 1): N producers each enqueue M distinct values; N consumers
// drain until all items are seen. No value is delivered twice or lost.
func TestRingBuffer_ConcurrentMPMC(t *testing.T) {
	const producers = 4
	const perProducer = 2000
	const total = producers * perProducer

	r := NewRingBuffer[int](1024)
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := base*perProducer + i
				for !r.Enqueue(v) {
					// ring momentarily full; spin until a consumer drains
				}
			}
		}(p)
	}

	seen := make([]bool, total)
	var mu sync.Mutex
	count := 0
	var consumeWG sync.WaitGroup
	consumeWG.Add(4)
	for c := 0; c < 4; c++ {
		go func() {
			defer consumeWG.Done()
			for {
				v, ok := r.Dequeue()
				if !ok {
					mu.Lock()
					finished := count == total
					mu.Unlock()
					if finished {
						return
					}
					continue
				}
				mu.Lock()
				if seen[v] {
					t.Errorf("value %d delivered more than once", v)
				}
				seen[v] = true
				count++
				finished := count == total
				mu.Unlock()
				if finished {
					return
				}
			}
		}()
	}

	wg.Wait()
	consumeWG.Wait()

	for i, ok := range seen {
		if !ok {
			t.Fatalf("value %d was never delivered", i)
		}
	}
}
