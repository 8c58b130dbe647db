package allocator

import (
	"sync"
	"unsafe"

	"github.com/kestrelframe/framealloc/internal/runtime/concurrency"
)

// deferredFree is one entry in a worker's deferred-free queue: a cell freed
// by a goroutine other than the one that allocated it.
type deferredFree struct {
	ptr  unsafe.Pointer
	size uintptr
}

// DeferredFreeQueue is a bounded cross-thread free queue built directly on
// this module's Vyukov-style MPMCQueue, used here as an MPSC channel (every
// goroutine but the owning worker pushes, only the worker drains) and
// widened with a mutex-guarded overflow path so producers never block when
// the ring is momentarily full.
type DeferredFreeQueue struct {
	ring *concurrency.MPMCQueue[deferredFree]

	overflowMu sync.Mutex
	overflow   []deferredFree

	controller *DeferredController
}

// NewDeferredFreeQueue creates a queue with the given ring capacity
// (rounded up to a power of two) and processing controller.
func NewDeferredFreeQueue(capacity uint64, controller *DeferredController) *DeferredFreeQueue {
	return &DeferredFreeQueue{
		ring:       concurrency.NewMPMCQueue[deferredFree](capacity),
		controller: controller,
	}
}

// Push enqueues a cross-thread free. Called by any goroutine other than the
// queue's owner. Falls back to a mutex-guarded overflow slice if the ring
// is momentarily full rather than dropping the free.
func (q *DeferredFreeQueue) Push(ptr unsafe.Pointer, size uintptr) {
	v := deferredFree{ptr: ptr, size: size}

	if q.ring.Enqueue(v) {
		if q.controller != nil {
			q.controller.recordQueued(size)
		}

		return
	}

	q.pushOverflow(v)
}

func (q *DeferredFreeQueue) pushOverflow(v deferredFree) {
	q.overflowMu.Lock()
	q.overflow = append(q.overflow, v)
	q.overflowMu.Unlock()

	if q.controller != nil {
		q.controller.recordQueued(v.size)
	}
}

// Drain removes every pending entry and applies them to the owning
// worker's local pools. Must be called only by the queue's owning worker.
func (q *DeferredFreeQueue) Drain(pools *LocalPools) int {
	return q.drainN(pools, -1)
}

// DrainIncremental removes at most n pending entries, for amortized
// incremental processing.
func (q *DeferredFreeQueue) DrainIncremental(pools *LocalPools, n int) int {
	return q.drainN(pools, n)
}

func (q *DeferredFreeQueue) drainN(pools *LocalPools, limit int) int {
	var processed int
	var bytes uintptr

	for limit < 0 || processed < limit {
		var v deferredFree

		if !q.ring.Dequeue(&v) {
			break
		}

		pools.Free(v.ptr, v.size)
		processed++
		bytes += v.size
	}

	if q.overflowLen() > 0 {
		q.overflowMu.Lock()
		drained := q.overflow
		q.overflow = nil
		q.overflowMu.Unlock()

		for _, v := range drained {
			if limit >= 0 && processed >= limit {
				q.overflowMu.Lock()
				q.overflow = append(q.overflow, v)
				q.overflowMu.Unlock()

				continue
			}

			pools.Free(v.ptr, v.size)
			processed++
			bytes += v.size
		}
	}

	if q.controller != nil && processed > 0 {
		q.controller.recordProcessed(processed, bytes)
	}

	return processed
}

func (q *DeferredFreeQueue) overflowLen() int {
	q.overflowMu.Lock()
	n := len(q.overflow)
	q.overflowMu.Unlock()

	return n
}

// Len reports the approximate number of entries pending (ring plus
// overflow). Intended for diagnostics, not for correctness decisions.
func (q *DeferredFreeQueue) Len() int {
	return q.ring.Len() + q.overflowLen()
}
