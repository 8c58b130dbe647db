package allocator

import (
	"sync/atomic"
	"unsafe"

	allocerrors "github.com/kestrelframe/framealloc/internal/errors"
)

// workerIDCounter assigns each Worker a unique identifier at Attach time.
// Go gives goroutines no stable, queryable identity the way Rust's
// std::thread::current().id() does, so every place the source material
// keyed per-thread state by ThreadId, this module keys it by this
// explicitly assigned WorkerID carried on the *Worker handle instead.
var workerIDCounter atomic.Uint64

// Worker is the per-goroutine allocator state: a frame arena, local slab
// pools, a deferred-free queue for frees issued by other goroutines, a
// tag stack, a retention registry, and bookkeeping counters. It replaces
// the source material's thread-local storage with an explicit value the
// caller attaches once per goroutine and detaches when done — Go has no
// goroutine-exit hook to run cleanup automatically, so callers must call
// Detach themselves (typically via defer immediately after Attach).
type Worker struct {
	id WorkerID

	facade *Facade

	frame    *FrameArena
	pools    *LocalPools
	deferred *DeferredFreeQueue
	stats    workerStats
	tags     *tagStack
	retained *RetentionRegistry

	frameActive bool
}

func newWorker(id WorkerID, facade *Facade) *Worker {
	return &Worker{
		id:       id,
		facade:   facade,
		frame:    NewFrameArena(facade.config.FrameArenaSize, facade.config.DebugMode),
		pools:    NewLocalPools(facade.slabs),
		deferred: NewDeferredFreeQueue(1024, facade.deferredController),
		tags:     newTagStack(),
		retained: NewRetentionRegistry(),
	}
}

// ID returns the worker's assigned identifier.
func (w *Worker) ID() WorkerID { return w.id }

// BeginFrame drains any deferred cross-worker frees queued since the
// last frame, then marks a frame active.
func (w *Worker) BeginFrame() {
	if w.facade.deferredController.ShouldProcessAtFrameBegin() {
		w.deferred.Drain(w.pools)
	}

	w.facade.threadBudgets.ResetFrame(w.id)
	w.frameActive = true
}

// EndFrame resets the frame arena, discarding every allocation made this
// frame, including any registered with a retention policy — no promotion
// is attempted. Use EndFrameWithPromotions instead when retained
// allocations should survive the reset via the facade's promotion
// processor.
func (w *Worker) EndFrame() {
	w.endFrame(false)
}

// EndFrameWithPromotions resets the frame arena the same way EndFrame
// does, but first promotes every allocation registered with a non-Discard
// retention policy via the facade's promotion processor, returning a
// summary of what was discarded versus promoted.
func (w *Worker) EndFrameWithPromotions() FrameSummary {
	return w.endFrame(true)
}

func (w *Worker) endFrame(promote bool) FrameSummary {
	if w.facade.deferredController.ShouldProcessAtFrameEnd() {
		w.deferred.Drain(w.pools)
	}

	retained := w.retained.TakeAll()

	var summary FrameSummary
	var promotedCount int

	if promote && len(retained) > 0 {
		result := w.facade.promotion.Process(retained)
		summary = result.Summary
		promotedCount = len(retained)
	}

	summary.DiscardedBytes = uintptr(w.frame.Allocated())
	if promote {
		for _, r := range retained {
			summary.DiscardedBytes -= r.meta.Size
		}
	}
	summary.DiscardedCount = int(w.frame.allocs) - promotedCount

	w.frame.Reset()
	w.frameActive = false

	if w.facade.behavior != nil {
		w.facade.behavior.EndFrame()
	}

	return summary
}

// IsFrameActive reports whether BeginFrame has been called without a
// matching EndFrame or EndFrameWithPromotions.
func (w *Worker) IsFrameActive() bool { return w.frameActive }

// FrameHead returns the frame arena's current bump offset, for use with
// ResetFrameTo.
func (w *Worker) FrameHead() uintptr { return w.frame.Head() }

// ResetFrameTo rewinds the frame arena to a previously observed head
// position, invalidating everything allocated since.
func (w *Worker) ResetFrameTo(head uintptr) {
	w.frame.ResetTo(Checkpoint{head: head})
}

// FrameScope rewinds a worker's frame arena to the head position observed
// when the scope was opened, on Close or a deferred call. Unlike
// EndFrame/EndFrameWithPromotions it never touches the retention registry
// or deferred queue — it is a nested rewind point within a single frame,
// not a frame boundary.
type FrameScope struct {
	worker *Worker
	head   uintptr
	closed bool
}

// NewFrameScope saves w's current frame head and returns a scope that
// rewinds the frame arena to it on Close, typically via defer immediately
// after construction.
func NewFrameScope(w *Worker) *FrameScope {
	return &FrameScope{worker: w, head: w.FrameHead()}
}

// Close rewinds the frame arena to the head saved at scope creation. Safe
// to call multiple times.
func (s *FrameScope) Close() {
	if s.closed {
		return
	}

	s.worker.ResetFrameTo(s.head)
	s.closed = true
}

// FrameAllocLayout allocates size bytes aligned to align from the frame
// arena.
func (w *Worker) FrameAllocLayout(size, align uintptr) unsafe.Pointer {
	ptr := w.frame.AllocLayout(size, align)
	if ptr != nil {
		w.stats.recordAlloc(size)
		w.facade.threadBudgets.RecordFrameAlloc(w.id, size)

		if w.facade.behavior != nil {
			w.facade.behavior.RecordAlloc(KindFrame, w.tags.CurrentName())
		}
	}

	return ptr
}

// FrameAllocSlice allocates room for count elements of elemSize bytes
// aligned to align from the frame arena.
func (w *Worker) FrameAllocSlice(elemSize, align uintptr, count int) unsafe.Pointer {
	ptr := w.frame.AllocSlice(elemSize, align, count)
	if ptr != nil {
		size := elemSize * uintptr(count)
		w.stats.recordAlloc(size)
		w.facade.threadBudgets.RecordFrameAlloc(w.id, size)

		if w.facade.behavior != nil {
			w.facade.behavior.RecordAlloc(KindFrame, w.tags.CurrentName())
		}
	}

	return ptr
}

// RetainFrameAlloc registers ptr (previously returned by a frame
// allocation on this worker) under policy, so that EndFrameWithPromotions
// promotes it instead of discarding it.
func (w *Worker) RetainFrameAlloc(ptr unsafe.Pointer, size uintptr, policy RetentionPolicy, tag, typeName string) int {
	return w.retained.Register(ptr, RetainedMeta{Policy: policy, Size: size, Tag: tag, TypeName: typeName})
}

// PoolAllocLayout allocates size bytes from the local slab pools. It
// returns nil if size exceeds every configured size class or the shared
// registry cannot supply a cell; it does not fall back to the heap.
func (w *Worker) PoolAllocLayout(size, align uintptr) unsafe.Pointer {
	ptr := w.pools.Alloc(size)
	if ptr == nil {
		return nil
	}

	w.stats.recordAlloc(size)
	w.facade.threadBudgets.RecordPoolAlloc(w.id, size)

	if w.facade.behavior != nil {
		w.facade.behavior.RecordAlloc(KindPool, w.tags.CurrentName())
	}

	return ptr
}

// PoolFree releases size bytes back to the local slab pools. Cross-worker
// frees must go through QueueDeferredFree instead of calling this
// directly.
func (w *Worker) PoolFree(ptr unsafe.Pointer, size uintptr) {
	w.pools.Free(ptr, size)
	w.stats.recordDealloc(size)
	w.facade.threadBudgets.RecordPoolFree(w.id, size)
}

// QueueDeferredFree enqueues a free issued by a goroutine other than this
// worker's owner, to be applied the next time this worker drains its
// deferred queue.
func (w *Worker) QueueDeferredFree(ptr unsafe.Pointer, size uintptr) {
	w.deferred.Push(ptr, size)
}

// QueueDeferredFreeChecked behaves like QueueDeferredFree, but honors a
// Fail QueueFullPolicy by returning a KindQueueFull error instead of
// letting the queue's overflow path absorb the entry.
func (w *Worker) QueueDeferredFreeChecked(ptr unsafe.Pointer, size uintptr) error {
	cfg := w.facade.deferredController.Config()
	if cfg.FullPolicy == Fail && cfg.Capacity > 0 && w.deferred.Len() >= cfg.Capacity {
		return allocerrors.QueueFull(uint64(cfg.Capacity))
	}

	w.deferred.Push(ptr, size)

	return nil
}

// PushTag makes tag the active tag for subsequent frame/pool allocations
// on this worker.
func (w *Worker) PushTag(tag AllocationTag) { w.tags.Push(tag) }

// PopTag removes the innermost active tag.
func (w *Worker) PopTag() { w.tags.Pop() }

// WithTag pushes tag, runs fn, then pops it.
func (w *Worker) WithTag(tag AllocationTag, fn func()) {
	w.tags.Push(tag)
	defer w.tags.Pop()

	fn()
}

// Stats returns this worker's local allocation counters.
func (w *Worker) Stats() workerStats { return w.stats }
