package allocator

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// heapBlock records a live heap allocation's backing storage, and whether
// it was obtained via the OS mmap path instead of the Go heap.
type heapBlock struct {
	buf     []byte
	mmapped bool
}

// HeapWrapper is the cold-path system allocator: a mutex-guarded map from
// pointer to its backing storage (so the GC can reclaim Go-heap blocks once
// dropped, and so mmap blocks can be explicitly unmapped) plus atomic
// byte/count tracking for statistics. Allocations at or above
// largeAllocThreshold bypass the Go heap entirely via a direct mmap, the
// same size-driven escape to raw syscalls the teacher's zero-copy I/O
// helpers use when going through the standard library would cost more than
// it saves.
type HeapWrapper struct {
	mu        sync.Mutex
	live      map[unsafe.Pointer]heapBlock
	debugMode bool

	totalBytes atomic.Int64
	allocCount atomic.Uint64
	freeCount  atomic.Uint64
	mmapCount  atomic.Uint64
}

// NewHeapWrapper creates an empty heap wrapper.
func NewHeapWrapper(debugMode bool) *HeapWrapper {
	return &HeapWrapper{
		live:      make(map[unsafe.Pointer]heapBlock),
		debugMode: debugMode,
	}
}

// Alloc allocates size bytes aligned to align from the system allocator.
// align is accepted for layout-preservation bookkeeping by callers (e.g.
// the handle table); requests at or above largeAllocThreshold are mapped
// directly from the OS instead of the Go heap.
func (h *HeapWrapper) Alloc(size, align uintptr) unsafe.Pointer {
	_ = align

	var (
		ptr     unsafe.Pointer
		buf     []byte
		mmapped bool
	)

	if size >= largeAllocThreshold {
		if p, b, ok := mmapAlloc(size); ok {
			ptr, buf, mmapped = p, b, true
		}
	}

	if ptr == nil {
		ptr, buf = systemAlloc(size)
	}

	if ptr == nil && size != 0 {
		return nil
	}

	h.mu.Lock()
	h.live[ptr] = heapBlock{buf: buf, mmapped: mmapped}
	h.mu.Unlock()

	h.totalBytes.Add(int64(size))
	h.allocCount.Add(1)

	if mmapped {
		h.mmapCount.Add(1)
	}

	return ptr
}

// Dealloc releases a pointer previously returned by Alloc. Deallocating an
// unknown pointer is a silent no-op.
func (h *HeapWrapper) Dealloc(ptr unsafe.Pointer, size, align uintptr) {
	_ = align

	if ptr == nil {
		return
	}

	h.mu.Lock()
	block, ok := h.live[ptr]
	if ok {
		delete(h.live, ptr)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	if h.debugMode && !block.mmapped {
		poisonMemory(ptr, uintptr(len(block.buf)))
	}

	if block.mmapped {
		mmapFree(block.buf)
	}

	h.totalBytes.Add(-int64(size))
	h.freeCount.Add(1)
}

// MmapAllocationCount returns the number of Alloc calls satisfied via the
// direct mmap path rather than the Go heap.
func (h *HeapWrapper) MmapAllocationCount() uint64 { return h.mmapCount.Load() }

// AllocatedBytes returns the current live byte count.
func (h *HeapWrapper) AllocatedBytes() uintptr {
	return uintptr(h.totalBytes.Load())
}

// AllocationCount returns the total number of Alloc calls.
func (h *HeapWrapper) AllocationCount() uint64 { return h.allocCount.Load() }

// FreeCount returns the total number of successful Dealloc calls.
func (h *HeapWrapper) FreeCount() uint64 { return h.freeCount.Load() }
