package allocator

import "unsafe"

// FrameArena is a single-goroutine bump allocator. It is never touched by
// any goroutine other than the worker that owns it; no internal
// synchronization is needed on the hot path.
type FrameArena struct {
	buffer    []byte
	base      unsafe.Pointer
	capacity  uintptr
	head      uintptr
	allocs    uint64
	peak      uintptr
	debugMode bool
}

// NewFrameArena allocates a new frame arena of the given capacity.
func NewFrameArena(capacity uintptr, debugMode bool) *FrameArena {
	buf := make([]byte, capacity)

	var base unsafe.Pointer
	if capacity > 0 {
		base = unsafe.Pointer(&buf[0])
	}

	return &FrameArena{
		buffer:    buf,
		base:      base,
		capacity:  capacity,
		debugMode: debugMode,
	}
}

// Capacity returns the arena's total size in bytes.
func (a *FrameArena) Capacity() uintptr { return a.capacity }

// Head returns the current bump offset.
func (a *FrameArena) Head() uintptr { return a.head }

// Allocated returns the number of bytes currently in use.
func (a *FrameArena) Allocated() uintptr { return a.head }

// Remaining returns the number of bytes left before exhaustion.
func (a *FrameArena) Remaining() uintptr { return a.capacity - a.head }

// PeakUsage returns the highest head value this arena has ever reached;
// neither Reset nor ResetTo lowers it.
func (a *FrameArena) PeakUsage() uintptr { return a.peak }

// AllocLayout bump-allocates size bytes aligned to align. Returns nil if the
// arena lacks the remaining capacity. align must be a power of two; 0 is
// treated as 1.
func (a *FrameArena) AllocLayout(size, align uintptr) unsafe.Pointer {
	if align == 0 {
		align = 1
	}

	alignedHead := alignUp(a.head, align)
	if alignedHead+size > a.capacity {
		return nil
	}

	a.head = alignedHead + size
	a.allocs++

	if a.head > a.peak {
		a.peak = a.head
	}

	if size == 0 {
		// Zero-size allocations still return a distinct, aligned, non-nil
		// pointer that must never be dereferenced.
		return unsafe.Pointer(uintptr(a.base) + alignedHead)
	}

	return unsafe.Pointer(uintptr(a.base) + alignedHead)
}

// AllocSlice reserves room for count elements of elemSize bytes, aligned to
// align, and returns the start pointer.
func (a *FrameArena) AllocSlice(elemSize, align uintptr, count int) unsafe.Pointer {
	if count == 0 {
		return a.AllocLayout(0, align)
	}

	return a.AllocLayout(elemSize*uintptr(count), align)
}

// Checkpoint is a saved (head) position a caller can roll back to.
type Checkpoint struct {
	head uintptr
}

// Save captures the current head as a checkpoint.
func (a *FrameArena) Save() Checkpoint {
	return Checkpoint{head: a.head}
}

// ResetTo rolls the arena back to a previously saved checkpoint. Rolling
// forward (to a head greater than the current one) is rejected and the
// call is a no-op.
func (a *FrameArena) ResetTo(cp Checkpoint) {
	if cp.head > a.head {
		return
	}

	if a.debugMode && a.head > cp.head {
		poisonMemory(unsafe.Pointer(uintptr(a.base)+cp.head), a.head-cp.head)
	}

	a.head = cp.head
}

// Reset returns the arena to an empty state, invalidating every allocation
// made since the last Reset or ResetTo. In debug mode the reclaimed region
// is poisoned first.
func (a *FrameArena) Reset() {
	if a.debugMode && a.head > 0 {
		poisonMemory(a.base, a.head)
	}

	a.head = 0
	a.allocs = 0
}

// Contains reports whether ptr falls within this arena's backing buffer.
func (a *FrameArena) Contains(ptr unsafe.Pointer) bool {
	if a.capacity == 0 || ptr == nil {
		return false
	}

	p := uintptr(ptr)
	base := uintptr(a.base)

	return p >= base && p < base+a.capacity
}
