package allocator

import (
	"sync"
	"unsafe"
)

// danglingIndex is the sentinel slot index identifying a dangling Handle.
const danglingIndex uint32 = 0xFFFFFFFF

// Handle names an allocation through one level of indirection: (slot
// index, generation). It is a plain value, safe to copy, compare, and pass
// by value across goroutines. The type parameter is phantom — it exists so
// that a Handle[Foo] and a Handle[Bar] are distinct Go types even though
// their runtime representation is identical, mirroring the original
// generic handle type without requiring a cast at every call site.
type Handle[T any] struct {
	Index      uint32
	Generation uint32
}

// Dangling returns the sentinel handle that never resolves.
func Dangling[T any]() Handle[T] {
	return Handle[T]{Index: danglingIndex}
}

// IsDangling reports whether h carries the sentinel index.
func (h Handle[T]) IsDangling() bool { return h.Index == danglingIndex }

// RelocateFunc is invoked during Defragment for each relocated slot,
// receiving the old and new buffer addresses.
type RelocateFunc func(oldPtr, newPtr unsafe.Pointer)

type handleSlot struct {
	ptr          unsafe.Pointer
	buf          []byte
	size         uintptr
	align        uintptr
	generation   uint32
	inUse        bool
	relocatable  bool
	onRelocate   RelocateFunc
}

// HandleTable is the shared, mutex-guarded registry of relocatable
// allocations. Generation is bumped only when a slot is reused, never on
// Free itself, so a handle captured before a Free can never alias whatever
// later reuses its slot.
type HandleTable struct {
	mu        sync.Mutex
	slots     []handleSlot
	freeIdx   []uint32
	debugMode bool

	pinnedCount   int
	relocCount    uint64
}

// NewHandleTable creates an empty handle table.
func NewHandleTable(debugMode bool) *HandleTable {
	return &HandleTable{debugMode: debugMode}
}

// AllocRaw allocates size bytes aligned to align and returns the slot index
// and generation backing it, or ok=false on allocation failure.
func (t *HandleTable) AllocRaw(size, align uintptr) (index, generation uint32, ok bool) {
	ptr, buf := systemAlloc(size)
	if ptr == nil && size != 0 {
		return 0, 0, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.freeIdx); n > 0 {
		idx := t.freeIdx[n-1]
		t.freeIdx = t.freeIdx[:n-1]

		slot := &t.slots[idx]
		slot.ptr = ptr
		slot.buf = buf
		slot.size = size
		slot.align = align
		slot.generation++
		slot.inUse = true
		slot.relocatable = true
		slot.onRelocate = nil

		return idx, slot.generation, true
	}

	idx := uint32(len(t.slots))
	t.slots = append(t.slots, handleSlot{
		ptr:         ptr,
		buf:         buf,
		size:        size,
		align:       align,
		generation:  1,
		inUse:       true,
		relocatable: true,
	})

	return idx, 1, true
}

// Free invalidates the slot identified by (index, generation). A mismatched
// or already-free slot is silently ignored.
func (t *HandleTable) Free(index, generation uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(index) >= len(t.slots) {
		return
	}

	slot := &t.slots[index]
	if !slot.inUse || slot.generation != generation {
		return
	}

	if t.debugMode && slot.ptr != nil {
		poisonMemory(slot.ptr, slot.size)
	}

	if !slot.relocatable {
		t.pinnedCount--
	}

	slot.ptr = nil
	slot.buf = nil
	slot.inUse = false
	slot.onRelocate = nil
	t.freeIdx = append(t.freeIdx, index)
}

// Resolve returns the slot's pointer iff it is in use and its generation
// matches.
func (t *HandleTable) Resolve(index, generation uint32) (unsafe.Pointer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(index) >= len(t.slots) {
		return nil, false
	}

	slot := &t.slots[index]
	if !slot.inUse || slot.generation != generation {
		return nil, false
	}

	return slot.ptr, true
}

// IsValid reports whether (index, generation) currently resolves.
func (t *HandleTable) IsValid(index, generation uint32) bool {
	_, ok := t.Resolve(index, generation)
	return ok
}

// Pin marks a slot non-relocatable; Defragment will not move its buffer.
func (t *HandleTable) Pin(index, generation uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(index) >= len(t.slots) {
		return
	}

	slot := &t.slots[index]
	if !slot.inUse || slot.generation != generation || !slot.relocatable {
		return
	}

	slot.relocatable = false
	t.pinnedCount++
}

// Unpin clears a slot's pinned flag, making it eligible for defragmentation
// again.
func (t *HandleTable) Unpin(index, generation uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(index) >= len(t.slots) {
		return
	}

	slot := &t.slots[index]
	if !slot.inUse || slot.generation != generation || slot.relocatable {
		return
	}

	slot.relocatable = true
	t.pinnedCount--
}

// SetRelocateFunc installs a relocation callback on a slot, invoked once
// per Defragment pass that moves it.
func (t *HandleTable) SetRelocateFunc(index, generation uint32, fn RelocateFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(index) >= len(t.slots) {
		return
	}

	slot := &t.slots[index]
	if slot.inUse && slot.generation == generation {
		slot.onRelocate = fn
	}
}

// Defragment relocates every in-use, relocatable slot to a freshly
// allocated buffer of the slot's original size and alignment — never a
// hardcoded alignment — copies the bytes, invokes the slot's relocation
// callback, and frees the old buffer. Handles remain valid across this
// call because they name the slot, not the buffer. Returns the number of
// slots relocated.
func (t *HandleTable) Defragment() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	relocated := 0

	for i := range t.slots {
		slot := &t.slots[i]
		if !slot.inUse || !slot.relocatable {
			continue
		}

		newPtr, newBuf := systemAlloc(slot.size)
		if newPtr == nil && slot.size != 0 {
			continue
		}

		if slot.size > 0 {
			copyMemory(newPtr, slot.ptr, slot.size)
		}

		oldPtr := slot.ptr
		if slot.onRelocate != nil {
			slot.onRelocate(oldPtr, newPtr)
		}

		slot.ptr = newPtr
		slot.buf = newBuf
		relocated++
	}

	t.relocCount += uint64(relocated)

	return relocated
}

// PinnedCount returns the number of currently pinned slots.
func (t *HandleTable) PinnedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.pinnedCount
}

// RelocationCount returns the cumulative number of slots relocated across
// every Defragment call.
func (t *HandleTable) RelocationCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.relocCount
}

// PinGuard releases a pinned slot back to relocatable on Close. It mirrors
// the RAII pin guard from the source material as an explicit Close call,
// matching this module's Drop-to-Close translation.
type PinGuard[T any] struct {
	table  *HandleTable
	handle Handle[T]
	closed bool
}

// NewPinGuard pins h and returns a guard that unpins it on Close.
func NewPinGuard[T any](table *HandleTable, h Handle[T]) *PinGuard[T] {
	table.Pin(h.Index, h.Generation)

	return &PinGuard[T]{table: table, handle: h}
}

// Close unpins the guarded handle. Safe to call multiple times.
func (g *PinGuard[T]) Close() {
	if g.closed {
		return
	}

	g.table.Unpin(g.handle.Index, g.handle.Generation)
	g.closed = true
}
