package allocator

import "unsafe"

// FrameBox holds a value allocated from a worker's frame arena. It carries
// no Close method: frame memory is bulk-freed when the owning worker's
// frame ends, mirroring the no-op Drop the source material leaves on its
// equivalent type for the same reason.
type FrameBox[T any] struct {
	ptr *T
}

// FrameAlloc reserves room for one uninitialized T in w's frame arena and
// returns a pointer to it, without copying any value in. Returns nil if
// the frame arena is exhausted. Use FrameBoxValue instead when the caller
// already has a value to store.
func FrameAlloc[T any](w *Worker) *T {
	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	ptr := w.FrameAllocLayout(size, align)
	if ptr == nil {
		return nil
	}

	return (*T)(ptr)
}

// FrameBoxValue copies value into a fresh frame allocation and returns a
// box wrapping it. A box whose Get returns nil is returned if the frame
// arena is exhausted.
func FrameBoxValue[T any](w *Worker, value T) *FrameBox[T] {
	ptr := FrameAlloc[T](w)
	if ptr == nil {
		return &FrameBox[T]{}
	}

	*ptr = value

	return &FrameBox[T]{ptr: ptr}
}

// Get returns the wrapped value's pointer, or nil if the allocation failed.
func (b *FrameBox[T]) Get() *T { return b.ptr }

// IsNil reports whether the box wraps no allocation.
func (b *FrameBox[T]) IsNil() bool { return b.ptr == nil }

// FrameSlice holds a fixed-length slice view into a worker's frame arena.
type FrameSlice[T any] struct {
	data []T
}

// FrameAllocSlice reserves room for count zero-valued Ts in w's frame
// arena and returns a bounds-checked Go slice view over them directly,
// without the FrameSlice wrapper's extra indirection. Use FrameSliceOf
// instead when the wrapper type is wanted, and FrameAllocBatch instead
// when count is large and the per-element slice bookkeeping is unwanted.
func FrameAllocSlice[T any](w *Worker, count int) []T {
	if count == 0 {
		return []T{}
	}

	var zero T
	elemSize := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	ptr := w.FrameAllocSlice(elemSize, align, count)
	if ptr == nil {
		return nil
	}

	return unsafe.Slice((*T)(ptr), count)
}

// FrameAllocBatch reserves room for count contiguous, uninitialized Ts in
// w's frame arena and returns a pointer to the first element. Callers
// index into it with pointer arithmetic (unsafe.Add / indexing through
// unsafe.Slice) instead of going through a bounds-checked slice header,
// the fast path for bulk-initializing many elements at once. Returns nil
// if count is non-positive or the frame arena is exhausted.
func FrameAllocBatch[T any](w *Worker, count int) *T {
	if count <= 0 {
		return nil
	}

	var zero T
	elemSize := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	ptr := w.FrameAllocSlice(elemSize, align, count)
	if ptr == nil {
		return nil
	}

	return (*T)(ptr)
}

// FrameSliceOf reserves room for length zero-valued Ts in w's frame arena
// and returns a FrameSlice wrapper over them.
func FrameSliceOf[T any](w *Worker, length int) *FrameSlice[T] {
	data := FrameAllocSlice[T](w, length)
	if data == nil {
		return &FrameSlice[T]{}
	}

	return &FrameSlice[T]{data: data}
}

// Len returns the slice's length.
func (s *FrameSlice[T]) Len() int { return len(s.data) }

// IsEmpty reports whether the slice has zero length.
func (s *FrameSlice[T]) IsEmpty() bool { return len(s.data) == 0 }

// Slice returns the underlying slice, valid only until the owning frame
// ends.
func (s *FrameSlice[T]) Slice() []T { return s.data }

// PoolBox holds a value allocated from a worker's local slab pools. Close
// must be called exactly once, typically via defer immediately after
// allocation, to return the memory to the pool.
type PoolBox[T any] struct {
	ptr    *T
	worker *Worker
	size   uintptr
	closed bool
}

// PoolAlloc reserves room for one uninitialized T from w's local slab
// pools and returns a pointer to it. Pair with PoolFree, or use
// PoolBoxValue instead for a value-initializing, Close-freed wrapper.
func PoolAlloc[T any](w *Worker) *T {
	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	ptr := w.PoolAllocLayout(size, align)
	if ptr == nil {
		return nil
	}

	return (*T)(ptr)
}

// PoolBoxValue copies value into a fresh pool allocation owned by w and
// returns a box wrapping it, to be released via Close.
func PoolBoxValue[T any](w *Worker, value T) *PoolBox[T] {
	var zero T
	size := unsafe.Sizeof(zero)

	ptr := PoolAlloc[T](w)
	if ptr == nil {
		return &PoolBox[T]{}
	}

	*ptr = value

	return &PoolBox[T]{ptr: ptr, worker: w, size: size}
}

// PoolFree returns the memory pointed to by ptr (previously returned by
// PoolAlloc) to w's local slab pools. A nil ptr is a no-op.
func PoolFree[T any](w *Worker, ptr *T) {
	if ptr == nil {
		return
	}

	var zero T
	size := unsafe.Sizeof(zero)

	w.PoolFree(unsafe.Pointer(ptr), size)
}

// Get returns the wrapped value's pointer, or nil if the allocation failed.
func (b *PoolBox[T]) Get() *T { return b.ptr }

// IsNil reports whether the box wraps no allocation.
func (b *PoolBox[T]) IsNil() bool { return b.ptr == nil }

// Close returns the wrapped memory to the owning worker's pool. Safe to
// call multiple times or on a zero-value box.
func (b *PoolBox[T]) Close() {
	if b.closed || b.ptr == nil {
		return
	}

	b.worker.PoolFree(unsafe.Pointer(b.ptr), b.size)
	b.closed = true
}

// HeapBox holds a value allocated directly from the system heap via a
// Facade, independent of any worker. Close must be called exactly once.
type HeapBox[T any] struct {
	ptr    *T
	facade *Facade
	size   uintptr
	align  uintptr
	closed bool
}

// HeapAlloc reserves room for one uninitialized T directly from the system
// heap and returns a pointer to it. Pair with HeapFree, or use
// HeapBoxValue instead for a value-initializing, Close-freed wrapper.
func HeapAlloc[T any](f *Facade) *T {
	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	ptr := f.HeapAllocLayout(size, align)
	if ptr == nil {
		return nil
	}

	return (*T)(ptr)
}

// HeapBoxValue copies value into a fresh heap allocation owned by f and
// returns a box wrapping it, to be released via Close.
func HeapBoxValue[T any](f *Facade, value T) *HeapBox[T] {
	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	ptr := HeapAlloc[T](f)
	if ptr == nil {
		return &HeapBox[T]{}
	}

	*ptr = value

	return &HeapBox[T]{ptr: ptr, facade: f, size: size, align: align}
}

// HeapFree returns the memory pointed to by ptr (previously returned by
// HeapAlloc) to the system heap. A nil ptr is a no-op.
func HeapFree[T any](f *Facade, ptr *T) {
	if ptr == nil {
		return
	}

	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	f.HeapFreeLayout(unsafe.Pointer(ptr), size, align)
}

// Get returns the wrapped value's pointer, or nil if the allocation failed.
func (b *HeapBox[T]) Get() *T { return b.ptr }

// IsNil reports whether the box wraps no allocation.
func (b *HeapBox[T]) IsNil() bool { return b.ptr == nil }

// Close frees the wrapped memory back to the system heap. Safe to call
// multiple times or on a zero-value box.
func (b *HeapBox[T]) Close() {
	if b.closed || b.ptr == nil {
		return
	}

	b.facade.HeapFreeLayout(unsafe.Pointer(b.ptr), b.size, b.align)
	b.closed = true
}
