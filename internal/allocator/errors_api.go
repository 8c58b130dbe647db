package allocator

import (
	"unsafe"

	allocerrors "github.com/kestrelframe/framealloc/internal/errors"
)

// ResolveHandle resolves h against the facade's handle table, returning a
// KindInvalidHandle error instead of ok=false when the handle no longer
// resolves. It is a free function rather than a *Facade method because Go
// does not allow a generic type parameter on a method.
func ResolveHandle[T any](f *Facade, h Handle[T]) (unsafe.Pointer, error) {
	ptr, ok := f.handles.Resolve(h.Index, h.Generation)
	if !ok {
		return nil, allocerrors.InvalidHandle(h.Index, h.Generation)
	}

	return ptr, nil
}

// HeapAllocLayoutChecked behaves like HeapAllocLayout but reports a
// KindAllocationFailed error instead of a nil pointer when the system
// allocator cannot satisfy the request.
func (f *Facade) HeapAllocLayoutChecked(size, align uintptr) (unsafe.Pointer, error) {
	ptr := f.HeapAllocLayout(size, align)
	if ptr == nil && size != 0 {
		return nil, allocerrors.AllocationFailed(size, align)
	}

	return ptr, nil
}

// ReserveStreaming reserves size bytes from the shared streaming allocator
// at the given priority, returning a KindStreamingBudgetFull error naming
// the attempted size and configured budget if the reservation could not be
// satisfied even after evicting lower-priority entries.
func (f *Facade) ReserveStreaming(size uintptr, priority StreamPriority) (StreamID, error) {
	id, ok := f.streaming.Reserve(size, priority)
	if !ok {
		return 0, allocerrors.StreamingBudgetFull(size, f.streaming.Budget())
	}

	return id, nil
}

// ScratchPool returns the named scratch pool, or a KindScratchPoolNotFound
// error if it has never been created via the registry's GetOrCreate.
func (f *Facade) ScratchPool(name string) (*ScratchPool, error) {
	pool, ok := f.scratch.Get(name)
	if !ok {
		return nil, allocerrors.ScratchPoolNotFound(name)
	}

	return pool, nil
}

// ScratchAllocLayout allocates size bytes aligned to align from the named
// scratch pool, returning a KindScratchPoolFull error that wraps the pool's
// own ArenaExhausted cause when the pool lacks room.
func (f *Facade) ScratchAllocLayout(name string, size, align uintptr) (unsafe.Pointer, error) {
	pool, err := f.ScratchPool(name)
	if err != nil {
		return nil, err
	}

	ptr := pool.AllocLayout(size, align)
	if ptr == nil {
		return nil, allocerrors.ScratchPoolFull(name, allocerrors.ArenaExhausted(size, pool.Remaining()))
	}

	return ptr, nil
}
