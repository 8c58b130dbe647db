package allocator

import (
	"unsafe"

	"github.com/kestrelframe/framealloc/internal/runtime/concurrency"
)

// ScratchPool is a named, cross-frame bump pool: it behaves like a
// FrameArena but lives longer, reset explicitly by name rather than
// implicitly at every frame boundary. Useful for subsystem-scoped scratch
// data that needs to survive more than one frame but is still bulk-freed.
type ScratchPool struct {
	name      string
	arena     *FrameArena
	debugMode bool
}

// NewScratchPool creates a named scratch pool with the given capacity.
func NewScratchPool(name string, capacity uintptr, debugMode bool) *ScratchPool {
	return &ScratchPool{name: name, arena: NewFrameArena(capacity, debugMode), debugMode: debugMode}
}

// Name returns the pool's name.
func (p *ScratchPool) Name() string { return p.name }

// AllocLayout bump-allocates size bytes aligned to align from the pool,
// returning nil if the pool's capacity is exhausted.
func (p *ScratchPool) AllocLayout(size, align uintptr) unsafe.Pointer {
	return p.arena.AllocLayout(size, align)
}

// AllocSlice bump-allocates room for count elements of elemSize bytes
// aligned to align.
func (p *ScratchPool) AllocSlice(elemSize, align uintptr, count int) unsafe.Pointer {
	return p.arena.AllocSlice(elemSize, align, count)
}

// Reset invalidates every allocation made from the pool since its
// creation or last reset.
func (p *ScratchPool) Reset() { p.arena.Reset() }

// Allocated returns the bytes currently allocated from the pool.
func (p *ScratchPool) Allocated() uintptr { return p.arena.Allocated() }

// Remaining returns the bytes left before the pool is exhausted.
func (p *ScratchPool) Remaining() uintptr { return p.arena.Remaining() }

// Capacity returns the pool's total capacity.
func (p *ScratchPool) Capacity() uintptr { return p.arena.Capacity() }

// scratchRegistryBuckets sizes the registry's lock-free map; the named-pool
// set is typically small (tens of entries) and static after warm-up, so
// this only needs to be large enough to keep bucket chains short.
const scratchRegistryBuckets = 256

// ScratchRegistry is a process-wide collection of named scratch pools,
// created on first use and shared across every worker. Lookups (Get,
// WithPool) are the hot path — every worker promoting data into a named
// pool goes through one — so the registry is backed by a lock-free map
// instead of a mutex-guarded one.
type ScratchRegistry struct {
	pools           *concurrency.LockFreeMap[string, *ScratchPool]
	defaultCapacity uintptr
	debugMode       bool
}

// NewScratchRegistry creates an empty registry with the given default
// capacity for pools created via GetOrCreate.
func NewScratchRegistry(defaultCapacity uintptr, debugMode bool) *ScratchRegistry {
	return &ScratchRegistry{
		pools:           concurrency.NewStringLockFreeMap[*ScratchPool](scratchRegistryBuckets),
		defaultCapacity: defaultCapacity,
		debugMode:       debugMode,
	}
}

// GetOrCreate returns the named pool, creating it with the registry's
// default capacity if it does not already exist. Under the lock-free map's
// optimistic LoadOrStore, two workers racing to create the same name for
// the first time may each construct a pool and each see their own pool
// back from LoadOrStore even though only one of them actually won the
// underlying Store; the re-Load below resolves every caller to whichever
// pool the map actually settled on, so the loser's pool is simply never
// referenced again and is reclaimed by the garbage collector rather than
// silently used by one racer while absent from the registry.
func (r *ScratchRegistry) GetOrCreate(name string) *ScratchPool {
	if pool, ok := r.pools.Load(name); ok {
		return pool
	}

	r.pools.LoadOrStore(name, NewScratchPool(name, r.defaultCapacity, r.debugMode))

	pool, _ := r.pools.Load(name)

	return pool
}

// Get returns the named pool and ok=true if it already exists.
func (r *ScratchRegistry) Get(name string) (*ScratchPool, bool) {
	return r.pools.Load(name)
}

// Reset resets the named pool, if it exists.
func (r *ScratchRegistry) Reset(name string) {
	if pool, ok := r.pools.Load(name); ok {
		pool.Reset()
	}
}

// ResetAll resets every pool currently in the registry.
func (r *ScratchRegistry) ResetAll() {
	var pools []*ScratchPool

	r.pools.Range(func(_ string, p *ScratchPool) bool {
		pools = append(pools, p)
		return true
	})

	for _, p := range pools {
		p.Reset()
	}
}

// Remove deletes the named pool from the registry, releasing it for GC.
func (r *ScratchRegistry) Remove(name string) {
	r.pools.Delete(name)
}

// ScratchPoolStats reports one pool's current usage.
type ScratchPoolStats struct {
	Name      string
	Allocated uintptr
	Capacity  uintptr
}

// Stats returns a snapshot of every pool currently in the registry.
func (r *ScratchRegistry) Stats() []ScratchPoolStats {
	var out []ScratchPoolStats

	r.pools.Range(func(_ string, p *ScratchPool) bool {
		out = append(out, ScratchPoolStats{Name: p.Name(), Allocated: p.Allocated(), Capacity: p.Capacity()})
		return true
	})

	return out
}

// WithPool runs fn with access to the named pool's AllocLayout-level API,
// returning ok=false if the pool does not exist.
func (r *ScratchRegistry) WithPool(name string, fn func(*ScratchPool)) bool {
	pool, ok := r.pools.Load(name)
	if !ok {
		return false
	}

	fn(pool)

	return true
}
