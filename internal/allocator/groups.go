package allocator

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// GroupID names a named allocation group managed by a GroupAllocator.
type GroupID uint64

type groupAllocation struct {
	ptr   unsafe.Pointer
	buf   []byte
	size  uintptr
	align uintptr
}

type allocGroup struct {
	name        string
	allocations []groupAllocation
	totalBytes  uintptr
}

// GroupAllocator manages named collections of heap allocations that are
// freed together in one bulk call, for subsystems that want coarse-grained
// cleanup (e.g. "everything this level loaded") without tracking every
// pointer themselves.
type GroupAllocator struct {
	mu     sync.Mutex
	groups map[GroupID]*allocGroup
	nextID atomic.Uint64
}

// NewGroupAllocator creates an empty group allocator.
func NewGroupAllocator() *GroupAllocator {
	g := &GroupAllocator{groups: make(map[GroupID]*allocGroup)}
	g.nextID.Store(1)

	return g
}

// CreateGroup creates a new, empty group with the given name and returns
// its ID.
func (g *GroupAllocator) CreateGroup(name string) GroupID {
	id := GroupID(g.nextID.Add(1) - 1)

	g.mu.Lock()
	g.groups[id] = &allocGroup{name: name}
	g.mu.Unlock()

	return id
}

// AllocLayout allocates size bytes aligned to align within the named
// group, returning nil if the group does not exist.
func (g *GroupAllocator) AllocLayout(id GroupID, size, align uintptr) unsafe.Pointer {
	ptr, buf := systemAlloc(size)
	if ptr == nil && size != 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	group, ok := g.groups[id]
	if !ok {
		return nil
	}

	group.allocations = append(group.allocations, groupAllocation{ptr: ptr, buf: buf, size: size, align: align})
	group.totalBytes += size

	return ptr
}

// AllocSlice allocates room for count elements of elemSize bytes aligned
// to align within the named group.
func (g *GroupAllocator) AllocSlice(id GroupID, elemSize, align uintptr, count int) unsafe.Pointer {
	return g.AllocLayout(id, elemSize*uintptr(count), align)
}

// FreeGroup releases every allocation made in the named group and removes
// the group itself. Freeing an unknown ID is a no-op.
func (g *GroupAllocator) FreeGroup(id GroupID) {
	g.mu.Lock()
	_, ok := g.groups[id]
	if ok {
		delete(g.groups, id)
	}
	g.mu.Unlock()

	// Allocations are backed by Go slices kept only in group.allocations;
	// dropping the group entry is sufficient for the GC to reclaim them.
	_ = ok
}

// GroupSize returns the total bytes allocated in a group, or 0 if unknown.
func (g *GroupAllocator) GroupSize(id GroupID) uintptr {
	g.mu.Lock()
	defer g.mu.Unlock()

	if group, ok := g.groups[id]; ok {
		return group.totalBytes
	}

	return 0
}

// GroupCount returns the number of allocations in a group, or 0 if
// unknown.
func (g *GroupAllocator) GroupCount(id GroupID) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if group, ok := g.groups[id]; ok {
		return len(group.allocations)
	}

	return 0
}

// GroupName returns a group's name and ok=true if it exists.
func (g *GroupAllocator) GroupName(id GroupID) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	group, ok := g.groups[id]
	if !ok {
		return "", false
	}

	return group.name, true
}

// GroupExists reports whether id names a currently live group.
func (g *GroupAllocator) GroupExists(id GroupID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.groups[id]

	return ok
}

// GroupStats summarizes every live group in a GroupAllocator.
type GroupStats struct {
	TotalGroups      int
	TotalAllocations int
	TotalBytes       uintptr
}

// Stats returns an aggregate snapshot across every live group.
func (g *GroupAllocator) Stats() GroupStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	var st GroupStats
	for _, group := range g.groups {
		st.TotalGroups++
		st.TotalAllocations += len(group.allocations)
		st.TotalBytes += group.totalBytes
	}

	return st
}

// GroupHandle is a convenience wrapper binding a GroupAllocator to one
// GroupID, for callers that allocate repeatedly within a single group.
type GroupHandle struct {
	allocator *GroupAllocator
	id        GroupID
}

// NewGroupHandle wraps an existing group ID for repeated use.
func NewGroupHandle(allocator *GroupAllocator, id GroupID) GroupHandle {
	return GroupHandle{allocator: allocator, id: id}
}

// ID returns the wrapped group ID.
func (h GroupHandle) ID() GroupID { return h.id }

// AllocLayout allocates within the wrapped group.
func (h GroupHandle) AllocLayout(size, align uintptr) unsafe.Pointer {
	return h.allocator.AllocLayout(h.id, size, align)
}

// Size returns the total bytes allocated in the wrapped group.
func (h GroupHandle) Size() uintptr { return h.allocator.GroupSize(h.id) }

// Count returns the number of allocations in the wrapped group.
func (h GroupHandle) Count() int { return h.allocator.GroupCount(h.id) }

// FreeAll frees every allocation in the wrapped group.
func (h GroupHandle) FreeAll() { h.allocator.FreeGroup(h.id) }

// GroupAlloc allocates a single zero-valued T within the named group and
// returns a typed pointer to it, or nil if the group is unknown or the
// allocation failed. Group allocations are bulk-freed with FreeGroup and
// are never individually relocated, so a plain pointer is returned rather
// than a Handle.
func GroupAlloc[T any](g *GroupAllocator, id GroupID) *T {
	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	ptr := g.AllocLayout(id, size, align)
	if ptr == nil {
		return nil
	}

	typed := (*T)(ptr)
	*typed = zero

	return typed
}

// GroupAllocSlice allocates count zero-valued Ts within the named group
// and returns the backing slice, or nil on failure.
func GroupAllocSlice[T any](g *GroupAllocator, id GroupID, count int) []T {
	var zero T
	elemSize := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	ptr := g.AllocSlice(id, elemSize, align, count)
	if ptr == nil {
		return nil
	}

	return unsafe.Slice((*T)(ptr), count)
}
