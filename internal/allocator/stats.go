package allocator

import "fmt"

// AllocStats is an aggregated, point-in-time snapshot of allocator
// activity across every worker.
type AllocStats struct {
	TotalAllocated    uintptr
	PeakAllocated     uintptr
	AllocationCount   uint64
	DeallocationCount uint64

	FrameAllocated uintptr
	PoolAllocated  uintptr
	HeapAllocated  uintptr

	SlabRefillCount    uint64
	DeferredFreeCount  uint64
}

// ActiveAllocations returns the number of allocations not yet matched by
// a deallocation.
func (s AllocStats) ActiveAllocations() uint64 {
	if s.DeallocationCount > s.AllocationCount {
		return 0
	}

	return s.AllocationCount - s.DeallocationCount
}

// FragmentationRatio estimates fragmentation as the fraction of allocated
// bytes living outside frame arenas (pool + heap), which are harder to
// reclaim in bulk than a frame reset.
func (s AllocStats) FragmentationRatio() float64 {
	if s.TotalAllocated == 0 {
		return 0
	}

	nonFrame := s.PoolAllocated + s.HeapAllocated

	return float64(nonFrame) / float64(s.TotalAllocated)
}

// String renders the stats in the same layout as the rest of this
// package's diagnostic output.
func (s AllocStats) String() string {
	return fmt.Sprintf(
		"Allocation Statistics:\n"+
			"  Total allocated: %d bytes\n"+
			"  Peak allocated:  %d bytes\n"+
			"  Allocations:     %d\n"+
			"  Deallocations:   %d\n"+
			"  Active:          %d\n"+
			"  Frame arena:     %d bytes\n"+
			"  Pool:            %d bytes\n"+
			"  Heap:            %d bytes\n",
		s.TotalAllocated, s.PeakAllocated, s.AllocationCount, s.DeallocationCount,
		s.ActiveAllocations(), s.FrameAllocated, s.PoolAllocated, s.HeapAllocated,
	)
}

// workerStats is the per-worker counters rolled up into the global
// AllocStats on demand.
type workerStats struct {
	allocCount       uint64
	deallocCount     uint64
	bytesAllocated   uintptr
	bytesDeallocated uintptr
}

func (s *workerStats) recordAlloc(size uintptr) {
	s.allocCount++
	s.bytesAllocated += size
}

func (s *workerStats) recordDealloc(size uintptr) {
	s.deallocCount++
	s.bytesDeallocated += size
}
