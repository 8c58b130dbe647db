package allocator

import (
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"
)

// StreamID names a reservation made against a StreamingAllocator.
type StreamID uint64

// Raw returns the underlying numeric value of the ID.
func (s StreamID) Raw() uint64 { return uint64(s) }

// StreamPriority ranks reservations for eviction under budget pressure.
// Lower values are evicted first.
type StreamPriority int

const (
	StreamLow StreamPriority = iota
	StreamNormal
	StreamHigh
	StreamCritical
)

// StreamState is the lifecycle stage of a streaming reservation.
type StreamState int

const (
	StreamReserved StreamState = iota
	StreamLoading
	StreamReady
	StreamEvicting
)

type streamAllocation struct {
	id           StreamID
	ptr          unsafe.Pointer
	buf          []byte
	reservedSize uintptr
	loadedBytes  uintptr
	state        StreamState
	priority     StreamPriority
	lastAccess   uint64
	tag          string
}

// EvictionFunc is invoked once per evicted reservation, after the
// allocator's internal lock has been released.
type EvictionFunc func(id StreamID)

// StreamingAllocator manages large, incrementally filled reservations
// against a fixed budget, evicting lower-priority, least-recently-used
// entries to make room for higher-priority ones.
type StreamingAllocator struct {
	mu    sync.Mutex
	byID  map[StreamID]*streamAllocation

	nextID        atomic.Uint64
	totalReserved atomic.Uint64
	totalLoaded   atomic.Uint64
	currentFrame  atomic.Uint64

	budget uintptr

	evictionMu sync.Mutex
	onEvict    EvictionFunc
}

// NewStreamingAllocator creates a streaming allocator with the given
// budget in bytes.
func NewStreamingAllocator(budget uintptr) *StreamingAllocator {
	s := &StreamingAllocator{
		byID:   make(map[StreamID]*streamAllocation),
		budget: budget,
	}
	s.nextID.Store(1)

	return s
}

// SetEvictionCallback installs fn to be invoked for every ID evicted by a
// subsequent Reserve call. Replaces any previously installed callback.
func (s *StreamingAllocator) SetEvictionCallback(fn EvictionFunc) {
	s.evictionMu.Lock()
	s.onEvict = fn
	s.evictionMu.Unlock()
}

// Reserve reserves size bytes at the given priority, returning the new
// ID, or ok=false if the budget could not be satisfied even after
// evicting every lower-priority, ready reservation.
func (s *StreamingAllocator) Reserve(size uintptr, priority StreamPriority) (StreamID, bool) {
	return s.ReserveTagged(size, priority, "")
}

// ReserveTagged is Reserve with an additional categorization tag.
func (s *StreamingAllocator) ReserveTagged(size uintptr, priority StreamPriority, tag string) (StreamID, bool) {
	current := s.totalReserved.Load()
	if s.budget != 0 && current+uint64(size) > uint64(s.budget) {
		needed := (current + uint64(size)) - uint64(s.budget)
		if !s.tryEvict(uintptr(needed), priority) {
			return 0, false
		}
	}

	ptr, buf := systemAlloc(size)
	if ptr == nil && size != 0 {
		return 0, false
	}

	id := StreamID(s.nextID.Add(1) - 1)
	frame := s.currentFrame.Load()

	s.mu.Lock()
	s.byID[id] = &streamAllocation{
		id:           id,
		ptr:          ptr,
		buf:          buf,
		reservedSize: size,
		state:        StreamReserved,
		priority:     priority,
		lastAccess:   frame,
		tag:          tag,
	}
	s.mu.Unlock()

	s.totalReserved.Add(uint64(size))

	return id, true
}

// BeginLoad transitions a reservation to Loading and returns its backing
// pointer for the caller to write into. Returns ok=false if id is unknown
// or the reservation is already Ready or Evicting.
func (s *StreamingAllocator) BeginLoad(id StreamID) (unsafe.Pointer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, false
	}

	switch a.state {
	case StreamReserved, StreamLoading:
		a.state = StreamLoading

		return a.ptr, true
	default:
		return nil, false
	}
}

// ReportProgress records how many bytes of a reservation have been filled
// so far, clamped to the reservation's reserved size.
func (s *StreamingAllocator) ReportProgress(id StreamID, bytesLoaded uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return
	}

	if bytesLoaded > a.reservedSize {
		bytesLoaded = a.reservedSize
	}

	old := a.loadedBytes
	a.loadedBytes = bytesLoaded

	if bytesLoaded >= old {
		s.totalLoaded.Add(uint64(bytesLoaded - old))
	} else {
		s.totalLoaded.Add(^uint64(old-bytesLoaded) + 1)
	}
}

// FinishLoad marks a reservation Ready and fully loaded.
func (s *StreamingAllocator) FinishLoad(id StreamID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return
	}

	if a.loadedBytes < a.reservedSize {
		s.totalLoaded.Add(uint64(a.reservedSize - a.loadedBytes))
	}

	a.loadedBytes = a.reservedSize
	a.state = StreamReady
	a.lastAccess = s.currentFrame.Load()
}

// Access returns a reservation's pointer for reading, updating its LRU
// timestamp. Returns ok=false unless the reservation is Ready.
func (s *StreamingAllocator) Access(id StreamID) (unsafe.Pointer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok || a.state != StreamReady {
		return nil, false
	}

	a.lastAccess = s.currentFrame.Load()

	return a.ptr, true
}

// Free releases a reservation immediately, regardless of state.
func (s *StreamingAllocator) Free(id StreamID) {
	s.mu.Lock()
	a, ok := s.byID[id]
	if ok {
		delete(s.byID, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	s.totalReserved.Add(^uint64(a.reservedSize) + 1)
	s.totalLoaded.Add(^uint64(a.loadedBytes) + 1)
}

// tryEvict attempts to free at least bytesNeeded bytes by evicting Ready
// reservations with priority strictly below minPriority, LRU-first within
// each priority band. Returns true if enough was freed.
func (s *StreamingAllocator) tryEvict(bytesNeeded uintptr, minPriority StreamPriority) bool {
	type candidate struct {
		id       StreamID
		priority StreamPriority
		lastUse  uint64
		size     uintptr
	}

	s.mu.Lock()

	candidates := make([]candidate, 0)
	for _, a := range s.byID {
		if a.priority < minPriority && a.state == StreamReady {
			candidates = append(candidates, candidate{a.id, a.priority, a.lastAccess, a.reservedSize})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}

		return candidates[i].lastUse < candidates[j].lastUse
	})

	var freed uintptr
	toEvict := make([]StreamID, 0)

	for _, c := range candidates {
		if freed >= bytesNeeded {
			break
		}

		toEvict = append(toEvict, c.id)
		freed += c.size
	}

	for _, id := range toEvict {
		if a, ok := s.byID[id]; ok {
			delete(s.byID, id)
			s.totalReserved.Add(^uint64(a.reservedSize) + 1)
			s.totalLoaded.Add(^uint64(a.loadedBytes) + 1)
		}
	}

	s.mu.Unlock()

	s.evictionMu.Lock()
	cb := s.onEvict
	s.evictionMu.Unlock()

	if cb != nil {
		for _, id := range toEvict {
			cb(id)
		}
	}

	return freed >= bytesNeeded
}

// NextFrame advances the allocator's internal frame counter, used for LRU
// ordering during eviction.
func (s *StreamingAllocator) NextFrame() { s.currentFrame.Add(1) }

// Budget returns the configured byte budget.
func (s *StreamingAllocator) Budget() uintptr { return s.budget }

// TotalReserved returns the current reserved byte count.
func (s *StreamingAllocator) TotalReserved() uintptr { return uintptr(s.totalReserved.Load()) }

// TotalLoaded returns the current loaded byte count.
func (s *StreamingAllocator) TotalLoaded() uintptr { return uintptr(s.totalLoaded.Load()) }

// Available returns the remaining unreserved budget. An unlimited
// (zero) budget always reports as fully available.
func (s *StreamingAllocator) Available() uintptr {
	if s.budget == 0 {
		return ^uintptr(0)
	}

	reserved := uintptr(s.totalReserved.Load())
	if reserved >= s.budget {
		return 0
	}

	return s.budget - reserved
}

// State returns a reservation's current state and ok=false if unknown.
func (s *StreamingAllocator) State(id StreamID) (StreamState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return 0, false
	}

	return a.state, true
}

// StreamingStats summarizes a StreamingAllocator's current state.
type StreamingStats struct {
	Budget          uintptr
	TotalReserved   uintptr
	TotalLoaded     uintptr
	AllocationCount int
	ReservedCount   int
	LoadingCount    int
	ReadyCount      int
}

// UtilizationPercent returns reserved/budget as a percentage.
func (st StreamingStats) UtilizationPercent() float64 {
	if st.Budget == 0 {
		return 0
	}

	return float64(st.TotalReserved) / float64(st.Budget) * 100
}

// LoadProgressPercent returns loaded/reserved as a percentage.
func (st StreamingStats) LoadProgressPercent() float64 {
	if st.TotalReserved == 0 {
		return 100
	}

	return float64(st.TotalLoaded) / float64(st.TotalReserved) * 100
}

// Stats returns a snapshot of the allocator's current statistics.
func (s *StreamingAllocator) Stats() StreamingStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := StreamingStats{
		Budget:          s.budget,
		TotalReserved:   uintptr(s.totalReserved.Load()),
		TotalLoaded:     uintptr(s.totalLoaded.Load()),
		AllocationCount: len(s.byID),
	}

	for _, a := range s.byID {
		switch a.state {
		case StreamReserved:
			st.ReservedCount++
		case StreamLoading:
			st.LoadingCount++
		case StreamReady:
			st.ReadyCount++
		case StreamEvicting:
		}
	}

	return st
}
