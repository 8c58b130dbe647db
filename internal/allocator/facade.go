package allocator

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Facade is the single entry point applications use to reach every
// allocator in this package: it owns the process-wide slab registry,
// system heap, handle table, streaming and group allocators, scratch
// registry, and both budget managers, and it mints Worker handles for
// callers to Attach/Detach around their per-goroutine work. Go has no
// equivalent of the source material's process-wide Arc<GlobalState>
// implicitly shared via thread-local lookup, so every operation that
// needs worker-local state takes an explicit *Worker argument instead.
type Facade struct {
	config Config

	heap   *HeapWrapper
	slabs  *SlabRegistry
	handles *HandleTable

	streaming *StreamingAllocator
	groups    *GroupAllocator
	scratch   *ScratchRegistry

	budgets            *BudgetManager
	threadBudgets      *ThreadBudgetManager
	deferredController *DeferredController
	promotion          *PromotionProcessor
	behavior           *BehaviorFilter
	diagnostics        *Diagnostics

	totalAllocated    atomic.Uint64
	peakAllocated     atomic.Uint64
	allocationCount   atomic.Uint64
	deallocationCount atomic.Uint64

	workersMu sync.Mutex
	workers   map[WorkerID]*Worker
}

// New creates a Facade from the given configuration, wiring every
// sub-allocator according to it. Budget tracking is enabled only if
// cfg.EnableBudgets is set. Returns an error if cfg.MinCompatVersion is set
// and this build does not satisfy it.
func New(cfg *Config) (*Facade, error) {
	if err := checkCompat(cfg.MinCompatVersion); err != nil {
		return nil, err
	}

	f := &Facade{
		config:             *cfg,
		heap:               NewHeapWrapper(cfg.DebugMode),
		slabs:              NewSlabRegistry(cfg.SlabSizeClasses, cfg.SlabPageSize, cfg.SlabPagesPerClass),
		handles:            NewHandleTable(cfg.DebugMode),
		streaming:          NewStreamingAllocator(cfg.GlobalMemoryLimit),
		groups:             NewGroupAllocator(),
		scratch:            NewScratchRegistry(1024*1024, cfg.DebugMode),
		threadBudgets:      NewThreadBudgetManager(),
		deferredController: NewDeferredController(DefaultDeferredConfig()),
		promotion:          NewPromotionProcessor(),
		behavior:           NewBehaviorFilter(DefaultThresholds()),
		workers:            make(map[WorkerID]*Worker),
	}

	if cfg.EnableBudgets {
		f.budgets = NewBudgetManager(cfg.GlobalMemoryLimit)
		f.threadBudgets.Enable()
	}

	f.wirePromotion()
	f.diagnostics = newDiagnostics(f, cfg)

	return f, nil
}

// wirePromotion connects the shared PromotionProcessor's destination
// callbacks to this facade's pool and heap allocators, and to the
// scratch registry for PromoteToScratch.
func (f *Facade) wirePromotion() {
	f.promotion.WithPoolAlloc(func(size, align uintptr) unsafe.Pointer {
		localPools := NewLocalPools(f.slabs)
		return localPools.Alloc(size)
	}).WithHeapAlloc(func(size, align uintptr) unsafe.Pointer {
		return f.heap.Alloc(size, align)
	}).WithScratchAlloc(func(name string, size, align uintptr) (unsafe.Pointer, bool) {
		pool, ok := f.scratch.Get(name)
		if !ok {
			return nil, false
		}

		return pool.AllocLayout(size, align), true
	})
}

// Config returns the facade's configuration.
func (f *Facade) Config() Config { return f.config }

// Handles returns the shared handle table.
func (f *Facade) Handles() *HandleTable { return f.handles }

// Streaming returns the shared streaming allocator.
func (f *Facade) Streaming() *StreamingAllocator { return f.streaming }

// Groups returns the shared group allocator.
func (f *Facade) Groups() *GroupAllocator { return f.groups }

// Scratch returns the shared scratch pool registry.
func (f *Facade) Scratch() *ScratchRegistry { return f.scratch }

// Budgets returns the global tag/limit budget manager, or nil if budgets
// were not enabled in the configuration.
func (f *Facade) Budgets() *BudgetManager { return f.budgets }

// ThreadBudgets returns the per-worker frame/pool budget manager.
func (f *Facade) ThreadBudgets() *ThreadBudgetManager { return f.threadBudgets }

// Behavior returns the shared behavior filter.
func (f *Facade) Behavior() *BehaviorFilter { return f.behavior }

// HeapAllocLayout allocates size bytes aligned to align directly from the
// system heap, bypassing any worker.
func (f *Facade) HeapAllocLayout(size, align uintptr) unsafe.Pointer {
	ptr := f.heap.Alloc(size, align)
	if ptr != nil {
		f.recordAlloc(size)
	}

	return ptr
}

// HeapFreeLayout frees a pointer previously returned by HeapAllocLayout.
func (f *Facade) HeapFreeLayout(ptr unsafe.Pointer, size, align uintptr) {
	f.heap.Dealloc(ptr, size, align)
	f.recordDealloc(size)
}

func (f *Facade) recordAlloc(size uintptr) {
	f.allocationCount.Add(1)
	newTotal := f.totalAllocated.Add(uint64(size))

	for {
		peak := f.peakAllocated.Load()
		if newTotal <= peak || f.peakAllocated.CompareAndSwap(peak, newTotal) {
			break
		}
	}

	if f.budgets != nil {
		f.budgets.CheckAllocation(size, uintptr(newTotal))
	}
}

func (f *Facade) recordDealloc(size uintptr) {
	f.deallocationCount.Add(1)
	f.totalAllocated.Add(^uint64(size) + 1)
}

// Stats returns a process-wide snapshot of allocator activity, rolling
// up every currently attached worker's local counters.
func (f *Facade) Stats() AllocStats {
	f.workersMu.Lock()
	var frameAllocated, poolAllocated uintptr
	for _, w := range f.workers {
		frameAllocated += w.frame.Allocated()
		poolAllocated += w.stats.bytesAllocated
	}
	f.workersMu.Unlock()

	return AllocStats{
		TotalAllocated:    uintptr(f.totalAllocated.Load()),
		PeakAllocated:     uintptr(f.peakAllocated.Load()),
		AllocationCount:   f.allocationCount.Load(),
		DeallocationCount: f.deallocationCount.Load(),
		FrameAllocated:    frameAllocated,
		PoolAllocated:     poolAllocated,
		HeapAllocated:     f.heap.AllocatedBytes(),
		SlabRefillCount:   f.slabs.RefillCount(),
		DeferredFreeCount: f.deferredController.Stats().TotalProcessed,
	}
}

// Attach creates and registers a new Worker bound to this facade. Callers
// own the returned handle and must call Detach when the goroutine is
// done using it — Go has no goroutine-exit hook to do this automatically.
func (f *Facade) Attach() *Worker {
	id := WorkerID(workerIDCounter.Add(1))
	w := newWorker(id, f)

	f.workersMu.Lock()
	f.workers[id] = w
	f.workersMu.Unlock()

	return w
}

// Detach unregisters a worker, folding its final counters into the
// facade's aggregate stats. The worker handle must not be used after
// this call.
func (f *Facade) Detach(w *Worker) {
	f.workersMu.Lock()
	delete(f.workers, w.id)
	f.workersMu.Unlock()

	f.allocationCount.Add(w.stats.allocCount)
	f.deallocationCount.Add(w.stats.deallocCount)
}
