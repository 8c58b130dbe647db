package allocator

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// slabPage is one carved-up region backing a single size class. Every cell
// handed out by this page can be mapped back to it by an address-range
// check against the page's base and size (owns). That mapping is what lets ReturnBatch credit a returned
// cell to the page it actually came from instead of losing provenance, per
// the resolved Open Question on slab page tracking.
type slabPage struct {
	base     unsafe.Pointer
	buf      []byte
	size     uintptr // page size
	class    uintptr // cell size for this page
	freeHead int32   // count of cells currently free via freeList, -1 means fully carved, never used
	liveOut  int32   // cells currently handed out from this page
}

func newSlabPage(pageSize, class uintptr) (*slabPage, []unsafe.Pointer) {
	ptr, buf := systemAlloc(pageSize)
	if ptr == nil {
		return nil, nil
	}

	cellCount := int(pageSize / class)
	cells := make([]unsafe.Pointer, 0, cellCount)

	for i := 0; i < cellCount; i++ {
		cells = append(cells, unsafe.Pointer(uintptr(ptr)+uintptr(i)*class))
	}

	p := &slabPage{base: ptr, buf: buf, size: pageSize, class: class}

	return p, cells
}

// owns reports whether ptr was carved from this page.
func (p *slabPage) owns(ptr unsafe.Pointer) bool {
	base := uintptr(p.base)
	q := uintptr(ptr)

	return q >= base && q < base+p.size
}

func (p *slabPage) pageBaseOf(ptr unsafe.Pointer) uintptr {
	return uintptr(p.base)
}

// classRegistry owns every page carved for one size class.
type classRegistry struct {
	mu           sync.Mutex
	class        uintptr
	pageSize     uintptr
	pagesByBase  map[uintptr]*slabPage
	freeList     []unsafe.Pointer // cells not currently assigned to any local pool
	refillCount  uint64
	pagesRetired uint64
}

func newClassRegistry(class, pageSize uintptr, pagesPerClass int) *classRegistry {
	r := &classRegistry{
		class:       class,
		pageSize:    pageSize,
		pagesByBase: make(map[uintptr]*slabPage),
	}

	for i := 0; i < pagesPerClass; i++ {
		r.growLocked()
	}

	return r
}

// growLocked carves a fresh page and appends its cells to the free list.
// Caller must hold r.mu, OR call before the registry is shared (in
// newClassRegistry). Despite the name it is safe to call unlocked only
// during construction.
func (r *classRegistry) growLocked() {
	page, cells := newSlabPage(r.pageSize, r.class)
	if page == nil {
		return
	}

	r.pagesByBase[uintptr(page.base)] = page
	r.freeList = append(r.freeList, cells...)
}

// refill removes up to batchSize cells from the registry's free list,
// allocating a fresh page first if the list is empty. Returns nil if the
// system allocator could not provide a new page.
func (r *classRegistry) refill(batchSize int) []unsafe.Pointer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.freeList) == 0 {
		r.growLocked()
		if len(r.freeList) == 0 {
			return nil
		}
	}

	if batchSize > len(r.freeList) {
		batchSize = len(r.freeList)
	}

	batch := make([]unsafe.Pointer, batchSize)
	copy(batch, r.freeList[len(r.freeList)-batchSize:])
	r.freeList = r.freeList[:len(r.freeList)-batchSize]

	atomic.AddUint64(&r.refillCount, 1)

	for _, c := range batch {
		if page := r.pageOf(c); page != nil {
			page.liveOut++
		}
	}

	return batch
}

// returnBatch gives a batch of cells back to the global free list, crediting
// each cell to its owning page so that a page which regains every one of
// its cells can be retired.
func (r *classRegistry) returnBatch(batch []unsafe.Pointer) {
	if len(batch) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range batch {
		page := r.pageOf(c)
		if page == nil {
			// Cell predates this registry instance (should not happen in
			// practice); keep it in the free list without attribution
			// rather than leaking it.
			r.freeList = append(r.freeList, c)

			continue
		}

		page.liveOut--
		r.freeList = append(r.freeList, c)

		if page.liveOut == 0 {
			r.retirePageLocked(page)
		}
	}
}

// pageOf finds the page owning ptr by scanning the registry's page table.
// Pages are keyed by their own base address (address-masking the cell down
// to its page is the identity relation that lets a returned cell be
// credited to the page it came from at all, resolving the provenance gap
// the virtual-page shortcut left open); Go's allocator does not guarantee
// true OS-page alignment for the backing buffer the way an mmap'd region
// would, so the lookup itself stays a scan over the (typically small)
// per-class page set rather than an aligned map index.
func (r *classRegistry) pageOf(ptr unsafe.Pointer) *slabPage {
	for _, page := range r.pagesByBase {
		if page.owns(ptr) {
			return page
		}
	}

	return nil
}

// retirePageLocked drops every cell belonging to an empty page from the
// free list and removes the page from the registry, allowing Go's GC to
// reclaim its backing buffer. Caller must hold r.mu.
func (r *classRegistry) retirePageLocked(page *slabPage) {
	kept := r.freeList[:0]

	for _, c := range r.freeList {
		if page.owns(c) {
			continue
		}

		kept = append(kept, c)
	}

	r.freeList = kept
	delete(r.pagesByBase, uintptr(page.base))
	r.pagesRetired++
}

func (r *classRegistry) refillCountValue() uint64 {
	return atomic.LoadUint64(&r.refillCount)
}

// SlabRegistry is the process-wide slab allocator shared by every worker.
// It owns one classRegistry per configured size class.
type SlabRegistry struct {
	classes  []uintptr
	byClass  map[uintptr]*classRegistry
	pageSize uintptr
}

// NewSlabRegistry builds a registry with the given size classes,
// pre-reserving pagesPerClass pages of pageSize bytes for each.
func NewSlabRegistry(classes []uintptr, pageSize uintptr, pagesPerClass int) *SlabRegistry {
	reg := &SlabRegistry{
		classes:  append([]uintptr(nil), classes...),
		byClass:  make(map[uintptr]*classRegistry, len(classes)),
		pageSize: pageSize,
	}

	for _, c := range classes {
		reg.byClass[c] = newClassRegistry(c, pageSize, pagesPerClass)
	}

	return reg
}

// ClassFor returns the smallest configured size class able to satisfy a
// request of n bytes, and ok=false if n exceeds every class (the caller
// should fall back to the heap).
func (s *SlabRegistry) ClassFor(n uintptr) (uintptr, bool) {
	for _, c := range s.classes {
		if n <= c {
			return c, true
		}
	}

	return 0, false
}

// Refill asks the class's registry for up to batchSize cells.
func (s *SlabRegistry) Refill(class uintptr, batchSize int) []unsafe.Pointer {
	r, ok := s.byClass[class]
	if !ok {
		return nil
	}

	return r.refill(batchSize)
}

// ReturnBatch returns cells to the class's registry.
func (s *SlabRegistry) ReturnBatch(class uintptr, batch []unsafe.Pointer) {
	if r, ok := s.byClass[class]; ok {
		r.returnBatch(batch)
	}
}

// RefillCount sums the refill counters across every size class, for
// diagnostics.
func (s *SlabRegistry) RefillCount() uint64 {
	var total uint64
	for _, r := range s.byClass {
		total += r.refillCountValue()
	}

	return total
}

const localPoolSoftCap = 64 // cells kept locally per class before returning excess

// LocalPool is a per-worker, per-size-class free list. The fast alloc/free
// path never touches the shared SlabRegistry.
type LocalPool struct {
	class    uintptr
	freeList []unsafe.Pointer
}

// LocalPools is the full set of per-size-class local pools owned by one
// worker.
type LocalPools struct {
	registry *SlabRegistry
	byClass  map[uintptr]*LocalPool
}

// NewLocalPools creates an empty set of local pools bound to the shared
// registry.
func NewLocalPools(registry *SlabRegistry) *LocalPools {
	lp := &LocalPools{
		registry: registry,
		byClass:  make(map[uintptr]*LocalPool, len(registry.classes)),
	}

	for _, c := range registry.classes {
		lp.byClass[c] = &LocalPool{class: c}
	}

	return lp
}

// Alloc returns a cell sized for n bytes, refilling from the shared
// registry if the local free list is empty. Returns nil if n exceeds every
// configured size class.
func (lp *LocalPools) Alloc(n uintptr) unsafe.Pointer {
	class, ok := lp.registry.ClassFor(n)
	if !ok {
		return nil
	}

	pool := lp.byClass[class]
	if len(pool.freeList) == 0 {
		batch := lp.registry.Refill(class, lp.registry.byClass[class].pageSizeCellCount())
		if len(batch) == 0 {
			return nil
		}

		pool.freeList = append(pool.freeList, batch...)
	}

	n2 := len(pool.freeList) - 1
	ptr := pool.freeList[n2]
	pool.freeList = pool.freeList[:n2]

	return ptr
}

// Free pushes a cell of size n back onto the local free list for its class,
// returning excess cells to the shared registry once the soft cap is
// exceeded. The caller is responsible for routing cross-thread frees to
// the owning worker's DeferredFreeQueue instead of calling this directly.
func (lp *LocalPools) Free(ptr unsafe.Pointer, n uintptr) {
	class, ok := lp.registry.ClassFor(n)
	if !ok {
		return
	}

	pool := lp.byClass[class]
	pool.freeList = append(pool.freeList, ptr)

	if len(pool.freeList) > localPoolSoftCap {
		excess := len(pool.freeList) - localPoolSoftCap
		batch := append([]unsafe.Pointer(nil), pool.freeList[:excess]...)
		pool.freeList = pool.freeList[excess:]
		lp.registry.ReturnBatch(class, batch)
	}
}

func (r *classRegistry) pageSizeCellCount() int {
	if r.class == 0 {
		return 1
	}

	n := int(r.pageSize / r.class)
	if n == 0 {
		return 1
	}

	return n
}
