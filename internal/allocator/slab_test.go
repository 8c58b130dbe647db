package allocator

import (
	"testing"
	"unsafe"
)

func TestSlabRegistryClassFor(t *testing.T) {
	r := NewSlabRegistry([]uintptr{16, 64, 256}, 4096, 1)

	cases := []struct {
		n     uintptr
		want  uintptr
		found bool
	}{
		{8, 16, true},
		{16, 16, true},
		{17, 64, true},
		{256, 256, true},
		{257, 0, false},
	}

	for _, c := range cases {
		got, ok := r.ClassFor(c.n)
		if ok != c.found || (ok && got != c.want) {
			t.Errorf("ClassFor(%d) = %d, %v, want %d, %v", c.n, got, ok, c.want, c.found)
		}
	}
}

func TestSlabRegistryRefillAndReturnBatch(t *testing.T) {
	r := NewSlabRegistry([]uintptr{32}, 4096, 1)

	batch := r.Refill(32, 4)
	if len(batch) != 4 {
		t.Fatalf("Refill() returned %d cells, want 4", len(batch))
	}

	r.ReturnBatch(32, batch)

	if r.RefillCount() == 0 {
		t.Fatal("expected RefillCount() to be nonzero after a refill")
	}
}

func TestSlabRegistryRefillUnknownClass(t *testing.T) {
	r := NewSlabRegistry([]uintptr{32}, 4096, 1)

	if batch := r.Refill(9999, 4); batch != nil {
		t.Fatalf("expected Refill on an unconfigured class to return nil, got %v", batch)
	}
}

func TestLocalPoolsAllocFree(t *testing.T) {
	r := NewSlabRegistry([]uintptr{32}, 4096, 1)
	lp := NewLocalPools(r)

	p1 := lp.Alloc(32)
	if p1 == nil {
		t.Fatal("expected a non-nil allocation")
	}

	p2 := lp.Alloc(32)
	if p2 == nil || p2 == p1 {
		t.Fatal("expected a distinct second allocation")
	}

	lp.Free(p1, 32)
	lp.Free(p2, 32)

	p3 := lp.Alloc(32)
	if p3 != p2 {
		t.Fatalf("expected Alloc to reuse the most recently freed cell (LIFO), got %v want %v", p3, p2)
	}
}

func TestLocalPoolsAllocOversized(t *testing.T) {
	r := NewSlabRegistry([]uintptr{32}, 4096, 1)
	lp := NewLocalPools(r)

	if p := lp.Alloc(4096); p != nil {
		t.Fatal("expected Alloc to return nil for a size exceeding every configured class")
	}
}

func TestLocalPoolsFreeReturnsExcessToRegistry(t *testing.T) {
	r := NewSlabRegistry([]uintptr{16}, 4096, 1)
	lp := NewLocalPools(r)

	const n = localPoolSoftCap + 10

	allocated := make([]unsafe.Pointer, 0, n)

	for i := 0; i < n; i++ {
		p := lp.Alloc(16)
		if p == nil {
			t.Fatalf("Alloc() returned nil on iteration %d", i)
		}
		allocated = append(allocated, p)
	}

	pool := lp.byClass[16]
	for _, p := range allocated {
		lp.Free(p, 16)
	}

	if len(pool.freeList) > localPoolSoftCap {
		t.Fatalf("local free list len = %d, want <= %d after excess returned", len(pool.freeList), localPoolSoftCap)
	}
}
