package allocator

import (
	"sync"
	"testing"
	"unsafe"
)

func TestScratchPoolAllocLayoutAndReset(t *testing.T) {
	p := NewScratchPool("ui", 4096, false)

	ptr := p.AllocLayout(64, 8)
	if ptr == nil {
		t.Fatal("expected non-nil allocation")
	}

	if p.Allocated() != 64 {
		t.Fatalf("Allocated() = %d, want 64", p.Allocated())
	}

	p.Reset()
	if p.Allocated() != 0 {
		t.Fatalf("Allocated() after Reset = %d, want 0", p.Allocated())
	}
}

func TestScratchPoolAllocSlice(t *testing.T) {
	p := NewScratchPool("physics", 4096, false)

	ptr := p.AllocSlice(16, 8, 10)
	if ptr == nil {
		t.Fatal("expected non-nil slice allocation")
	}

	if p.Allocated() != 160 {
		t.Fatalf("Allocated() = %d, want 160", p.Allocated())
	}
}

func TestScratchRegistryGetOrCreate(t *testing.T) {
	r := NewScratchRegistry(4096, false)

	if _, ok := r.Get("render"); ok {
		t.Fatal("expected no pool before first GetOrCreate")
	}

	p1 := r.GetOrCreate("render")
	p2 := r.GetOrCreate("render")

	if p1 != p2 {
		t.Fatal("expected GetOrCreate to return the same pool on repeated calls")
	}

	if got, ok := r.Get("render"); !ok || got != p1 {
		t.Fatal("expected Get to find the created pool")
	}
}

func TestScratchRegistryResetAndRemove(t *testing.T) {
	r := NewScratchRegistry(4096, false)

	p := r.GetOrCreate("ui")
	p.AllocLayout(32, 8)

	r.Reset("ui")
	if p.Allocated() != 0 {
		t.Fatalf("Allocated() after Reset(name) = %d, want 0", p.Allocated())
	}

	r.Remove("ui")
	if _, ok := r.Get("ui"); ok {
		t.Fatal("expected pool to be gone after Remove")
	}
}

func TestScratchRegistryResetAll(t *testing.T) {
	r := NewScratchRegistry(4096, false)

	a := r.GetOrCreate("a")
	b := r.GetOrCreate("b")

	a.AllocLayout(16, 8)
	b.AllocLayout(32, 8)

	r.ResetAll()

	if a.Allocated() != 0 || b.Allocated() != 0 {
		t.Fatal("expected ResetAll to reset every pool")
	}
}

func TestScratchRegistryStats(t *testing.T) {
	r := NewScratchRegistry(4096, false)

	r.GetOrCreate("a")
	r.GetOrCreate("b")

	stats := r.Stats()
	if len(stats) != 2 {
		t.Fatalf("Stats() returned %d entries, want 2", len(stats))
	}

	names := map[string]bool{}
	for _, s := range stats {
		names[s.Name] = true
	}

	if !names["a"] || !names["b"] {
		t.Fatalf("Stats() names = %v, want both a and b", names)
	}
}

func TestScratchRegistryWithPool(t *testing.T) {
	r := NewScratchRegistry(4096, false)
	r.GetOrCreate("render")

	var got unsafe.Pointer

	ok := r.WithPool("render", func(p *ScratchPool) {
		got = p.AllocLayout(8, 8)
	})

	if !ok {
		t.Fatal("expected WithPool to find the existing pool")
	}

	if got == nil {
		t.Fatal("expected WithPool's callback to receive a usable pool")
	}

	if ok := r.WithPool("missing", func(*ScratchPool) {}); ok {
		t.Fatal("expected WithPool to report false for a nonexistent pool")
	}
}

func TestScratchRegistryConcurrentGetOrCreate(t *testing.T) {
	r := NewScratchRegistry(4096, false)

	const workers = 16

	var wg sync.WaitGroup
	wg.Add(workers)

	pools := make([]*ScratchPool, workers)

	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			pools[idx] = r.GetOrCreate("shared")
		}(i)
	}

	wg.Wait()

	for i := 1; i < workers; i++ {
		if pools[i] != pools[0] {
			t.Fatal("expected every concurrent GetOrCreate to converge on one pool instance")
		}
	}
}
