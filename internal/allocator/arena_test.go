package allocator

import "testing"

func TestFrameArenaAllocLayout(t *testing.T) {
	a := NewFrameArena(128, false)

	p1 := a.AllocLayout(16, 8)
	if p1 == nil {
		t.Fatal("expected a non-nil pointer")
	}

	if a.Allocated() != 16 {
		t.Fatalf("Allocated() = %d, want 16", a.Allocated())
	}

	p2 := a.AllocLayout(16, 8)
	if uintptr(p2)-uintptr(p1) != 16 {
		t.Fatalf("expected the second allocation to follow the first by 16 bytes, got offset %d", uintptr(p2)-uintptr(p1))
	}
}

func TestFrameArenaAlignment(t *testing.T) {
	a := NewFrameArena(128, false)

	a.AllocLayout(1, 1) // head = 1
	p := a.AllocLayout(8, 16)

	// Alignment is guaranteed relative to the arena's base address, not as
	// an absolute property of p: Go's make([]byte, n) gives no guarantee
	// the backing array itself starts on a 16-byte boundary.
	offset := uintptr(p) - uintptr(a.base)
	if offset%16 != 0 {
		t.Fatalf("expected an offset 16-byte-aligned from the arena base, got %d", offset)
	}
}

func TestFrameArenaExhaustion(t *testing.T) {
	a := NewFrameArena(16, false)

	if a.AllocLayout(16, 1) == nil {
		t.Fatal("expected an allocation that exactly fills the arena to succeed")
	}

	if a.AllocLayout(1, 1) != nil {
		t.Fatal("expected an allocation past capacity to return nil")
	}
}

func TestFrameArenaAllocSlice(t *testing.T) {
	a := NewFrameArena(128, false)

	p := a.AllocSlice(4, 4, 10)
	if p == nil {
		t.Fatal("expected a non-nil slice allocation")
	}

	if a.Allocated() != 40 {
		t.Fatalf("Allocated() = %d, want 40", a.Allocated())
	}
}

func TestFrameArenaSaveResetTo(t *testing.T) {
	a := NewFrameArena(128, false)

	a.AllocLayout(32, 8)
	cp := a.Save()
	a.AllocLayout(32, 8)

	if a.Allocated() != 64 {
		t.Fatalf("Allocated() = %d, want 64", a.Allocated())
	}

	a.ResetTo(cp)
	if a.Allocated() != 32 {
		t.Fatalf("Allocated() after ResetTo = %d, want 32", a.Allocated())
	}
}

func TestFrameArenaResetToRejectsForwardRoll(t *testing.T) {
	a := NewFrameArena(128, false)

	a.AllocLayout(16, 8)
	cp := a.Save()

	a.ResetTo(Checkpoint{head: cp.head + 1000})
	if a.Allocated() != 16 {
		t.Fatalf("expected a forward ResetTo to be rejected as a no-op, Allocated() = %d, want 16", a.Allocated())
	}
}

func TestFrameArenaReset(t *testing.T) {
	a := NewFrameArena(128, false)

	a.AllocLayout(32, 8)
	a.Reset()

	if a.Allocated() != 0 {
		t.Fatalf("Allocated() after Reset = %d, want 0", a.Allocated())
	}

	if a.Remaining() != a.Capacity() {
		t.Fatal("expected Remaining() to equal Capacity() after Reset")
	}
}

func TestFrameArenaPeakUsage(t *testing.T) {
	a := NewFrameArena(128, false)

	a.AllocLayout(64, 8)
	a.Reset()
	a.AllocLayout(16, 8)

	if a.PeakUsage() != 64 {
		t.Fatalf("PeakUsage() = %d, want 64 (peak survives Reset)", a.PeakUsage())
	}
}

func TestFrameArenaContains(t *testing.T) {
	a := NewFrameArena(64, false)
	other := NewFrameArena(64, false)

	p := a.AllocLayout(8, 8)

	if !a.Contains(p) {
		t.Fatal("expected the arena to contain a pointer it allocated")
	}

	if a.Contains(nil) {
		t.Fatal("expected Contains(nil) to be false")
	}

	op := other.AllocLayout(8, 8)
	if a.Contains(op) {
		t.Fatal("expected Contains to be false for a pointer from a different arena")
	}
}

func TestFrameArenaZeroSizeAlloc(t *testing.T) {
	a := NewFrameArena(16, false)

	p := a.AllocLayout(0, 8)
	if p == nil {
		t.Fatal("expected a zero-size allocation to still return a non-nil pointer")
	}

	if a.Allocated() != 0 {
		t.Fatalf("Allocated() = %d, want 0 for a zero-size allocation", a.Allocated())
	}
}
