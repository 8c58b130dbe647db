package allocator

import "testing"

func TestFrameVecPushPopGet(t *testing.T) {
	_, w := newTestWorker(t)
	w.BeginFrame()

	v := NewFrameVec[int](w, 4)
	if v.Cap() != 4 || !v.IsEmpty() {
		t.Fatalf("new vec: Cap()=%d IsEmpty()=%v, want 4, true", v.Cap(), v.IsEmpty())
	}

	for i := 0; i < 4; i++ {
		if !v.Push(i) {
			t.Fatalf("Push(%d) failed unexpectedly", i)
		}
	}

	if !v.IsFull() {
		t.Fatal("expected the vector to be full after pushing to capacity")
	}

	if v.Push(99) {
		t.Fatal("expected Push past capacity to fail")
	}

	if v.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", v.Remaining())
	}

	if got := v.Get(2); got == nil || *got != 2 {
		t.Fatalf("Get(2) = %v, want 2", got)
	}

	if v.Get(10) != nil {
		t.Fatal("expected Get out of range to return nil")
	}

	val, ok := v.Pop()
	if !ok || val != 3 {
		t.Fatalf("Pop() = %d, %v, want 3, true", val, ok)
	}

	if v.Len() != 3 {
		t.Fatalf("Len() after Pop = %d, want 3", v.Len())
	}
}

func TestFrameVecPopEmpty(t *testing.T) {
	_, w := newTestWorker(t)
	w.BeginFrame()

	v := NewFrameVec[int](w, 2)

	if _, ok := v.Pop(); ok {
		t.Fatal("expected Pop on an empty vector to report ok=false")
	}
}

func TestFrameVecClear(t *testing.T) {
	_, w := newTestWorker(t)
	w.BeginFrame()

	v := NewFrameVec[int](w, 3)
	v.Push(1)
	v.Push(2)

	v.Clear()

	if v.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", v.Len())
	}
}

func TestFrameVecExtendFromSlice(t *testing.T) {
	_, w := newTestWorker(t)
	w.BeginFrame()

	v := NewFrameVec[int](w, 3)

	n := v.ExtendFromSlice([]int{1, 2, 3, 4, 5})
	if n != 3 {
		t.Fatalf("ExtendFromSlice() appended %d, want 3 (capped at capacity)", n)
	}

	if v.Slice()[2] != 3 {
		t.Fatalf("Slice()[2] = %d, want 3", v.Slice()[2])
	}
}

func TestFrameVecRetain(t *testing.T) {
	_, w := newTestWorker(t)
	w.BeginFrame()

	v := NewFrameVec[int](w, 5)
	v.ExtendFromSlice([]int{1, 2, 3, 4, 5})

	v.Retain(func(x int) bool { return x%2 == 0 })

	if v.Len() != 2 {
		t.Fatalf("Len() after Retain = %d, want 2", v.Len())
	}

	got := v.Slice()
	if got[0] != 2 || got[1] != 4 {
		t.Fatalf("Slice() after Retain = %v, want [2 4]", got)
	}
}

func TestNewFrameVecZeroCapacity(t *testing.T) {
	_, w := newTestWorker(t)
	w.BeginFrame()

	v := NewFrameVec[int](w, 0)
	if v.Cap() != 0 || !v.IsFull() {
		t.Fatal("expected a zero-capacity vector to report Cap()=0 and IsFull()=true")
	}
}

func TestFrameVecOf(t *testing.T) {
	_, w := newTestWorker(t)
	w.BeginFrame()

	v := FrameVecOf[int](w, 3)
	if v.Cap() != 3 {
		t.Fatalf("Cap() = %d, want 3", v.Cap())
	}

	if !v.Push(1) {
		t.Fatal("expected Push to succeed on a fresh FrameVecOf")
	}
}

func TestFrameMapOf(t *testing.T) {
	m := FrameMapOf[string, int](2)

	if _, _, ok := m.Insert("a", 1); !ok {
		t.Fatal("expected Insert to succeed on a fresh FrameMapOf")
	}

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v, want 1, true", v, ok)
	}
}

func TestFrameMapInsertGetRemove(t *testing.T) {
	m := NewFrameMap[string, int](2)

	if _, replaced, ok := m.Insert("a", 1); replaced || !ok {
		t.Fatalf("Insert(a) = replaced=%v ok=%v, want false, true", replaced, ok)
	}

	m.Insert("b", 2)

	if _, _, ok := m.Insert("c", 3); ok {
		t.Fatal("expected Insert past capacity with a new key to fail")
	}

	// Replacing an existing key is allowed even at capacity.
	old, replaced, ok := m.Insert("a", 10)
	if !ok || !replaced || old != 1 {
		t.Fatalf("Insert(a, 10) = old=%d replaced=%v ok=%v, want 1, true, true", old, replaced, ok)
	}

	v, ok := m.Get("a")
	if !ok || v != 10 {
		t.Fatalf("Get(a) = %d, %v, want 10, true", v, ok)
	}

	if !m.ContainsKey("b") {
		t.Fatal("expected ContainsKey(b) == true")
	}

	removed, ok := m.Remove("b")
	if !ok || removed != 2 {
		t.Fatalf("Remove(b) = %d, %v, want 2, true", removed, ok)
	}

	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}

func TestFrameMapClear(t *testing.T) {
	m := NewFrameMap[string, int](4)
	m.Insert("x", 1)
	m.Insert("y", 2)

	m.Clear()

	if !m.IsEmpty() {
		t.Fatal("expected the map to be empty after Clear")
	}
}
