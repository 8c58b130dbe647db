package allocator

import (
	"testing"
	"unsafe"
)

func TestAlignUp(t *testing.T) {
	cases := []struct {
		size, alignment, want uintptr
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{17, 16, 32},
		{5, 0, 5},
	}

	for _, c := range cases {
		if got := alignUp(c.size, c.alignment); got != c.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", c.size, c.alignment, got, c.want)
		}
	}
}

func TestCopyMemory(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	dst := make([]byte, 4)

	copyMemory(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 4)

	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], src[i])
		}
	}
}

func TestCopyMemoryZeroSize(t *testing.T) {
	src := []byte{1}
	dst := []byte{9}

	copyMemory(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 0)

	if dst[0] != 9 {
		t.Fatal("expected a zero-size copy to leave dst untouched")
	}
}

func TestPoisonMemory(t *testing.T) {
	buf := make([]byte, 8)

	poisonMemory(unsafe.Pointer(&buf[0]), 8)

	for i, b := range buf {
		if b != poisonByte {
			t.Fatalf("buf[%d] = %x, want %x", i, b, poisonByte)
		}
	}
}

func TestCaptureStackTrace(t *testing.T) {
	pcs := captureStackTrace(0)
	if len(pcs) == 0 {
		t.Fatal("expected captureStackTrace to return at least one frame")
	}
}

func TestSystemAllocZeroSize(t *testing.T) {
	ptr, buf := systemAlloc(0)
	if ptr != nil || buf != nil {
		t.Fatal("expected systemAlloc(0) to return nil, nil")
	}
}

func TestSystemAllocNonZeroSize(t *testing.T) {
	ptr, buf := systemAlloc(16)
	if ptr == nil || len(buf) != 16 {
		t.Fatalf("systemAlloc(16) = %v, len(buf)=%d, want non-nil ptr, len 16", ptr, len(buf))
	}

	if unsafe.Pointer(&buf[0]) != ptr {
		t.Fatal("expected the returned pointer to alias the returned slice's backing array")
	}
}
