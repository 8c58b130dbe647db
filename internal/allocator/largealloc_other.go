//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package allocator

import "unsafe"

// largeAllocThreshold disables the mmap fast path on platforms without a
// golang.org/x/sys/unix binding; every allocation falls back to systemAlloc.
const largeAllocThreshold = ^uintptr(0)

func mmapAlloc(size uintptr) (unsafe.Pointer, []byte, bool) {
	return nil, nil, false
}

func mmapFree(buf []byte) {}
