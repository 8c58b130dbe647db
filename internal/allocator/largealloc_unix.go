//go:build linux || darwin || freebsd || netbsd || openbsd

package allocator

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// largeAllocThreshold is the size, in bytes, at or above which the heap wrapper
// bypasses Go's own allocator and maps memory directly via mmap. Large,
// long-lived system allocations (promoted frame data, big streaming
// buffers) benefit from not competing with the GC's heap for scanning and
// compaction, the same way the teacher's zero-copy I/O paths reach past
// the standard library for raw syscalls when the size justifies it.
const largeAllocThreshold = 1 * mb

// mmapAlloc reserves size bytes of anonymous, zero-filled memory directly
// from the OS, rounded up to a whole number of pages.
func mmapAlloc(size uintptr) (unsafe.Pointer, []byte, bool) {
	pageSize := systemPageSize()
	rounded := alignUp(size, pageSize)

	buf, err := unix.Mmap(-1, 0, int(rounded), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, false
	}

	return unsafe.Pointer(&buf[0]), buf, true
}

// mmapFree releases memory previously returned by mmapAlloc.
func mmapFree(buf []byte) {
	_ = unix.Munmap(buf)
}
