//go:build linux || darwin || freebsd || netbsd || openbsd

package allocator

import "golang.org/x/sys/unix"

// systemPageSize reports the OS page size via getpagesize(2), used by the
// mmap-backed large-allocation path in largealloc_unix.go.
func systemPageSize() uintptr {
	return uintptr(unix.Getpagesize())
}
