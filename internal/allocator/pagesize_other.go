//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package allocator

import "os"

// systemPageSize reports the OS page size on platforms without a
// golang.org/x/sys/unix binding, falling back to the standard library.
func systemPageSize() uintptr {
	return uintptr(os.Getpagesize())
}
