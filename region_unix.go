// +build darwin dragonfly freebsd linux openbsd solaris netbsd

package mcheap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

var pageMask = unix.Getpagesize() - 1

// NewMmapRegion allocates an OS-backed, page-aligned region of size bytes
// outside the Go heap, suitable for Config.Region. Unlike a plain
// make([]byte, size) region, an mmap'd region survives independently of
// Go's garbage collector and can be shared with another process via
// MAP_SHARED.
func NewMmapRegion(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	if uintptr(unsafe.Pointer(&b[0]))&uintptr(pageMask) != 0 {
		panic("mcheap: mmap returned a non-page-aligned address")
	}

	return b, nil
}

// FreeMmapRegion releases a region obtained from NewMmapRegion. Every
// Allocator using it must have gone out of scope first.
func FreeMmapRegion(region []byte) error {
	return unix.Munmap(region)
}
