package mcheap

import (
	"errors"
	"reflect"
	"unsafe"

	"golang.org/x/sys/windows"
)

// handleMap recovers the file-mapping handle from the view address returned
// to the caller, since FreeMmapRegion only receives the []byte back.
var handleMap = map[uintptr]windows.Handle{}

// NewMmapRegion allocates an OS-backed region of size bytes outside the Go
// heap, suitable for Config.Region. On Windows this goes through
// CreateFileMapping backed by the system paging file, then MapViewOfFile,
// exactly as any anonymous private mapping does on that platform.
func NewMmapRegion(size int) ([]byte, error) {
	maxSizeHigh := uint32(uint64(size) >> 32)
	maxSizeLow := uint32(uint64(size) & 0xFFFFFFFF)

	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, maxSizeHigh, maxSizeLow, nil)
	if err != nil {
		return nil, err
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(h)
		return nil, err
	}

	handleMap[addr] = h

	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr
	sh.Len = size
	sh.Cap = size
	return b, nil
}

// FreeMmapRegion releases a region obtained from NewMmapRegion.
func FreeMmapRegion(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&region[0]))

	if err := windows.UnmapViewOfFile(addr); err != nil {
		return err
	}

	h, ok := handleMap[addr]
	if !ok {
		return errors.New("mcheap: unknown mapped address")
	}
	delete(handleMap, addr)

	return windows.CloseHandle(h)
}
