package mcheap

import "fmt"

// Sprintf formats like fmt.Sprintf but returns the result as heap content
// instead of a Go-heap string, the Go counterpart of heap_prnf: format with
// fmt.Sprintf, then copy into one section allocated for the text's length
// (rounded up by Allocate), returning a slice of exactly that length.
func (a *Allocator) Sprintf(format string, args ...interface{}) ([]byte, error) {
	text := fmt.Sprintf(format, args...)
	b, err := a.Allocate(len(text))
	if err != nil {
		return nil, err
	}
	copy(b, text)
	return b[:len(text)], nil
}
