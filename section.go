package mcheap

import "encoding/binary"

// Integrity key values. A section's stored key XOR its size must equal the
// constant for its variant. KEY_MERGED is written over a free section's key
// when it is swallowed by an upward merge; it is never tested, but shows up
// distinctly in a raw memory dump of the region.
const (
	keyUsed   uint64 = 0x47B3D19C
	keyFree   uint64 = 0x8BA1963F
	keyMerged uint64 = 0x19751975
)

// noFree is the stored next-free link that marks the end of the free list.
// Zero is a legal section offset (the
// first section always starts there), so it cannot double as the sentinel.
const noFree = ^uint64(0)

// layout describes the byte offsets of a section header's fields, computed
// once from a Config and then reused for the life of an Allocator. Both
// variants share key and size at the same offsets so a walker can read
// size without first knowing which variant it's looking at (spec section
// header invariant).
type layout struct {
	alignment int

	keyOff  int // -1 if keys disabled
	sizeOff int

	idIdxOff  int // -1 if caller-identity disabled
	idLineOff int

	nextFreeOff int // free sections only

	usedSize int // rounded-up header size for a used section
	freeSize int // rounded-up header size for a free section
}

func newLayout(cfg Config) layout {
	l := layout{alignment: cfg.Alignment}

	off := 0
	if cfg.UseKeys {
		l.keyOff = 0
		off = 8
	} else {
		l.keyOff = -1
	}
	l.sizeOff = off
	off += 8

	if cfg.IDSections {
		l.idIdxOff = off
		l.idLineOff = off + 2
		off += 6
	} else {
		l.idIdxOff = -1
		l.idLineOff = -1
	}

	l.usedSize = roundup(off, l.alignment)
	l.nextFreeOff = off
	l.freeSize = roundup(off+8, l.alignment)
	return l
}

// roundup rounds n up to the next multiple of m. m must be a power of two.
func roundup(n, m int) int { return (n + m - 1) &^ (m - 1) }

func (l layout) sizeAt(region []byte, off int) int {
	return int(binary.LittleEndian.Uint64(region[off+l.sizeOff:]))
}

func (l layout) setSizeAt(region []byte, off, size int) {
	binary.LittleEndian.PutUint64(region[off+l.sizeOff:], uint64(size))
}

func (l layout) keyAt(region []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(region[off+l.keyOff:])
}

func (l layout) setKeyAt(region []byte, off int, key uint64) {
	binary.LittleEndian.PutUint64(region[off+l.keyOff:], key)
}

func (l layout) nextFreeAt(region []byte, off int) int {
	v := binary.LittleEndian.Uint64(region[off+l.nextFreeOff:])
	if v == noFree {
		return -1
	}
	return int(v)
}

func (l layout) setNextFreeAt(region []byte, off, next int) {
	v := noFree
	if next >= 0 {
		v = uint64(next)
	}
	binary.LittleEndian.PutUint64(region[off+l.nextFreeOff:], v)
}

func (l layout) idAt(region []byte, off int) (idx int, line int) {
	idx = int(binary.LittleEndian.Uint16(region[off+l.idIdxOff:]))
	line = int(binary.LittleEndian.Uint32(region[off+l.idLineOff:]))
	return
}

func (l layout) setIDAt(region []byte, off, idx, line int) {
	binary.LittleEndian.PutUint16(region[off+l.idIdxOff:], uint16(idx))
	binary.LittleEndian.PutUint32(region[off+l.idLineOff:], uint32(line))
}

// usedHeaderSize and freeHeaderSize report the in-band overhead of each
// section variant, rounded up so a content area starts aligned.
func (l layout) usedHeaderSize() int { return l.usedSize }
func (l layout) freeHeaderSize() int { return l.freeSize }

// usedSectionSize and freeSectionSize return the full footprint (header +
// content) of the section of the given variant starting at off.
func (l layout) usedSectionSize(region []byte, off int) int {
	return l.usedSize + l.sizeAt(region, off)
}

func (l layout) freeSectionSize(region []byte, off int) int {
	return l.freeSize + l.sizeAt(region, off)
}
