package mcheap

// usedToFree reinterprets the used section at off as a free section at the
// same address, preserving its total footprint. It does not insert the
// result into the free list. Caller identity, if enabled, is left as-is:
// the file/line that last freed a section lingers on its header for
// post-mortem inspection.
func (a *Allocator) usedToFree(off int) {
	lay := a.lay
	total := lay.usedSectionSize(a.region, off)
	newSize := total - lay.freeSize
	lay.setSizeAt(a.region, off, newSize)
	if lay.keyOff != -1 {
		lay.setKeyAt(a.region, off, uint64(newSize)^keyFree)
	}
}

// freeToUsed reinterprets the free section at off, which must already be
// unlinked from the free list, as a used section at the same address. The
// used header is never larger than the free header, so the content area
// may grow.
func (a *Allocator) freeToUsed(off int) {
	lay := a.lay
	total := lay.freeSectionSize(a.region, off)
	newSize := total - lay.usedSize
	lay.setSizeAt(a.region, off, newSize)
	if lay.keyOff != -1 {
		lay.setKeyAt(a.region, off, uint64(newSize)^keyUsed)
	}
}

// shrink reduces the used section at off to n bytes of content, provided
// the remainder is large enough to host a full free header (the new free
// section's content area may be empty); otherwise the used section keeps
// its original footprint. When a new free section is carved off, it is
// inserted into the free list and merged upward against its new neighbor.
func (a *Allocator) shrink(off, n int) {
	lay := a.lay
	used := lay.sizeAt(a.region, off)
	if n >= used {
		return
	}

	if lay.usedSize+n+lay.freeSize > lay.usedSectionSize(a.region, off) {
		return
	}

	freeOff := off + lay.usedSize + n
	freeSize := used - n - lay.freeSize
	lay.setSizeAt(a.region, freeOff, freeSize)
	if lay.keyOff != -1 {
		lay.setKeyAt(a.region, freeOff, uint64(freeSize)^keyFree)
	}

	lay.setSizeAt(a.region, off, n)
	if lay.keyOff != -1 {
		lay.setKeyAt(a.region, off, uint64(n)^keyUsed)
	}

	a.freeInsert(freeOff)
	a.mergeUp(freeOff)
}

// extendDown moves the used section at usedOff down into the free section
// at freeOff (which must already be removed from the free list, and whose
// end must equal usedOff), copying its header and up to preserve bytes of
// content,
// and grows the section to absorb the freed space. It returns the new
// section's offset (== freeOff).
func (a *Allocator) extendDown(freeOff, usedOff, preserve int) int {
	lay := a.lay
	extra := lay.freeSectionSize(a.region, freeOff)
	total := lay.usedSectionSize(a.region, usedOff)

	move := preserve + lay.usedSize
	if move > total {
		move = total
	}
	copy(a.region[freeOff:freeOff+move], a.region[usedOff:usedOff+move])

	newSize := lay.sizeAt(a.region, freeOff) + extra
	lay.setSizeAt(a.region, freeOff, newSize)
	if lay.keyOff != -1 {
		lay.setKeyAt(a.region, freeOff, uint64(newSize)^keyUsed)
	}
	return freeOff
}

// extendUp grows the used section at off in place to absorb the free
// section immediately following it (which must already be removed from the
// free list).
func (a *Allocator) extendUp(off int) {
	lay := a.lay
	after := off + lay.usedSectionSize(a.region, off)
	extra := lay.freeSectionSize(a.region, after)
	newSize := lay.sizeAt(a.region, off) + extra
	lay.setSizeAt(a.region, off, newSize)
	if lay.keyOff != -1 {
		lay.setKeyAt(a.region, off, uint64(newSize)^keyUsed)
	}
}

// mergeUp absorbs the free section immediately following off, if any, into
// off. The absorbed header's key (if enabled) is overwritten with
// keyMerged for forensic purposes; it is never read back.
func (a *Allocator) mergeUp(off int) {
	lay := a.lay
	next := lay.nextFreeAt(a.region, off)
	if next == -1 {
		return
	}

	if next != off+lay.freeSectionSize(a.region, off) {
		return
	}

	if lay.keyOff != -1 {
		lay.setKeyAt(a.region, next, keyMerged)
	}

	newSize := lay.sizeAt(a.region, off) + lay.freeSectionSize(a.region, next)
	lay.setSizeAt(a.region, off, newSize)
	if lay.keyOff != -1 {
		lay.setKeyAt(a.region, off, uint64(newSize)^keyFree)
	}
	lay.setNextFreeAt(a.region, off, lay.nextFreeAt(a.region, next))
}

// merge absorbs off's upward neighbor, then its downward neighbor, into
// off. Called after a newly freed section has been inserted into the free
// list.
func (a *Allocator) merge(off int) {
	a.mergeUp(off)
	if below := a.findFreeBelow(off); below != -1 {
		a.mergeUp(below)
	}
}
