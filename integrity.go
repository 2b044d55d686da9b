package mcheap

// walk traverses the region section by section, cross-checking against the
// free list, exactly as test_heap()/heap_test() do in the original source.
// If target is not -1, walk additionally verifies that a used section at
// that offset was encountered; the returned bool distinguishes a structural
// break (heap corrupt) from a missed target (section not used).
//
// In keyed mode each section's stored key is authoritative for its variant;
// in non-keyed mode a section is free iff its address is the next expected
// free-list pointer.
func (a *Allocator) walk(target int) (intact, foundTarget bool) {
	lay := a.lay
	nextFree := a.firstFree
	off := 0
	end := len(a.region)
	foundTarget = target == -1

	for off != end {
		var isFree bool
		if lay.keyOff != -1 {
			size := lay.sizeAt(a.region, off)
			key := lay.keyAt(a.region, off)
			switch key ^ uint64(size) {
			case keyFree:
				isFree = true
			case keyUsed:
				isFree = false
			default:
				return false, foundTarget
			}
			if isFree && off != nextFree {
				return false, foundTarget
			}
		} else {
			isFree = off == nextFree
		}

		var sectionSize int
		if isFree {
			sectionSize = lay.freeSectionSize(a.region, off)
			nextFree = lay.nextFreeAt(a.region, off)
		} else {
			sectionSize = lay.usedSectionSize(a.region, off)
			if off == target {
				foundTarget = true
			}
		}

		off += sectionSize
		if off < 0 || off > end {
			return false, foundTarget
		}
	}

	return true, foundTarget
}

// IsIntact walks the whole region and reports whether it tiles correctly
// and, when keys are enabled, whether every section's key matches its
// variant.
func (a *Allocator) IsIntact() bool {
	a.Init()
	intact, _ := a.walk(-1)
	return intact
}

// checkBeforeMutate runs the integrity walker at the head of a mutating
// call when Config.TestEveryCall is set, exactly as TEST_HEAP does in the
// original. target is the used-section offset the caller is about to
// operate on, or -1 for allocate (which has no pre-existing target).
// falseKind is the failure to report if the target turns out not to be a
// used section (false_free or false_realloc depending on the caller).
//
// checkBeforeMutate never calls Handler itself; it reports what went wrong
// and leaves invoking fail to the caller, which already holds the CallerID
// for this call.
func (a *Allocator) checkBeforeMutate(target int, falseKind Kind) (ok bool, kind Kind) {
	if !a.cfg.TestEveryCall {
		return true, 0
	}

	intact, found := a.walk(target)
	if !intact {
		return false, Broken
	}
	if target != -1 && !found {
		return false, falseKind
	}
	return true, 0
}
