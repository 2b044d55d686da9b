package mcheap

// Stats is a snapshot of the allocator's counters. Allocations and
// AllocationsMax are always maintained; LargestFree and HeadRoom only when
// Config.TrackStats is set.
type Stats struct {
	Allocations    int // currently live allocations
	AllocationsMax int // peak observed live allocations
	LargestFree    int // largest currently-allocatable content size, in bytes
	HeadRoom       int // minimum LargestFree observed since Init/Reinit
}

// Stats reports the allocator's current counters. If Config.TrackStats was
// not set, LargestFree and HeadRoom are zero.
func (a *Allocator) Stats() Stats {
	return Stats{
		Allocations:    a.allocations,
		AllocationsMax: a.allocationsMax,
		LargestFree:    a.largestFree,
		HeadRoom:       a.headRoom,
	}
}

// LargestFree reports the current largest allocatable content size in
// bytes, derived by scanning the free list regardless of whether
// Config.TrackStats is set.
func (a *Allocator) LargestFree() int {
	a.Init()
	return a.scanLargestFree()
}

func (a *Allocator) scanLargestFree() int {
	lay := a.lay
	largest := 0
	off := a.firstFree
	for off != -1 {
		if size := lay.sizeAt(a.region, off); size > largest {
			largest = size
		}
		off = lay.nextFreeAt(a.region, off)
	}

	if a.firstFree == -1 {
		return 0
	}

	largest += lay.freeSize
	if largest < lay.usedSize {
		return 0
	}
	return largest - lay.usedSize
}

// refreshStats re-derives LargestFree and, if it has dropped, HeadRoom.
// Called after every successful Allocate/Free when Config.TrackStats is
// set, exactly as free_find_largest() is in the original.
func (a *Allocator) refreshStats() {
	if !a.cfg.TrackStats {
		return
	}
	a.largestFree = a.scanLargestFree()
	if a.largestFree < a.headRoom {
		a.headRoom = a.largestFree
	}
}
