package mcheap

import "runtime"

// CallerID identifies the call site that last touched a section: the file
// and line of the Allocate/Reallocate/Free call. It is the Go port of the
// original's __FILE__/__LINE__ macro stamping (heap.h's HEAP_ID_SECTIONS
// wrapper macros) — captured automatically with runtime.Caller instead of
// requiring the caller to pass it through explicitly.
type CallerID struct {
	File string
	Line int
}

// Allocation describes one currently-live allocation, as reported by List.
type Allocation struct {
	ID      CallerID
	Size    int
	Content []byte
}

// callerHere captures the identity of whoever called the exported
// Allocate/Reallocate/Free method that calls callerHere directly. It is the
// Go port of the original's __FILE__/__LINE__ macro argument, captured
// automatically instead of threaded through every call.
func (a *Allocator) callerHere() CallerID {
	if a.lay.idIdxOff == -1 {
		return CallerID{}
	}
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return CallerID{}
	}
	return CallerID{File: file, Line: line}
}

func (a *Allocator) internFile(file string) int {
	for i, f := range a.idFiles {
		if f == file {
			return i + 1
		}
	}
	a.idFiles = append(a.idFiles, file)
	return len(a.idFiles)
}

func (a *Allocator) idOf(idx int) string {
	if idx == 0 || idx > len(a.idFiles) {
		return ""
	}
	return a.idFiles[idx-1]
}

// setID stamps id on the section at off. A zero CallerID (identity
// tracking disabled, or the caller couldn't be determined) clears the id
// fields instead of leaving a stale one from whatever section used to
// occupy this address.
func (a *Allocator) setID(off int, id CallerID) {
	if a.lay.idIdxOff == -1 {
		return
	}
	idx := 0
	if id.File != "" {
		idx = a.internFile(id.File)
	}
	a.lay.setIDAt(a.region, off, idx, id.Line)
}

// callerIDAt reads back the CallerID stamped on the section at off. Valid
// for either variant, since both share the id fields' offsets.
func (a *Allocator) callerIDAt(off int) CallerID {
	if a.lay.idIdxOff == -1 {
		return CallerID{}
	}
	idx, line := a.lay.idAt(a.region, off)
	return CallerID{File: a.idOf(idx), Line: line}
}

// walkUsed calls fn for every used section in address order, stopping early
// if fn returns false.
func (a *Allocator) walkUsed(fn func(off int) bool) {
	lay := a.lay
	nextFree := a.firstFree
	off := 0
	end := len(a.region)
	for off != end {
		if off == nextFree {
			nextFree = lay.nextFreeAt(a.region, off)
			off += lay.freeSectionSize(a.region, off)
			continue
		}

		if !fn(off) {
			return
		}
		off += lay.usedSectionSize(a.region, off)
	}
}

// FindLeak returns the caller identity currently holding the most live
// allocations, and how many. It requires Config.IDSections; without it,
// FindLeak always reports a zero CallerID and a count of 0. Ties are
// broken by whichever call site is encountered first in address order,
// matching the original's forward-scan behavior.
func (a *Allocator) FindLeak() (CallerID, int) {
	a.Init()
	if a.lay.idIdxOff == -1 {
		return CallerID{}, 0
	}

	type key struct {
		idx  int
		line int
	}

	order := []key{}
	counts := map[key]int{}
	a.walkUsed(func(off int) bool {
		idx, line := a.lay.idAt(a.region, off)
		k := key{idx, line}
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
		return true
	})

	best := key{}
	bestCount := 0
	for _, k := range order {
		if counts[k] > bestCount {
			bestCount = counts[k]
			best = k
		}
	}

	return CallerID{File: a.idOf(best.idx), Line: best.line}, bestCount
}

// List returns the i-th currently live allocation in address order, or the
// zero Allocation if i is out of range.
func (a *Allocator) List(i int) Allocation {
	a.Init()
	lay := a.lay
	var found Allocation
	n := 0
	a.walkUsed(func(off int) bool {
		if n == i {
			size := lay.sizeAt(a.region, off)
			found = Allocation{
				ID:      a.callerIDAt(off),
				Size:    size,
				Content: a.region[off+lay.usedSize : off+lay.usedSize+size],
			}
			return false
		}
		n++
		return true
	})
	return found
}
