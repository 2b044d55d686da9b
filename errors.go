package mcheap

import "fmt"

// Kind identifies one of the allocator's terminal failure conditions. None
// of these are recoverable in the traditional sense: they signal a
// programming fault or a corrupted heap, not a condition a caller can sanely
// retry from, which is why they route through Handler rather than an
// ordinary returned error in most call paths.
type Kind int

const (
	// AllocationFailed: no free section can host the request.
	AllocationFailed Kind = iota
	// ReallocFailed: reallocation could neither extend nor relocate.
	ReallocFailed
	// FreeExternal: the pointer given to Free lies outside the region.
	FreeExternal
	// ReallocExternal: the pointer given to Reallocate lies outside the region.
	ReallocExternal
	// FalseFree: the pointer is inside the region but is not a used
	// section's content (requires integrity checking).
	FalseFree
	// FalseRealloc: same as FalseFree, raised from Reallocate.
	FalseRealloc
	// Broken: the section chain fails to tile the region, or a key
	// fails to match (requires integrity checking).
	Broken
	// NoInit: runtime-address mode used before InitRegion was called.
	NoInit
)

func (k Kind) String() string {
	switch k {
	case AllocationFailed:
		return "allocation_failed"
	case ReallocFailed:
		return "realloc_failed"
	case FreeExternal:
		return "free_external"
	case ReallocExternal:
		return "realloc_external"
	case FalseFree:
		return "false_free"
	case FalseRealloc:
		return "false_realloc"
	case Broken:
		return "broken"
	case NoInit:
		return "no_init"
	default:
		return "unknown"
	}
}

// Error reports a terminal allocator failure. ID is populated only when the
// allocator was constructed with Config.IDSections, and names the caller
// whose operation triggered the failure.
type Error struct {
	Kind Kind
	ID   CallerID
}

func (e *Error) Error() string {
	if e.ID.File == "" {
		return fmt.Sprintf("mcheap: %s", e.Kind)
	}
	return fmt.Sprintf("mcheap: %s (at %s:%d)", e.Kind, e.ID.File, e.ID.Line)
}

// Handler is invoked for every terminal failure described in Kind. The
// default handler panics. A Handler that returns instead of panicking
// allows the triggering call to fall back to its zero value; re-entering
// the allocator from within a Handler is undefined behavior, identical to
// calling allocate() from within an assert handler in the original C source.
type Handler func(*Error)

func defaultHandler(err *Error) {
	panic(err)
}

// blockingHandler never returns, matching the original's NO_ASSERT
// behavior of hanging in an infinite loop instead of invoking an assert
// handler.
func blockingHandler(*Error) {
	select {}
}
