// Package mcheap implements a dynamic memory allocator over a single
// fixed-size region: no further memory is ever requested from the OS once
// the region is established, making it suitable for long-running processes
// on memory-constrained or memory-fragmentation-sensitive systems. Section
// headers live in-band, directly ahead of their content, exactly as in the
// C allocator this package generalizes.
package mcheap

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/cznic/mathutil"
)

// Config selects an Allocator's behavior for its entire lifetime. Every
// field here corresponds to a compile-time #define in the original source;
// Go has no preprocessor; so each one becomes a flag decided once, at New,
// instead of at compile time.
type Config struct {
	// Size is the region's length in bytes, used only when Region is nil.
	Size int

	// Region, if non-nil, is used directly as backing storage instead of
	// a freshly made []byte. Useful for an OS-backed region obtained from
	// NewMmapRegion, or for memory shared with another process.
	Region []byte

	// Alignment is the content-area alignment in bytes; it must be a
	// power of two. Zero defaults to 8, matching the original's
	// ALIGNMENT_SIZE default for a 64 bit size_t.
	Alignment int

	// UseKeys enables per-section integrity keys (USE_KEYS), trading
	// a little space and time for the ability to detect heap corruption
	// without a free-list cross-check.
	UseKeys bool

	// TestEveryCall runs the integrity walker at the head of every
	// mutating call (TEST_HEAP), turning a corrupted heap or false
	// free/realloc into an immediate, attributable failure instead of
	// a later, harder to diagnose one.
	TestEveryCall bool

	// TrackStats maintains the LargestFree and HeadRoom figures Stats
	// reports and enables the oversize pre-check in Allocate and
	// Reallocate. Allocations and AllocationsMax are counted regardless.
	TrackStats bool

	// IDSections stamps the file and line of the call that last touched
	// each section (HEAP_ID_SECTIONS), enabling FindLeak and List.
	IDSections bool

	// RuntimeAddress defers region acquisition to an explicit InitRegion
	// call (RUNTIME_ADDRESS), matching a region whose base address isn't
	// known until runtime (shared memory, an mmap'd file, a pointer
	// handed down from elsewhere). With this set, Init ignores Size and
	// Region, and Allocate, Reallocate and Free fail with NoInit until
	// InitRegion runs; without it, Init runs implicitly and lazily as usual.
	RuntimeAddress bool

	// NoAssert replaces the default panicking Handler with one that hangs
	// forever instead of returning (NO_ASSERT), matching a target where
	// unwinding on corruption is worse than halting in place. Ignored if
	// Handler is set explicitly.
	NoAssert bool

	// Handler is invoked on every terminal failure. Nil defaults to a
	// handler that panics with the *Error, or, if NoAssert is set, to one
	// that blocks forever instead.
	Handler Handler
}

// Allocator manages one fixed region as described by a Config. The zero
// Allocator is not usable; construct one with New.
type Allocator struct {
	cfg Config
	lay layout

	region      []byte
	initialized bool
	firstFree   int

	handler Handler
	idFiles []string

	allocations    int
	allocationsMax int
	largestFree    int
	headRoom       int
}

// New constructs an Allocator from cfg. The region is not touched until the
// first call that needs it; call Init explicitly to pay that cost up front.
func New(cfg Config) *Allocator {
	if cfg.Alignment == 0 {
		cfg.Alignment = 8
	}
	handler := cfg.Handler
	if handler == nil {
		if cfg.NoAssert {
			handler = blockingHandler
		} else {
			handler = defaultHandler
		}
	}
	return &Allocator{
		cfg:     cfg,
		lay:     newLayout(cfg),
		region:  cfg.Region,
		handler: handler,
	}
}

// Init lazily prepares the region for use, making it from Config.Size if
// Config.Region was nil. Safe to call more than once; only the first call
// has any effect. Most callers never need to call it directly: every
// exported operation calls it themselves, unless Config.RuntimeAddress is
// set, in which case InitRegion must be called explicitly instead.
func (a *Allocator) Init() {
	if a.initialized || a.cfg.RuntimeAddress {
		return
	}
	if a.region == nil {
		a.region = make([]byte, a.cfg.Size)
	}
	a.reset()
	a.initialized = true
}

// InitRegion explicitly binds region as backing storage and initializes it,
// the counterpart of Init for an Allocator built with Config.RuntimeAddress
// set: the region's address usually isn't known until some later point at
// runtime (an mmap call, a handle from another process), so construction
// and initialization can't be the same step. Calling it when
// RuntimeAddress is unset is equivalent to assigning Config.Region and
// calling Reinit.
func (a *Allocator) InitRegion(region []byte) {
	a.region = region
	a.reset()
	a.initialized = true
}

// ensureInit satisfies the "Init before use" requirement of
// Config.RuntimeAddress: it runs the lazy Init for an ordinary Allocator,
// or reports false without touching anything for one still awaiting an
// InitRegion call.
func (a *Allocator) ensureInit() bool {
	if a.initialized {
		return true
	}
	if a.cfg.RuntimeAddress {
		return false
	}
	a.Init()
	return true
}

// Reinit discards every live allocation and reinitializes the region to a
// single free section spanning it, regardless of whether Init has already
// run. Any content previously returned by Allocate/Reallocate must be
// treated as gone.
func (a *Allocator) Reinit() {
	if a.region == nil {
		a.region = make([]byte, a.cfg.Size)
	}
	a.reset()
	a.initialized = true
}

func (a *Allocator) reset() {
	lay := a.lay
	size := len(a.region) - lay.freeSize
	if size < 0 {
		size = 0
	}
	lay.setSizeAt(a.region, 0, size)
	lay.setNextFreeAt(a.region, 0, -1)
	if lay.keyOff != -1 {
		lay.setKeyAt(a.region, 0, uint64(size)^keyFree)
	}
	a.firstFree = 0
	a.allocations = 0
	a.allocationsMax = 0
	a.idFiles = a.idFiles[:0]
	a.largestFree = 0
	a.headRoom = 0
	if a.cfg.TrackStats {
		a.largestFree = a.scanLargestFree()
		a.headRoom = a.largestFree
	}
}

// Contains reports whether b's backing memory lies within the region,
// exactly as heap_contains does in the original: true for any slice that
// aliases region memory, not only slices previously returned by Allocate.
func (a *Allocator) Contains(b []byte) bool {
	if len(b) == 0 || len(a.region) == 0 {
		return false
	}
	base := uintptr(unsafe.Pointer(&a.region[0]))
	p := uintptr(unsafe.Pointer(&b[0]))
	return p >= base && p < base+uintptr(len(a.region))
}

// offsetOf converts a content slice known to alias the region into the
// offset its section header would have, or -1 if that offset falls outside
// the region. It does not check that a used section actually starts there;
// checkBeforeMutate does that when Config.TestEveryCall is set. The caller
// must already know b aliases the region (see Contains); offsetOf does not
// itself check that.
func (a *Allocator) offsetOf(b []byte) int {
	base := uintptr(unsafe.Pointer(&a.region[0]))
	p := uintptr(unsafe.Pointer(&b[0]))
	used := int(p-base) - a.lay.usedSize
	if used < 0 || used >= len(a.region) {
		return -1
	}
	return used
}

// fail routes a terminal condition through Handler and returns the *Error
// so callers with a non-panicking Handler can still return it.
func (a *Allocator) fail(kind Kind, id CallerID) *Error {
	err := &Error{Kind: kind, ID: id}
	a.handler(err)
	return err
}

// Allocate reserves size content bytes and returns a slice over them, or
// nil and a non-nil error if the region has no free section large enough.
// The returned slice's length is size after normalizeSize, that is rounded
// up to the alignment and to the minimum section content size, so it may
// exceed size. The returned slice's contents are unspecified; use Calloc for
// zero-initialized memory. When Config.TrackStats is set, a request that
// obviously exceeds the largest currently-free block returns nil, nil
// without ever reaching Handler: this mimics the traditional malloc
// return contract for callers that prefer it (spec section 7's one
// non-terminal exception to the error-handling policy).
func (a *Allocator) Allocate(size int) (r []byte, err error) {
	if trace {
		requested := size
		defer func() {
			var p *byte
			if len(r) != 0 {
				p = &r[0]
			}
			fmt.Fprintf(os.Stderr, "Allocate(%#x) %p, %v\n", requested, p, err)
		}()
	}

	id := a.callerHere()
	if !a.ensureInit() {
		return nil, a.fail(NoInit, id)
	}

	if ok, kind := a.checkBeforeMutate(-1, AllocationFailed); !ok {
		return nil, a.fail(kind, id)
	}

	size = a.normalizeSize(size)

	if a.cfg.TrackStats && size > a.largestFree {
		return nil, nil
	}

	off := a.freeWalk(size)
	if off == -1 {
		return nil, a.fail(AllocationFailed, id)
	}

	a.freeRemove(off)
	a.freeToUsed(off)
	a.shrink(off, size)
	a.setID(off, id)

	a.allocations++
	if a.allocations > a.allocationsMax {
		a.allocationsMax = a.allocations
	}
	a.refreshStats()

	start := off + a.lay.usedSize
	return a.region[start : start+size], nil
}

// Calloc is Allocate followed by zeroing the returned content, matching
// the original's heap_calloc.
func (a *Allocator) Calloc(size int) ([]byte, error) {
	b, err := a.Allocate(size)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

// Malloc is an alias for Allocate, offered alongside it because the
// original exposes both libc-flavored and descriptive names unconditionally
// (PROVIDE_STDLIB_NAMES): Go cannot conditionally compile an exported
// method name, so both names are always available rather than gated on a
// build tag.
func (a *Allocator) Malloc(size int) ([]byte, error) { return a.Allocate(size) }

// Free releases the section backing b. Freeing a nil slice is a no-op.
// Freeing a slice whose memory lies outside the region is reported through
// Handler as FreeExternal. Freeing a slice that does not start at a used
// section's content is reported as FalseFree only when Config.TestEveryCall
// is set (or when it starts within the region's first header); otherwise it
// is not detected.
func (a *Allocator) Free(b []byte) (err error) {
	if b == nil {
		return nil
	}

	if trace {
		var p *byte
		if len(b) != 0 {
			p = &b[0]
		}
		defer func() {
			fmt.Fprintf(os.Stderr, "Free(%p) %v\n", p, err)
		}()
	}

	id := a.callerHere()
	if !a.ensureInit() {
		return a.fail(NoInit, id)
	}

	if !a.Contains(b) {
		return a.fail(FreeExternal, id)
	}
	off := a.offsetOf(b)
	if off == -1 {
		return a.fail(FalseFree, id)
	}
	if ok, kind := a.checkBeforeMutate(off, FalseFree); !ok {
		return a.fail(kind, id)
	}

	a.usedToFree(off)
	a.setID(off, id)
	a.freeInsert(off)
	a.merge(off)

	a.allocations--
	a.refreshStats()
	return nil
}

// normalizeSize rounds a requested content size up to the configured
// alignment (invariant 5, so a section's end leaves the next section's
// header aligned too), then raises it to max(A, floor), the literal
// invariant 6 floor: a used section must be large enough to host a free
// header when it is later freed, and never smaller than one alignment
// unit even when that difference collapses to zero or less (e.g.
// UseKeys and IDSections both off with a wide enough Alignment that
// freeSize == usedSize).
func (a *Allocator) normalizeSize(size int) int {
	size = roundup(size, a.lay.alignment)
	floor := a.lay.freeSize - a.lay.usedSize
	size = mathutil.Max(size, mathutil.Max(a.lay.alignment, floor))
	return size
}
