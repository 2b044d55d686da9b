package mcheap

import (
	"testing"
	"time"
)

func newTestAllocator(size int) *Allocator {
	return New(Config{Size: size, Alignment: 8})
}

func TestAllocateFreeRoundTrip(t *testing.T) {
	a := newTestAllocator(1000)
	before := a.LargestFree()

	b, err := a.Allocate(100)
	if err != nil {
		t.Fatal(err)
	}
	// 100 rounded up to the 8-byte alignment.
	if len(b) != 104 {
		t.Fatalf("got %d bytes, want 104", len(b))
	}
	if !a.IsIntact() {
		t.Fatal("heap not intact after allocate")
	}

	if err := a.Free(b); err != nil {
		t.Fatal(err)
	}
	if !a.IsIntact() {
		t.Fatal("heap not intact after free")
	}
	if got := a.LargestFree(); got != before {
		t.Fatalf("largest free after round trip = %d, want %d", got, before)
	}
}

func TestAllocateContentWritable(t *testing.T) {
	a := newTestAllocator(1000)
	b, err := a.Allocate(16)
	if err != nil {
		t.Fatal(err)
	}
	for i := range b {
		b[i] = byte(i)
	}
	for i, v := range b {
		if v != byte(i) {
			t.Fatalf("b[%d] = %d, want %d", i, v, byte(i))
		}
	}
}

func TestCalloc(t *testing.T) {
	a := newTestAllocator(1000)
	b, err := a.Allocate(32)
	if err != nil {
		t.Fatal(err)
	}
	for i := range b {
		b[i] = 0xFF
	}
	if err := a.Free(b); err != nil {
		t.Fatal(err)
	}

	b, err = a.Calloc(32)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range b {
		if v != 0 {
			t.Fatalf("Calloc byte %d = %#x, want 0", i, v)
		}
	}
}

func TestContains(t *testing.T) {
	a := newTestAllocator(1000)
	b, err := a.Allocate(16)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Contains(b) {
		t.Fatal("Contains(b) = false for a live allocation")
	}

	other := make([]byte, 16)
	if a.Contains(other) {
		t.Fatal("Contains(other) = true for unrelated memory")
	}
}

func TestFreeExternal(t *testing.T) {
	a := newTestAllocator(1000)
	var gotKind Kind
	a.handler = func(e *Error) { gotKind = e.Kind }

	other := make([]byte, 16)
	if err := a.Free(other); err == nil {
		t.Fatal("Free(external) returned nil error")
	}
	if gotKind != FreeExternal {
		t.Fatalf("Kind = %v, want FreeExternal", gotKind)
	}
}

func TestAllocationExhaustion(t *testing.T) {
	a := newTestAllocator(10000)
	half := 10000 / 2

	if _, err := a.Allocate(half); err != nil {
		t.Fatalf("first half-size allocation failed: %v", err)
	}

	largest := a.LargestFree()
	if largest >= half {
		t.Fatalf("LargestFree() = %d, want strictly less than %d", largest, half)
	}

	var gotKind Kind
	a.handler = func(e *Error) { gotKind = e.Kind }
	if _, err := a.Allocate(half); err == nil {
		t.Fatal("second half-size allocation unexpectedly succeeded")
	}
	if gotKind != AllocationFailed {
		t.Fatalf("Kind = %v, want AllocationFailed", gotKind)
	}
}

func TestRuntimeAddressRequiresInitRegion(t *testing.T) {
	a := New(Config{RuntimeAddress: true, Alignment: 8})
	var gotKind Kind
	a.handler = func(e *Error) { gotKind = e.Kind }

	if _, err := a.Allocate(16); err == nil {
		t.Fatal("Allocate before InitRegion returned nil error")
	}
	if gotKind != NoInit {
		t.Fatalf("Kind = %v, want NoInit", gotKind)
	}

	a.InitRegion(make([]byte, 1000))
	b, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate after InitRegion failed: %v", err)
	}
	if len(b) != 16 {
		t.Fatalf("got %d bytes, want 16", len(b))
	}
}

func TestNoAssertBlocksInstead(t *testing.T) {
	a := New(Config{Size: 100, Alignment: 8, NoAssert: true})
	done := make(chan struct{})
	go func() {
		a.Free(make([]byte, 16))
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Free(external) returned under NoAssert, want it to block forever")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestNormalizeSizeFloorsToAlignment is a regression test for invariant 6:
// with UseKeys and IDSections both off and an Alignment wide enough that a
// free header's link fits within one alignment unit of a used header's
// size field, freeSize and usedSize collapse to the same value, so the
// "floor = freeSize - usedSize" term alone is zero. normalizeSize must
// still never drive a requested size to zero; it must floor at max(A,
// floor) exactly as spec section 3 invariant 6 requires.
func TestNormalizeSizeFloorsToAlignment(t *testing.T) {
	a := New(Config{Size: 1000, Alignment: 16})
	if got := a.lay.freeSize - a.lay.usedSize; got > 0 {
		t.Fatalf("fixture invalid: freeSize-usedSize = %d, want <= 0 to exercise the bug", got)
	}
	if got := a.normalizeSize(0); got != a.lay.alignment {
		t.Fatalf("normalizeSize(0) = %d, want %d", got, a.lay.alignment)
	}
}

// TestAllocateZeroSizeRoundTrip is a regression test for the same bug from
// the Allocate/Free side: under a Config where the floor alone used to
// collapse to zero, Allocate(0) must still return a non-degenerate section
// that Free can fully reclaim, matching spec section 8's round-trip
// property for any n, including n == 0.
func TestAllocateZeroSizeRoundTrip(t *testing.T) {
	a := New(Config{Size: 1000, Alignment: 16})
	before := a.LargestFree()

	b, err := a.Allocate(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Fatal("Allocate(0) returned a zero-length content slice, want a real section with at least one alignment unit of content")
	}
	if !a.IsIntact() {
		t.Fatal("heap not intact after Allocate(0)")
	}
	if got := a.Stats().Allocations; got != 1 {
		t.Fatalf("Allocations = %d, want 1", got)
	}

	if err := a.Free(b); err != nil {
		t.Fatal(err)
	}
	if got := a.Stats().Allocations; got != 0 {
		t.Fatalf("Allocations after Free = %d, want 0: the section must have been reclaimed, not stuck used forever", got)
	}
	if got := a.LargestFree(); got != before {
		t.Fatalf("LargestFree after round trip = %d, want %d", got, before)
	}
}

// TestFreeNilIsNoOp is a regression test for Free's own short-circuit,
// which used to treat any zero-length slice as "nothing to free" instead
// of only a true nil, matching the nil checks Allocate/Reallocate already
// make. A nil content pointer is the only case Free may silently ignore.
func TestFreeNilIsNoOp(t *testing.T) {
	a := newTestAllocator(1000)
	if err := a.Free(nil); err != nil {
		t.Fatalf("Free(nil) = %v, want nil", err)
	}
}

// TestTrackStatsAllocatePreCheck is spec section 7's one non-terminal
// exception: with Config.TrackStats set, an obviously oversized request
// returns nil, nil without ever reaching Handler.
func TestTrackStatsAllocatePreCheck(t *testing.T) {
	a := New(Config{Size: 1000, Alignment: 8, TrackStats: true})
	handlerCalled := false
	a.handler = func(*Error) { handlerCalled = true }

	b, err := a.Allocate(10000)
	if b != nil || err != nil {
		t.Fatalf("Allocate(oversized) = (%v, %v), want (nil, nil)", b, err)
	}
	if handlerCalled {
		t.Fatal("Handler was invoked for a TrackStats pre-check rejection, want no Handler call")
	}

	// A request that does fit must still succeed normally.
	if _, err := a.Allocate(16); err != nil {
		t.Fatalf("Allocate(16) after pre-check rejection: %v", err)
	}
}

// TestTrackStatsReallocatePreCheck mirrors the Allocate case for
// Reallocate, and also checks that the pre-check never rejects a shrink or
// no-op resize, which need no new free space at all.
func TestTrackStatsReallocatePreCheck(t *testing.T) {
	a := New(Config{Size: 1000, Alignment: 8, TrackStats: true})

	b, err := a.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}

	// Shrinking needs no new free space at all; the pre-check must never
	// reject it even though largestFree alone may be far smaller than 32.
	if r, err := a.Reallocate(b, 32); err != nil || r == nil {
		t.Fatalf("shrink under TrackStats: (%v, %v), want a non-nil slice and nil error", r, err)
	}

	handlerCalled := false
	a.handler = func(*Error) { handlerCalled = true }

	if got, err := a.Reallocate(b, 10000); got != nil || err != nil {
		t.Fatalf("Reallocate(oversized) = (%v, %v), want (nil, nil)", got, err)
	}
	if handlerCalled {
		t.Fatal("Handler was invoked for a TrackStats pre-check rejection, want no Handler call")
	}
}

func TestReinitDiscardsState(t *testing.T) {
	a := newTestAllocator(1000)
	if _, err := a.Allocate(100); err != nil {
		t.Fatal(err)
	}
	a.Reinit()
	if got := a.Stats().Allocations; got != 0 {
		t.Fatalf("allocations after Reinit = %d, want 0", got)
	}
	if !a.IsIntact() {
		t.Fatal("heap not intact after Reinit")
	}
}
