package mcheap

import "testing"

// TestIntegrityDetectsCorruption is spec scenario 7: stomping on the bytes
// immediately preceding a content pointer must be caught by IsIntact.
func TestIntegrityDetectsCorruption(t *testing.T) {
	a := New(Config{Size: 1000, Alignment: 8, UseKeys: true})
	b, err := a.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	if !a.IsIntact() {
		t.Fatal("heap not intact before corruption")
	}

	off := a.offsetOf(b)
	for i := 0; i < a.lay.usedSize; i++ {
		a.region[off+i] = 0xFF
	}

	if a.IsIntact() {
		t.Fatal("IsIntact() = true after header corruption, want false")
	}
}

func TestIntegrityNonKeyedDetectsBrokenTiling(t *testing.T) {
	a := newTestAllocator(1000)
	if _, err := a.Allocate(64); err != nil {
		t.Fatal(err)
	}

	// Corrupt the size field of the first section so the walker steps
	// outside the region.
	a.lay.setSizeAt(a.region, 0, len(a.region)*2)

	if a.IsIntact() {
		t.Fatal("IsIntact() = true after size-field corruption, want false")
	}
}

func TestCheckBeforeMutateCatchesFalseFree(t *testing.T) {
	a := New(Config{Size: 1000, Alignment: 8, TestEveryCall: true})
	b, err := a.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}

	var gotKind Kind
	a.handler = func(e *Error) { gotKind = e.Kind }

	// Free one byte into the content area instead of its start: still
	// inside the region, but not the start of a used section.
	if err := a.Free(b[1:]); err == nil {
		t.Fatal("Free(misaligned slice) returned nil error")
	}
	if gotKind != FalseFree {
		t.Fatalf("Kind = %v, want FalseFree", gotKind)
	}
}
