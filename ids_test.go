package mcheap

import "testing"

func TestFindLeakTracksCallSite(t *testing.T) {
	a := New(Config{Size: 1000, Alignment: 8, IDSections: true})

	allocFromHere := func(n int) []byte {
		b, err := a.Allocate(n)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}

	for i := 0; i < 3; i++ {
		allocFromHere(8)
	}
	b, err := a.Allocate(8)
	if err != nil {
		t.Fatal(err)
	}
	_ = b

	id, count := a.FindLeak()
	if count != 3 {
		t.Fatalf("FindLeak count = %d, want 3", count)
	}
	if id.File == "" {
		t.Fatal("FindLeak returned an empty CallerID")
	}
}

func TestFindLeakWithoutIDSections(t *testing.T) {
	a := newTestAllocator(1000)
	if _, err := a.Allocate(8); err != nil {
		t.Fatal(err)
	}
	id, count := a.FindLeak()
	if count != 0 || id != (CallerID{}) {
		t.Fatalf("FindLeak = (%v, %d), want zero value", id, count)
	}
}

func TestList(t *testing.T) {
	a := New(Config{Size: 1000, Alignment: 8, IDSections: true})

	a1, err := a.Allocate(16)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := a.Allocate(32)
	if err != nil {
		t.Fatal(err)
	}

	first := a.List(0)
	if first.Size != len(a1) {
		t.Fatalf("List(0).Size = %d, want %d", first.Size, len(a1))
	}
	second := a.List(1)
	if second.Size != len(a2) {
		t.Fatalf("List(1).Size = %d, want %d", second.Size, len(a2))
	}

	if out := a.List(2); out.Size != 0 || out.Content != nil {
		t.Fatalf("List(2) = %+v, want zero value", out)
	}
}
