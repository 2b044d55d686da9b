package mcheap

import "testing"

func TestSprintf(t *testing.T) {
	a := newTestAllocator(1000)

	b, err := a.Sprintf("n=%d, s=%s", 42, "hi")
	if err != nil {
		t.Fatal(err)
	}

	want := "n=42, s=hi"
	if got := string(b); got != want {
		t.Fatalf("Sprintf content = %q, want %q", got, want)
	}
	if !a.Contains(b) {
		t.Fatal("Sprintf result does not live in the region")
	}
}

func TestSprintfMultipleCalls(t *testing.T) {
	a := newTestAllocator(1000)
	first, err := a.Sprintf("first")
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Sprintf("second call %d", 2)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != "first" {
		t.Fatalf("first = %q, want %q", first, "first")
	}
	if string(second) != "second call 2" {
		t.Fatalf("second = %q, want %q", second, "second call 2")
	}
}
