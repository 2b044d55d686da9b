package mcheap

import "sync"

// Guarded wraps an Allocator with a mutex held for the full duration of
// every call, as section 5's concurrency note requires of any multi-
// threaded wrapper: acquire at entry, release at return, never released
// across the call boundary. The core Allocator itself stays single-
// threaded and lock-free.
type Guarded struct {
	mu sync.Mutex
	a  *Allocator
}

// NewGuarded wraps an existing Allocator. The Allocator must not be used
// directly, or from any other Guarded, for as long as this one is in use.
// Caller-identity capture, if enabled, will report Guarded's own call
// sites rather than the original caller's, one frame removed.
func NewGuarded(a *Allocator) *Guarded {
	return &Guarded{a: a}
}

func (g *Guarded) Allocate(size int) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.Allocate(size)
}

func (g *Guarded) Calloc(size int) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.Calloc(size)
}

func (g *Guarded) Reallocate(p []byte, n int) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.Reallocate(p, n)
}

func (g *Guarded) Free(b []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.Free(b)
}

func (g *Guarded) Contains(b []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.Contains(b)
}

func (g *Guarded) LargestFree() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.LargestFree()
}

func (g *Guarded) IsIntact() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.IsIntact()
}

func (g *Guarded) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.a.Stats()
}
