package mcheap

import (
	"sync"
	"testing"
)

func TestGuardedConcurrentAllocateFree(t *testing.T) {
	g := NewGuarded(New(Config{Size: 1 << 16, Alignment: 8}))

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				b, err := g.Allocate(16)
				if err != nil {
					continue
				}
				for j := range b {
					b[j] = byte(i)
				}
				if err := g.Free(b); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	if !g.IsIntact() {
		t.Fatal("heap not intact after concurrent use")
	}
	if got := g.Stats().Allocations; got != 0 {
		t.Fatalf("allocations = %d, want 0", got)
	}
}
