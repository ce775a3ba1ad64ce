package testutil

import "sync"

// FixedIDs returns predetermined offline IDs for testing.
//
// This enables deterministic queue contents and golden output comparison.
// Tests provide a known sequence of IDs and verify exact results.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedIDs("sale-1", "sale-2")
//	gen.Next() // "sale-1"
//	gen.Next() // "sale-2"
//	gen.Next() // panic: all ids exhausted
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Next returns the next predetermined ID.
//
// Panics when all IDs have been consumed. This is a fail-fast approach:
// a test consuming more IDs than it declared is a test bug.
func (g *FixedIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("testutil: all fixed IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
