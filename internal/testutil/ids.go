package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates "0001", "0002", ... for temp ids.
//
// Unlike optimistic.FixedGenerator it never runs out, which suits scenario
// files that do not declare their ids up front.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	mu sync.Mutex
	n  int
}

// NewSequentialIDs creates a generator whose first value is "0001".
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%04d", g.n)
}
