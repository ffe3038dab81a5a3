package optimistic

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/chatsync/internal/model"
)

// IDGenerator produces the unique part of a temp id.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 suffixes, so temp ids sort
// by creation time.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined suffixes for deterministic tests.
type FixedGenerator struct {
	mu     sync.Mutex
	values []string
	idx    int
}

// NewFixedGenerator creates a generator that returns values in order.
func NewFixedGenerator(values ...string) *FixedGenerator {
	return &FixedGenerator{values: values}
}

// Generate returns the next predetermined value.
// Panics when exhausted: the test created more temps than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.values) {
		panic("FixedGenerator: all values exhausted")
	}
	v := g.values[g.idx]
	g.idx++
	return v
}

func newTempID(gen IDGenerator) string {
	return model.TempPrefix + gen.Generate()
}
