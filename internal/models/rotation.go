package models

import (
	"sync"

	"explorer/internal/types"
)

// Rotation is a round-robin cursor over a catalog, for call sites that want a
// single model instead of the full fan-out. Each instance keeps its own cursor.
type Rotation struct {
	mu      sync.Mutex
	catalog *Catalog
	next    int
}

func NewRotation(c *Catalog) *Rotation {
	return &Rotation{catalog: c}
}

// Next returns the model under the cursor and advances it, wrapping at the end.
func (r *Rotation) Next() (types.ModelDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.catalog.Len()
	if n == 0 {
		return types.ModelDescriptor{}, false
	}
	m := r.catalog.models[r.next%n]
	r.next = (r.next + 1) % n
	return m, true
}

// Reset moves the cursor back to the first model.
func (r *Rotation) Reset() {
	r.mu.Lock()
	r.next = 0
	r.mu.Unlock()
}
