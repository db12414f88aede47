package users

import (
	"context"
	"slices"
	"sync"
)

// MemoryRegistry keeps subscribers in process memory.
type MemoryRegistry struct {
	mu  sync.Mutex
	ids []string
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return new(MemoryRegistry)
}

// Add inserts id unless it is already present.
func (r *MemoryRegistry) Add(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !slices.Contains(r.ids, id) {
		r.ids = append(r.ids, id)
	}

	return nil
}

// Remove deletes id.
func (r *MemoryRegistry) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids = slices.DeleteFunc(r.ids, func(existing string) bool { return existing == id })

	return nil
}

// Clear deletes every id.
func (r *MemoryRegistry) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids = nil

	return nil
}

// List returns a copy of the ids.
func (r *MemoryRegistry) List(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.ids), nil
}

// Close is a no-op.
func (r *MemoryRegistry) Close() error {
	return nil
}
