package store

import (
	"context"
	"sync"
)

// InMemoryGraphStore implements GraphStore in process memory. It keeps the
// encoded document rather than the Graph value so callers never share slices
// with the store.
type InMemoryGraphStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewInMemoryGraphStore creates an empty in-memory store.
func NewInMemoryGraphStore() *InMemoryGraphStore {
	return &InMemoryGraphStore{}
}

// Load decodes the last saved document.
func (s *InMemoryGraphStore) Load(ctx context.Context) (Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return Graph{}, ErrNotFound
	}
	return DecodeGraph(s.data)
}

// Save replaces the stored document.
func (s *InMemoryGraphStore) Save(ctx context.Context, g Graph) error {
	data, err := EncodeGraph(g)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}

// Close is a no-op.
func (s *InMemoryGraphStore) Close() error {
	return nil
}
