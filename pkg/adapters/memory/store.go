package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/questgraph/pkg/domain"
)

// Store implements ports.InstanceStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Save keeps a private copy of the record.
func (s *Store) Save(ctx context.Context, instanceID string, data []byte) error {
	copied := append([]byte(nil), data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[instanceID] = copied
	return nil
}

// Load returns a copy of the record so callers cannot mutate the store.
func (s *Store) Load(ctx context.Context, instanceID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[instanceID]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	return append([]byte(nil), data...), nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, instanceID)
	return nil
}

// List returns stored instance ids in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
