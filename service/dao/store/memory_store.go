package store

import (
	"cmp"
	"context"
	"sync"

	"github.com/viant/vigil/service/dao"
)

// MemoryStore is an in-memory dao.Snapshot. It keeps deep copies so callers
// cannot mutate the persisted state behind its back, which makes it behave
// like a durable backend in tests.
type MemoryStore[K cmp.Ordered, T any] struct {
	mu      sync.RWMutex
	records map[K]*T
	saves   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore[K cmp.Ordered, T any]() *MemoryStore[K, T] {
	return &MemoryStore[K, T]{records: make(map[K]*T)}
}

// Load returns a copy of the stored records.
func (s *MemoryStore[K, T]) Load(_ context.Context) (map[K]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return dao.Clone(s.records)
}

// SaveAll replaces the stored records with a copy of records.
func (s *MemoryStore[K, T]) SaveAll(_ context.Context, records map[K]*T) error {
	copied, err := dao.Clone(records)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = copied
	s.saves++
	return nil
}

// Saves returns how many times SaveAll succeeded.
func (s *MemoryStore[K, T]) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

var _ dao.Snapshot[string, struct{}] = (*MemoryStore[string, struct{}])(nil)
