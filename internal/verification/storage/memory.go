package storage

import (
	"context"
	"sync"
	"time"

	"github.com/docverify/docverify-backend/pkg/errors"
)

type memoryEntry[T any] struct {
	value     T
	updatedAt time.Time
}

// MemoryStore keeps records in process memory. Records vanish on restart.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	kind    string
	records map[string]*memoryEntry[T]
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store for records of kind
func NewMemoryStore[T any](kind string) *MemoryStore[T] {
	return &MemoryStore[T]{
		kind:    kind,
		records: make(map[string]*memoryEntry[T]),
		now:     time.Now,
	}
}

// Get returns a copy of the record
func (s *MemoryStore[T]) Get(_ context.Context, id string) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records[id]
	if !ok {
		return nil, errors.NotFound(s.kind)
	}
	v := e.value
	return &v, nil
}

// Put stores a copy of value, replacing any existing record
func (s *MemoryStore[T]) Put(_ context.Context, id string, value *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = &memoryEntry[T]{value: *value, updatedAt: s.now()}
	return nil
}

// Update runs fn under the store's write lock
func (s *MemoryStore[T]) Update(_ context.Context, id string, fn func(*T) error) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[id]
	if !ok {
		return nil, errors.NotFound(s.kind)
	}

	v := e.value
	if err := fn(&v); err != nil {
		return nil, err
	}
	s.records[id] = &memoryEntry[T]{value: v, updatedAt: s.now()}

	out := v
	return &out, nil
}

// Delete removes a record
func (s *MemoryStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return errors.NotFound(s.kind)
	}
	delete(s.records, id)
	return nil
}

// Purge removes records last written before cutoff
func (s *MemoryStore[T]) Purge(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.records {
		if e.updatedAt.Before(cutoff) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
