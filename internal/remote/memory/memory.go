// Package memory is an in-process remote.Store, used by tests and by the
// client when REMOTE_BACKEND=memory.
package memory

import (
	"context"
	"sync"

	"spesesync/internal/core"
	"spesesync/internal/remote"
)

type Store struct {
	mu      sync.RWMutex
	records map[string]core.Record
}

var _ remote.Store = (*Store)(nil)

func New(seed ...core.Record) *Store {
	s := &Store{records: make(map[string]core.Record, len(seed))}
	for _, r := range seed {
		s.records[r.ID] = r
	}
	return s
}

func (s *Store) Create(_ context.Context, r core.Record) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
	return r, nil
}

func (s *Store) Replace(_ context.Context, id string, r core.Record) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = id
	s.records[id] = r
	return r, nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *Store) List(_ context.Context, q remote.ListQuery) (remote.ListResult, error) {
	return remote.Paginate(s.All(), q), nil
}

// All returns every stored record in no particular order.
func (s *Store) All() []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

// Get returns the record with id, if present.
func (s *Store) Get(id string) (core.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}
