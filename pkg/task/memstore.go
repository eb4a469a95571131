package task

import (
	"context"
	"slices"
	"sync"
)

// MemStore is an in-process task store.
type MemStore struct {
	mu     sync.RWMutex
	tasks  map[ID]Task
	height uint64
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{tasks: make(map[ID]Task)}
}

func (s *MemStore) EnsureTable(context.Context) error { return nil }

// Insert adds t unless its ID is taken.
func (s *MemStore) Insert(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return ErrTaskAlreadyExists
	}
	s.tasks[t.ID] = *t
	s.height = max(s.height, t.CreatedAt)
	return nil
}

// Get returns a copy of the task stored under id.
func (s *MemStore) Get(_ context.Context, id ID) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskDoesNotExist
	}
	return &t, nil
}

// Delete removes the task stored under id if owner owns it.
func (s *MemStore) Delete(_ context.Context, id ID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskDoesNotExist
	}
	if t.Owner != owner {
		return ErrWrongOwner
	}
	delete(s.tasks, id)
	return nil
}

// IDs returns the present IDs, sorted so listings are reproducible.
func (s *MemStore) IDs(context.Context) ([]ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ID, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks), nil
}

// LatestHeight returns the highest height recorded.
func (s *MemStore) LatestHeight(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, nil
}

func (s *MemStore) RecordHeight(_ context.Context, h uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height = max(s.height, h)
	return nil
}
