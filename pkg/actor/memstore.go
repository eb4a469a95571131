package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process actor store.
type MemStore struct {
	mu     sync.RWMutex
	actors []Actor
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) EnsureTable(context.Context) error { return nil }

// Register returns the actor named name, creating it on first use.
func (s *MemStore) Register(_ context.Context, name string) (*Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.actors {
		if a.Name == name {
			return &a, nil
		}
	}
	a := Actor{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		CreatedAt: time.Now().Truncate(time.Microsecond),
	}
	s.actors = append(s.actors, a)
	return &a, nil
}

func (s *MemStore) Get(_ context.Context, id string) (*Actor, error) {
	return s.find(func(a Actor) bool { return a.ID == id }, "get actor "+id)
}

func (s *MemStore) ByName(_ context.Context, name string) (*Actor, error) {
	return s.find(func(a Actor) bool { return a.Name == name }, "actor by name "+name)
}

func (s *MemStore) List(context.Context) ([]Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Actor, len(s.actors))
	copy(out, s.actors)
	return out, nil
}

func (s *MemStore) find(match func(Actor) bool, op string) (*Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.actors {
		if match(a) {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
}
