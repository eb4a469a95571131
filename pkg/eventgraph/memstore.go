package eventgraph

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-process EventStore. It keeps the same hash chain as
// PgStore but loses it on exit.
type MemStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) EnsureTable(context.Context) error { return nil }

// Append adds a new event at the head of the chain.
func (s *MemStore) Append(_ context.Context, eventType, source string, content map[string]any) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevHash := ""
	if n := len(s.events); n > 0 {
		prevHash = s.events[n-1].Hash
	}
	e, _, err := newEvent(prevHash, eventType, source, content)
	if err != nil {
		return nil, err
	}
	s.events = append(s.events, *e)
	return e, nil
}

// Get retrieves a single event by ID.
func (s *MemStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.events {
		if s.events[i].ID == id {
			e := s.events[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("get event %s: %w", id, ErrEventNotFound)
}

// Recent returns the most recent events, newest first.
func (s *MemStore) Recent(_ context.Context, limit int) ([]Event, error) {
	return s.newestFirst(limit, func(*Event) bool { return true }), nil
}

// ByType returns events of one type, newest first.
func (s *MemStore) ByType(_ context.Context, eventType string, limit int) ([]Event, error) {
	return s.newestFirst(limit, func(e *Event) bool { return e.Type == eventType }), nil
}

// Since returns events appended after afterID, oldest first.
// An unknown afterID yields no events.
func (s *MemStore) Since(_ context.Context, afterID string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	found := false
	for _, e := range s.events {
		if found {
			if len(out) >= limit {
				break
			}
			out = append(out, e)
		} else if e.ID == afterID {
			found = true
		}
	}
	return out, nil
}

func (s *MemStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// VerifyChain walks the chain from the first event and checks every link.
func (s *MemStore) VerifyChain(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prevHash := ""
	for i := range s.events {
		if err := verifyLink(i, &s.events[i], prevHash, nil); err != nil {
			return err
		}
		prevHash = s.events[i].Hash
	}
	return nil
}

func (s *MemStore) newestFirst(limit int, keep func(*Event) bool) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(&s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	return out
}
