package eventgraph

import (
	"context"
	"errors"
	"testing"
)

func appendN(t *testing.T, s EventStore, types ...string) []*Event {
	t.Helper()
	var out []*Event
	for i, typ := range types {
		e, err := s.Append(context.Background(), typ, "alice", map[string]any{"task_id": i})
		if err != nil {
			t.Fatalf("Append %s: %v", typ, err)
		}
		out = append(out, e)
	}
	return out
}

func TestMemStoreChain(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	events := appendN(t, s, "task.created", "task.listed", "task.removed")

	if events[0].PrevHash != "" {
		t.Errorf("first event PrevHash = %q, want empty", events[0].PrevHash)
	}
	for i := 1; i < len(events); i++ {
		if events[i].PrevHash != events[i-1].Hash {
			t.Errorf("event %d not linked to its predecessor", i)
		}
	}
	if err := s.VerifyChain(ctx); err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}

	s.events[1].Content["task_id"] = 99
	if err := s.VerifyChain(ctx); err == nil {
		t.Fatal("VerifyChain should detect tampered content")
	}
}

func TestMemStoreQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	events := appendN(t, s, "task.created", "task.listed", "task.created", "task.removed")

	recent, _ := s.Recent(ctx, 2)
	if len(recent) != 2 || recent[0].ID != events[3].ID || recent[1].ID != events[2].ID {
		t.Errorf("Recent = %v", recent)
	}

	created, _ := s.ByType(ctx, "task.created", 10)
	if len(created) != 2 || created[0].ID != events[2].ID {
		t.Errorf("ByType = %v", created)
	}

	since, _ := s.Since(ctx, events[1].ID, 10)
	if len(since) != 2 || since[0].ID != events[2].ID || since[1].ID != events[3].ID {
		t.Errorf("Since = %v", since)
	}
	if since, _ := s.Since(ctx, "unknown", 10); len(since) != 0 {
		t.Errorf("Since(unknown) = %v, want none", since)
	}

	got, err := s.Get(ctx, events[0].ID)
	if err != nil || got.Type != "task.created" {
		t.Errorf("Get = %v, %v", got, err)
	}
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Get(nope) = %v, want ErrEventNotFound", err)
	}
	if n, _ := s.Count(ctx); n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus(NewMemStore())
	a := bus.Subscribe()
	b := bus.Subscribe()
	if bus.Subscribers() != 2 {
		t.Fatalf("Subscribers = %d, want 2", bus.Subscribers())
	}

	e, err := bus.Append(context.Background(), "task.created", "alice", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	for _, ch := range []chan *Event{a, b} {
		select {
		case got := <-ch:
			if got.ID != e.ID {
				t.Errorf("subscriber got %s, want %s", got.ID, e.ID)
			}
		default:
			t.Error("subscriber received nothing")
		}
	}

	bus.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel should be closed")
	}
	if n, _ := bus.Count(context.Background()); n != 1 {
		t.Errorf("Count through bus = %d, want 1", n)
	}
}
