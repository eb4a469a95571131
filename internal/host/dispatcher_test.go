package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"tasking/pkg/actor"
	"tasking/pkg/eventgraph"
	"tasking/pkg/task"
)

type fixedClock uint64

func (c fixedClock) Height() uint64 { return uint64(c) }

type failingEvents struct {
	eventgraph.EventStore
}

func (failingEvents) Append(context.Context, string, string, map[string]any) (*eventgraph.Event, error) {
	return nil, errors.New("sink down")
}

func newTestDispatcher(events eventgraph.EventStore) *Dispatcher {
	reg := task.NewRegistry(task.NewMemStore(), fixedClock(1))
	return NewDispatcher(reg, actor.NewMemStore(), events, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func eventTypes(t *testing.T, events eventgraph.EventStore) []string {
	t.Helper()
	recent, err := events.Recent(context.Background(), 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	var types []string
	for i := len(recent) - 1; i >= 0; i-- {
		types = append(types, recent[i].Type)
	}
	return types
}

func TestDispatcherDeliversNotifications(t *testing.T) {
	ctx := context.Background()
	events := eventgraph.NewMemStore()
	d := newTestDispatcher(events)

	if _, err := d.Create(ctx, "1", 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ids, err := d.List(ctx)
	if err != nil || len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("List = %v, %v", ids, err)
	}
	if _, err := d.Remove(ctx, "1", 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	got := eventTypes(t, events)
	want := []string{"task.created", "task.listed", "task.removed"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	listed, _ := events.ByType(ctx, "task.listed", 1)
	if listed[0].Source != task.ListSource {
		t.Errorf("listed source = %q, want %q", listed[0].Source, task.ListSource)
	}
	if err := events.VerifyChain(ctx); err != nil {
		t.Errorf("VerifyChain: %v", err)
	}
}

func TestDispatcherFailuresEmitNothing(t *testing.T) {
	ctx := context.Background()
	events := eventgraph.NewMemStore()
	d := newTestDispatcher(events)

	if _, err := d.Create(ctx, "alice", 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := d.Create(ctx, "alice", 1); !errors.Is(err, task.ErrTaskAlreadyExists) {
			t.Errorf("Create dup = %v", err)
		}
		if _, err := d.Remove(ctx, "bob", 1); !errors.Is(err, task.ErrWrongOwner) {
			t.Errorf("Remove wrong owner = %v", err)
		}
		if _, err := d.Remove(ctx, "alice", 2); !errors.Is(err, task.ErrTaskDoesNotExist) {
			t.Errorf("Remove missing = %v", err)
		}
	}

	if n, _ := events.Count(ctx); n != 1 {
		t.Errorf("events = %d, want only the successful create", n)
	}
}

func TestDispatcherDeliveryFailureKeepsResult(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(failingEvents{eventgraph.NewMemStore()})

	if _, err := d.Create(ctx, "alice", 1); err != nil {
		t.Fatalf("Create should succeed despite sink failure: %v", err)
	}
	if _, err := d.Get(ctx, 1); err != nil {
		t.Errorf("task should be stored: %v", err)
	}
}

func TestDispatcherIdentify(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(eventgraph.NewMemStore())

	a1, err := d.Identify(ctx, "alice")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	a2, _ := d.Identify(ctx, "alice")
	b, _ := d.Identify(ctx, "bob")
	if a1 != a2 {
		t.Errorf("same subject resolved to %s and %s", a1, a2)
	}
	if a1 == b {
		t.Error("different subjects share an identity")
	}
}

func TestDispatcherSerialisesConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	events := eventgraph.NewMemStore()
	d := newTestDispatcher(events)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Create(ctx, "caller", 42); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d creates of the same id succeeded, want 1", wins)
	}
	if err := events.VerifyChain(ctx); err != nil {
		t.Errorf("VerifyChain: %v", err)
	}
}
