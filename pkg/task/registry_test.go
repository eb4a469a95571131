package task

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type fixedClock uint64

func (c fixedClock) Height() uint64 { return uint64(c) }

func newTestRegistry() (*Registry, *MemStore) {
	store := NewMemStore()
	return NewRegistry(store, fixedClock(1)), store
}

func mustList(t *testing.T, r *Registry) []ID {
	t.Helper()
	ids, _, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return ids
}

func TestRegistryScenario(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()

	n, err := r.Create(ctx, "1", 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.Kind != KindCreated || n.Who != "1" || n.TaskID != 1 {
		t.Errorf("create notification = %+v", n)
	}

	ids, listed, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(ids, []ID{1}) {
		t.Errorf("List = %v, want [1]", ids)
	}
	if listed.Kind != KindListed || !slices.Equal(listed.TaskIDs, []ID{1}) {
		t.Errorf("list notification = %+v, want Listed([1])", listed)
	}

	if _, err := r.Create(ctx, "1", 1); !errors.Is(err, ErrTaskAlreadyExists) {
		t.Errorf("second Create: got %v, want ErrTaskAlreadyExists", err)
	}
	if _, err := r.Remove(ctx, "2", 1); !errors.Is(err, ErrWrongOwner) {
		t.Errorf("Remove by non-owner: got %v, want ErrWrongOwner", err)
	}

	n, err = r.Remove(ctx, "1", 1)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n.Kind != KindRemoved || n.Who != "1" || n.TaskID != 1 {
		t.Errorf("remove notification = %+v", n)
	}

	ids, listed, err = r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("List after remove = %v, want []", ids)
	}
	if listed.TaskIDs == nil {
		t.Error("empty listing should carry a non-nil slice")
	}
}

func TestRegistryCreateStoresOwnerAndHeight(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	r := NewRegistry(store, fixedClock(42))

	if _, err := r.Create(ctx, "alice", 7); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := r.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Owner != "alice" {
		t.Errorf("Owner = %q, want alice", got.Owner)
	}
	if got.CreatedAt != 42 {
		t.Errorf("CreatedAt = %d, want 42", got.CreatedAt)
	}
	if !slices.Contains(mustList(t, r), 7) {
		t.Error("List should contain 7")
	}
}

func TestRegistryDuplicateCreateLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	r := NewRegistry(store, fixedClock(1))

	if _, err := r.Create(ctx, "alice", 3); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before, _ := store.Get(ctx, 3)

	r = NewRegistry(store, fixedClock(9))
	for i := 0; i < 3; i++ {
		n, err := r.Create(ctx, "bob", 3)
		if !errors.Is(err, ErrTaskAlreadyExists) {
			t.Fatalf("Create #%d: got %v, want ErrTaskAlreadyExists", i, err)
		}
		if n.Kind != "" {
			t.Errorf("failed Create returned notification %+v", n)
		}
	}

	after, _ := store.Get(ctx, 3)
	if *after != *before {
		t.Errorf("task changed: before %+v, after %+v", before, after)
	}
	if c, _ := store.Count(ctx); c != 1 {
		t.Errorf("Count = %d, want 1", c)
	}
}

func TestRegistryRemoveMissing(t *testing.T) {
	r, _ := newTestRegistry()
	for _, caller := range []string{"alice", "bob", ""} {
		_, err := r.Remove(context.Background(), caller, 99)
		if !errors.Is(err, ErrTaskDoesNotExist) {
			t.Errorf("Remove(%q, 99): got %v, want ErrTaskDoesNotExist", caller, err)
		}
	}
}

func TestRegistryRemoveWrongOwnerKeepsTask(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry()
	if _, err := r.Create(ctx, "alice", 5); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// No normalization: case and whitespace variants are different identities.
	for _, caller := range []string{"bob", "Alice", "alice "} {
		n, err := r.Remove(ctx, caller, 5)
		if !errors.Is(err, ErrWrongOwner) {
			t.Errorf("Remove(%q): got %v, want ErrWrongOwner", caller, err)
		}
		if n.Kind != "" {
			t.Errorf("failed Remove returned notification %+v", n)
		}
	}

	got, err := store.Get(ctx, 5)
	if err != nil {
		t.Fatalf("task should still exist: %v", err)
	}
	if got.Owner != "alice" || got.CreatedAt != 1 {
		t.Errorf("task changed: %+v", got)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()

	if _, err := r.Create(ctx, "A", 7); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Remove(ctx, "A", 7); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if slices.Contains(mustList(t, r), 7) {
		t.Error("List should not contain 7 after removal")
	}

	// The ID is free again.
	if _, err := r.Create(ctx, "B", 7); err != nil {
		t.Fatalf("re-Create: %v", err)
	}
}

func TestRegistryListEveryIDOnce(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	want := []ID{0, 2, 9, 4294967295}
	for _, id := range want {
		if _, err := r.Create(ctx, "alice", id); err != nil {
			t.Fatalf("Create %d: %v", id, err)
		}
	}

	ids, n, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(ids, want) {
		t.Errorf("List = %v, want %v", ids, want)
	}
	if !slices.Equal(n.TaskIDs, ids) {
		t.Errorf("Listed notification %v differs from result %v", n.TaskIDs, ids)
	}
}

func TestNotificationSourceAndContent(t *testing.T) {
	created := Notification{Kind: KindCreated, Who: "alice", TaskID: 3}
	if created.Source() != "alice" {
		t.Errorf("Source = %q, want alice", created.Source())
	}
	if created.Content()["task_id"] != ID(3) {
		t.Errorf("Content = %v", created.Content())
	}

	listed := Notification{Kind: KindListed}
	if listed.Source() != ListSource {
		t.Errorf("Source = %q, want %q", listed.Source(), ListSource)
	}
	ids, ok := listed.Content()["task_ids"].([]ID)
	if !ok || ids == nil {
		t.Errorf("listed content = %v", listed.Content())
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("4294967295")
	if err != nil || id != 4294967295 {
		t.Errorf("ParseID max = %d, %v", id, err)
	}
	for _, bad := range []string{"", "-1", "4294967296", "x"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) should fail", bad)
		}
	}
}

// racingStore lets another owner remove and re-create a task just before
// the next Delete reaches the underlying store.
type racingStore struct {
	*MemStore
	interleave func()
}

func (s *racingStore) Delete(ctx context.Context, id ID, owner string) error {
	if f := s.interleave; f != nil {
		s.interleave = nil
		f()
	}
	return s.MemStore.Delete(ctx, id, owner)
}

func TestRegistryRemoveSparesRecreatedTask(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemStore: NewMemStore()}
	r := NewRegistry(store, fixedClock(1))
	if _, err := r.Create(ctx, "alice", 1); err != nil {
		t.Fatalf("Create: %v", err)
	}

	store.interleave = func() {
		if err := store.MemStore.Delete(ctx, 1, "alice"); err != nil {
			t.Fatalf("concurrent Delete: %v", err)
		}
		if err := store.MemStore.Insert(ctx, &Task{ID: 1, Owner: "bob", CreatedAt: 2}); err != nil {
			t.Fatalf("concurrent Insert: %v", err)
		}
	}
	n, err := r.Remove(ctx, "alice", 1)
	if !errors.Is(err, ErrWrongOwner) {
		t.Errorf("Remove: got %v, want ErrWrongOwner", err)
	}
	if n.Kind != "" {
		t.Errorf("failed Remove returned notification %+v", n)
	}
	got, err := store.Get(ctx, 1)
	if err != nil || got.Owner != "bob" {
		t.Errorf("bob's task = %+v, %v", got, err)
	}
}

func TestMemStoreHeightSurvivesRemoval(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	r := NewRegistry(store, fixedClock(5))
	if _, err := r.Create(ctx, "alice", 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Remove(ctx, "alice", 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if h, _ := store.LatestHeight(ctx); h != 5 {
		t.Errorf("LatestHeight = %d, want 5", h)
	}
	store.RecordHeight(ctx, 3)
	if h, _ := store.LatestHeight(ctx); h != 5 {
		t.Errorf("RecordHeight(3) lowered height to %d", h)
	}
}
