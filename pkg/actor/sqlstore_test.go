package actor

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "actors.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLStore(db, "sqlite")
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	if err := s.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return s
}

func TestSQLStore_RegisterIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLStore(t)

	a1, err := s.Register(ctx, "alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	a2, err := s.Register(ctx, "alice")
	if err != nil {
		t.Fatalf("Register again: %v", err)
	}
	if a1.ID != a2.ID {
		t.Errorf("Register should return the existing actor: %s != %s", a1.ID, a2.ID)
	}
	if !a1.CreatedAt.Equal(a2.CreatedAt) {
		t.Errorf("CreatedAt changed: %s != %s", a1.CreatedAt, a2.CreatedAt)
	}

	got, err := s.Get(ctx, a1.ID)
	if err != nil || got.Name != "alice" {
		t.Errorf("Get = %v, %v", got, err)
	}
	if _, err := s.ByName(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ByName(nobody) = %v, want ErrNotFound", err)
	}

	if _, err := s.Register(ctx, "bob"); err != nil {
		t.Fatalf("Register bob: %v", err)
	}
	actors, err := s.List(ctx)
	if err != nil || len(actors) != 2 {
		t.Errorf("List = %v, %v", actors, err)
	}
}
