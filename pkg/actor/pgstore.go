package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed actor store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the actors table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS actors (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS actors_name_idx ON actors(name)`)
	return err
}

// Register creates or returns an existing actor. Idempotent.
func (s *PgStore) Register(ctx context.Context, name string) (*Actor, error) {
	if a, err := s.ByName(ctx, name); err == nil {
		return a, nil
	}

	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO actors (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		id, name, now)
	if err != nil {
		return nil, fmt.Errorf("register actor %s: %w", name, err)
	}

	// Re-fetch to handle race conditions (ON CONFLICT DO NOTHING)
	a, err := s.ByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("register actor %s: re-fetch failed: %w", name, err)
	}
	return a, nil
}

// Get returns an actor by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Actor, error) {
	a, err := s.scanOne(ctx, `SELECT id, name, created_at FROM actors WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get actor %s: %w", id, err)
	}
	return a, nil
}

// ByName returns an actor by name.
func (s *PgStore) ByName(ctx context.Context, name string) (*Actor, error) {
	a, err := s.scanOne(ctx, `SELECT id, name, created_at FROM actors WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("actor by name %s: %w", name, err)
	}
	return a, nil
}

// List returns all actors.
func (s *PgStore) List(ctx context.Context) ([]Actor, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM actors ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var actors []Actor
	for rows.Next() {
		var a Actor
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func (s *PgStore) scanOne(ctx context.Context, query string, args ...any) (*Actor, error) {
	var a Actor
	err := s.pool.QueryRow(ctx, query, args...).Scan(&a.ID, &a.Name, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
