package actor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var sqlSchema = map[string]string{
	"sqlite": `CREATE TABLE IF NOT EXISTS actors (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	)`,
	"mysql": `CREATE TABLE IF NOT EXISTS actors (
		id         VARCHAR(36) PRIMARY KEY,
		name       VARCHAR(255) NOT NULL UNIQUE,
		created_at BIGINT NOT NULL
	)`,
}

// sqlInsert adds an actor unless the name is taken. Only the name conflict
// is tolerated; any other failure is an error.
var sqlInsert = map[string]string{
	"sqlite": `INSERT INTO actors (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
	"mysql":  `INSERT INTO actors (id, name, created_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE name = name`,
}

// SQLStore is a database/sql actor store for SQLite and MySQL.
// created_at is kept as Unix microseconds so both drivers scan it alike.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore wraps a database opened with driver "sqlite" or "mysql".
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	if _, ok := sqlSchema[driver]; !ok {
		return nil, fmt.Errorf("actor store: unsupported sql driver %q", driver)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// EnsureTable creates the actors table if it doesn't exist.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqlSchema[s.driver])
	return err
}

// Register creates or returns an existing actor. Idempotent.
func (s *SQLStore) Register(ctx context.Context, name string) (*Actor, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)
	if _, err := s.db.ExecContext(ctx, sqlInsert[s.driver], id, name, now.UnixMicro()); err != nil {
		return nil, fmt.Errorf("register actor %s: %w", name, err)
	}
	return s.ByName(ctx, name)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Actor, error) {
	a, err := s.scanOne(ctx, `SELECT id, name, created_at FROM actors WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get actor %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLStore) ByName(ctx context.Context, name string) (*Actor, error) {
	a, err := s.scanOne(ctx, `SELECT id, name, created_at FROM actors WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("actor by name %s: %w", name, err)
	}
	return a, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Actor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM actors ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var actors []Actor
	for rows.Next() {
		var a Actor
		var micros int64
		if err := rows.Scan(&a.ID, &a.Name, &micros); err != nil {
			return nil, err
		}
		a.CreatedAt = time.UnixMicro(micros)
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func (s *SQLStore) scanOne(ctx context.Context, query string, args ...any) (*Actor, error) {
	var a Actor
	var micros int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.Name, &micros)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.UnixMicro(micros)
	return &a, nil
}
