package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks and chain_height tables if they don't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id         BIGINT PRIMARY KEY,
			owner      TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chain_height (
			id     SMALLINT PRIMARY KEY CHECK (id = 1),
			height BIGINT NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO chain_height (id, height)
		SELECT 1, COALESCE(MAX(created_at), 0) FROM tasks
		ON CONFLICT (id) DO NOTHING`)
	return err
}

// Insert adds t and raises the recorded height in the same transaction.
// The primary key makes the existence check and the write a single
// statement.
func (s *PgStore) Insert(ctx context.Context, t *Task) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO tasks (id, owner, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		int64(t.ID), t.Owner, int64(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskAlreadyExists
	}
	if _, err := tx.Exec(ctx, pgRaiseHeight, int64(t.CreatedAt)); err != nil {
		return fmt.Errorf("record height: %w", err)
	}
	return tx.Commit(ctx)
}

const pgRaiseHeight = `UPDATE chain_height SET height = GREATEST(height, $1) WHERE id = 1`

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id ID) (*Task, error) {
	var (
		t         Task
		rawID     int64
		createdAt int64
	)
	err := s.pool.QueryRow(ctx, `SELECT id, owner, created_at FROM tasks WHERE id = $1`, int64(id)).
		Scan(&rawID, &t.Owner, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskDoesNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	t.ID = ID(rawID)
	t.CreatedAt = uint64(createdAt)
	return &t, nil
}

// Delete removes a task by ID if owner owns it.
func (s *PgStore) Delete(ctx context.Context, id ID, owner string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND owner = $2`, int64(id), owner)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return deleteMiss(ctx, s, id)
	}
	return nil
}

// IDs returns all task IDs in ascending order.
func (s *PgStore) IDs(ctx context.Context) ([]ID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// Count returns total task count.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// LatestHeight returns the highest height recorded.
func (s *PgStore) LatestHeight(ctx context.Context) (uint64, error) {
	var h int64
	err := s.pool.QueryRow(ctx, `SELECT height FROM chain_height WHERE id = 1`).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("latest height: %w", err)
	}
	return uint64(h), nil
}

// RecordHeight raises the recorded height to h.
func (s *PgStore) RecordHeight(ctx context.Context, h uint64) error {
	if _, err := s.pool.Exec(ctx, pgRaiseHeight, int64(h)); err != nil {
		return fmt.Errorf("record height: %w", err)
	}
	return nil
}

func scanIDs(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]ID, error) {
	ids := []ID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return ids, nil
}
