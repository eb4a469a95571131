package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	driver string
	schema []string
	insert string // adds a task, affecting no rows on a duplicate id
	seed   string // creates the chain_height row if missing
	raise  string // raises chain_height to the argument
}

var dialects = map[string]dialect{
	"sqlite": {
		driver: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS tasks (
				id         INTEGER PRIMARY KEY,
				owner      TEXT NOT NULL,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner)`,
			`CREATE TABLE IF NOT EXISTS chain_height (
				id     INTEGER PRIMARY KEY CHECK (id = 1),
				height INTEGER NOT NULL
			)`,
		},
		insert: `INSERT INTO tasks (id, owner, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		seed:   `INSERT INTO chain_height (id, height) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
		raise:  `UPDATE chain_height SET height = MAX(height, ?) WHERE id = 1`,
	},
	"mysql": {
		driver: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS tasks (
				id         BIGINT UNSIGNED PRIMARY KEY,
				owner      VARCHAR(255) NOT NULL,
				created_at BIGINT UNSIGNED NOT NULL,
				INDEX idx_tasks_owner (owner)
			)`,
			`CREATE TABLE IF NOT EXISTS chain_height (
				id     TINYINT UNSIGNED PRIMARY KEY,
				height BIGINT UNSIGNED NOT NULL
			)`,
		},
		// A duplicate id updates nothing and reports zero rows affected;
		// every other failure, such as an over-long owner, is an error.
		insert: `INSERT INTO tasks (id, owner, created_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE id = id`,
		seed:   `INSERT INTO chain_height (id, height) VALUES (1, 0) ON DUPLICATE KEY UPDATE id = id`,
		raise:  `UPDATE chain_height SET height = GREATEST(height, ?) WHERE id = 1`,
	},
}

// SQLStore persists tasks through database/sql, on SQLite
// (modernc.org/sqlite) or MySQL (github.com/go-sql-driver/mysql).
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLStore wraps a database opened with driver "sqlite" or "mysql".
// The caller owns db.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("task store: unsupported sql driver %q", driver)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// EnsureTable creates the tasks and chain_height tables if they don't
// exist. The recorded height starts at the highest created_at present.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.seed); err != nil {
		return fmt.Errorf("seed chain height: %w", err)
	}
	var h int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(created_at), 0) FROM tasks`).Scan(&h); err != nil {
		return fmt.Errorf("seed chain height: %w", err)
	}
	return s.RecordHeight(ctx, uint64(h))
}

// Insert adds t and raises the recorded height in the same transaction.
func (s *SQLStore) Insert(ctx context.Context, t *Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.dialect.insert, int64(t.ID), t.Owner, int64(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskAlreadyExists
	}
	if _, err := tx.ExecContext(ctx, s.dialect.raise, int64(t.CreatedAt)); err != nil {
		return fmt.Errorf("record height: %w", err)
	}
	return tx.Commit()
}

// Get retrieves a task by ID.
func (s *SQLStore) Get(ctx context.Context, id ID) (*Task, error) {
	var (
		t         Task
		rawID     int64
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, owner, created_at FROM tasks WHERE id = ?`, int64(id)).
		Scan(&rawID, &t.Owner, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLStore) Delete(ctx context.Context, id ID, owner string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner = ?`, int64(id), owner)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return deleteMiss(ctx, s, id)
	}
	return nil
}

// IDs returns all task IDs in ascending order.
func (s *SQLStore) IDs(ctx context.Context) ([]ID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// Count returns total task count.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// LatestHeight returns the highest height recorded.
func (s *SQLStore) LatestHeight(ctx context.Context) (uint64, error) {
	var h int64
	err := s.db.QueryRowContext(ctx, `SELECT height FROM chain_height WHERE id = 1`).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("latest height: %w", err)
	}
	return uint64(h), nil
}

// RecordHeight raises the recorded height to h.
func (s *SQLStore) RecordHeight(ctx context.Context, h uint64) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.raise, int64(h)); err != nil {
		return fmt.Errorf("record height: %w", err)
	}
	return nil
}
