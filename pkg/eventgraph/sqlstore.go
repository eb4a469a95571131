package eventgraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type sqlDialect struct {
	schema string
	head   string // selects the hash of the newest event
}

var sqlDialects = map[string]sqlDialect{
	"sqlite": {
		schema: `CREATE TABLE IF NOT EXISTS events (
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			id        TEXT NOT NULL UNIQUE,
			type      TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			source    TEXT NOT NULL,
			content   TEXT NOT NULL,
			hash      TEXT NOT NULL,
			prev_hash TEXT NOT NULL DEFAULT ''
		)`,
		head: `SELECT hash FROM events ORDER BY seq DESC LIMIT 1`,
	},
	"mysql": {
		schema: `CREATE TABLE IF NOT EXISTS events (
			seq       BIGINT AUTO_INCREMENT PRIMARY KEY,
			id        VARCHAR(36) NOT NULL UNIQUE,
			type      VARCHAR(64) NOT NULL,
			timestamp BIGINT NOT NULL,
			source    VARCHAR(255) NOT NULL,
			content   TEXT NOT NULL,
			hash      CHAR(64) NOT NULL,
			prev_hash VARCHAR(64) NOT NULL DEFAULT '',
			INDEX idx_events_type (type)
		)`,
		head: `SELECT hash FROM events ORDER BY seq DESC LIMIT 1 FOR UPDATE`,
	},
}

// SQLStore is a database/sql EventStore for SQLite and MySQL. Events are
// ordered by an autoincrement sequence; timestamps are Unix microseconds.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
}

// NewSQLStore wraps a database opened with driver "sqlite" or "mysql".
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	d, ok := sqlDialects[driver]
	if !ok {
		return nil, fmt.Errorf("event store: unsupported sql driver %q", driver)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

const sqlEventColumns = `id, type, timestamp, source, content, hash, prev_hash`

// EnsureTable creates the events table if it doesn't exist.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	return err
}

// Append creates and stores a new event, computing the hash chain.
func (s *SQLStore) Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var prevHash string
	err = tx.QueryRowContext(ctx, s.dialect.head).Scan(&prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	e, contentJSON, err := newEvent(prevHash, eventType, source, content)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, type, timestamp, source, content, hash, prev_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Timestamp.UnixMicro(), e.Source, string(contentJSON), e.Hash, e.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit event: %w", err)
	}
	return e, nil
}

// Get retrieves a single event by ID.
func (s *SQLStore) Get(ctx context.Context, id string) (*Event, error) {
	events, err := s.scanMany(ctx, `SELECT `+sqlEventColumns+` FROM events WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("get event %s: %w", id, ErrEventNotFound)
	}
	return &events[0], nil
}

// Recent returns the most recent events, newest first.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.scanMany(ctx, `SELECT `+sqlEventColumns+` FROM events ORDER BY seq DESC LIMIT ?`, limit)
}

// ByType returns events of one type, newest first.
func (s *SQLStore) ByType(ctx context.Context, eventType string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `SELECT `+sqlEventColumns+`
		FROM events WHERE type = ? ORDER BY seq DESC LIMIT ?`, eventType, limit)
}

// Since returns events appended after afterID, oldest first.
func (s *SQLStore) Since(ctx context.Context, afterID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `SELECT `+sqlEventColumns+`
		FROM events WHERE seq > (SELECT seq FROM events WHERE id = ?)
		ORDER BY seq ASC LIMIT ?`, afterID, limit)
}

// Count returns the total number of events.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// VerifyChain walks the entire chain in append order and verifies hash integrity.
func (s *SQLStore) VerifyChain(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqlEventColumns+` FROM events ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	defer rows.Close()

	prevHash := ""
	i := 0
	for rows.Next() {
		e, raw, err := scanSQLEvent(rows)
		if err != nil {
			return fmt.Errorf("verify chain scan row %d: %w", i, err)
		}
		if err := verifyLink(i, e, prevHash, raw); err != nil {
			return err
		}
		prevHash = e.Hash
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("verify chain rows: %w", err)
	}
	return nil
}

func (s *SQLStore) scanMany(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, _, err := scanSQLEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}

func scanSQLEvent(rows *sql.Rows) (*Event, []byte, error) {
	var (
		e       Event
		micros  int64
		content string
	)
	if err := rows.Scan(&e.ID, &e.Type, &micros, &e.Source, &content, &e.Hash, &e.PrevHash); err != nil {
		return nil, nil, err
	}
	e.Timestamp = time.UnixMicro(micros)
	if err := json.Unmarshal([]byte(content), &e.Content); err != nil {
		return nil, nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return &e, []byte(content), nil
}
