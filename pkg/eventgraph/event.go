package eventgraph

import (
	"context"
	"errors"
	"time"
)

// ErrEventNotFound is returned by Get for an unknown event ID.
var ErrEventNotFound = errors.New("event not found")

// Event is one entry of the hash-chained, append-only notification log.
type Event struct {
	ID        string         `json:"id"`        // UUID v7 (time-ordered)
	Type      string         `json:"type"`      // e.g. "task.created", "task.listed"
	Timestamp time.Time      `json:"timestamp"` // when the event was appended
	Source    string         `json:"source"`    // actor the event is attributed to
	Content   map[string]any `json:"content"`   // event payload
	Hash      string         `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string         `json:"prev_hash"` // hash chain link
}

// EventStore is the contract for event persistence.
type EventStore interface {
	Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
	ByType(ctx context.Context, eventType string, limit int) ([]Event, error)
	Since(ctx context.Context, afterID string, limit int) ([]Event, error)
	Count(ctx context.Context) (int, error)
	VerifyChain(ctx context.Context) error
	EnsureTable(ctx context.Context) error
}
