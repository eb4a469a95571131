package actor

import (
	"context"
	"errors"
	"time"
)

// Actor is a principal that can own tasks. Its ID is the canonical identity
// compared by the registry; Name is the login subject it was registered under.
type Actor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned when no actor matches.
var ErrNotFound = errors.New("actor not found")

// Store is the contract for actor persistence.
type Store interface {
	// Register creates or returns an existing actor. Idempotent:
	// matches on name.
	Register(ctx context.Context, name string) (*Actor, error)

	// Get returns an actor by ID.
	Get(ctx context.Context, id string) (*Actor, error)

	// ByName returns an actor by name.
	ByName(ctx context.Context, name string) (*Actor, error)

	// List returns all actors, oldest first.
	List(ctx context.Context) ([]Actor, error)

	// EnsureTable creates the actors table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}
