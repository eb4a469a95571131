package task

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ID is the caller-chosen handle of a task.
type ID uint32

// ParseID parses a decimal task ID.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse task id %q: %w", s, err)
	}
	return ID(n), nil
}

// Task is a registry entry. Neither field changes after creation.
type Task struct {
	ID        ID     `json:"id"`
	Owner     string `json:"owner"`      // actor ID of the creator
	CreatedAt uint64 `json:"created_at"` // chain height at insertion
}

var (
	// ErrTaskAlreadyExists is returned when creating an ID that is present.
	ErrTaskAlreadyExists = errors.New("task already exists")
	// ErrTaskDoesNotExist is returned when removing or reading an absent ID.
	ErrTaskDoesNotExist = errors.New("task does not exist")
	// ErrWrongOwner is returned when a task is removed by someone other than its owner.
	ErrWrongOwner = errors.New("wrong task owner")
)

// Store is the contract for task persistence.
type Store interface {
	// Insert adds t. It returns ErrTaskAlreadyExists, without writing,
	// when t.ID is already present.
	Insert(ctx context.Context, t *Task) error

	// Get returns the task stored under id, or ErrTaskDoesNotExist.
	Get(ctx context.Context, id ID) (*Task, error)

	// Delete removes the task stored under id if owner owns it, in one
	// step. When nothing is removed it reports ErrTaskDoesNotExist for an
	// absent id and ErrWrongOwner otherwise.
	Delete(ctx context.Context, id ID, owner string) error

	// IDs returns every present ID in ascending order.
	IDs(ctx context.Context) ([]ID, error)

	Count(ctx context.Context) (int, error)

	// LatestHeight returns the highest chain height ever recorded: the
	// maximum of every inserted CreatedAt and every RecordHeight call,
	// including tasks removed since. 0 when nothing was recorded.
	LatestHeight(ctx context.Context) (uint64, error)

	// RecordHeight raises the recorded height to h. It never lowers it.
	RecordHeight(ctx context.Context, h uint64) error

	EnsureTable(ctx context.Context) error
}

// deleteMiss explains a conditional delete that removed nothing: the task
// is either gone or held by another owner.
func deleteMiss(ctx context.Context, s Store, id ID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrWrongOwner
}
