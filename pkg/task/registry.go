package task

import (
	"context"
	"fmt"
)

// Kind names a registry notification. It doubles as the event type.
type Kind string

const (
	KindCreated Kind = "task.created"
	KindRemoved Kind = "task.removed"
	KindListed  Kind = "task.listed"
)

// ListSource is the notification source recorded for listings, which are
// not attributed to a caller.
const ListSource = "registry"

// Notification describes a completed registry operation.
type Notification struct {
	Kind    Kind   `json:"kind"`
	Who     string `json:"who,omitempty"`
	TaskID  ID     `json:"task_id"`
	TaskIDs []ID   `json:"task_ids,omitempty"`
}

// Source returns the actor the notification is attributed to.
func (n Notification) Source() string {
	if n.Kind == KindListed {
		return ListSource
	}
	return n.Who
}

// Content returns the notification payload as event content.
func (n Notification) Content() map[string]any {
	if n.Kind == KindListed {
		ids := n.TaskIDs
		if ids == nil {
			ids = []ID{}
		}
		return map[string]any{"task_ids": ids}
	}
	return map[string]any{"task_id": n.TaskID}
}

// Clock reports the current chain height.
type Clock interface {
	Height() uint64
}

// Registry owns the task mapping and the legality rules for changing it.
// Callers must not run operations concurrently; the host serialises them.
type Registry struct {
	store Store
	clock Clock
}

// NewRegistry creates a Registry over store, stamping new tasks with clock.
func NewRegistry(store Store, clock Clock) *Registry {
	return &Registry{store: store, clock: clock}
}

// Create registers id as owned by caller.
func (r *Registry) Create(ctx context.Context, caller string, id ID) (Notification, error) {
	t := &Task{ID: id, Owner: caller, CreatedAt: r.clock.Height()}
	if err := r.store.Insert(ctx, t); err != nil {
		return Notification{}, fmt.Errorf("create task %d: %w", id, err)
	}
	return Notification{Kind: KindCreated, Who: caller, TaskID: id}, nil
}

// Remove deletes id on behalf of caller, who must own it.
// Existence is checked before ownership. The store performs the owner
// check and the delete as one step, so a task re-created by someone else
// in between is never removed.
func (r *Registry) Remove(ctx context.Context, caller string, id ID) (Notification, error) {
	if err := r.store.Delete(ctx, id, caller); err != nil {
		return Notification{}, fmt.Errorf("remove task %d: %w", id, err)
	}
	return Notification{Kind: KindRemoved, Who: caller, TaskID: id}, nil
}

// List returns every present task ID. Listing is itself a recorded event,
// so a Listed notification carrying the same IDs is returned alongside.
func (r *Registry) List(ctx context.Context) ([]ID, Notification, error) {
	ids, err := r.store.IDs(ctx)
	if err != nil {
		return nil, Notification{}, fmt.Errorf("list tasks: %w", err)
	}
	if ids == nil {
		ids = []ID{}
	}
	return ids, Notification{Kind: KindListed, TaskIDs: ids}, nil
}

// Get returns the stored record for id.
func (r *Registry) Get(ctx context.Context, id ID) (*Task, error) {
	t, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}
