// Package host runs registry operations the way the execution host does:
// one at a time, with the resulting notification delivered to the event log.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tasking/pkg/actor"
	"tasking/pkg/eventgraph"
	"tasking/pkg/task"
)

// Dispatcher serialises registry operations and delivers their notifications.
type Dispatcher struct {
	mu       sync.Mutex
	registry *task.Registry
	actors   actor.Store
	events   eventgraph.EventStore
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry *task.Registry, actors actor.Store, events eventgraph.EventStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		actors:   actors,
		events:   events,
		logger:   logger,
	}
}

// Identify resolves a verified login subject to the caller's canonical
// identity, registering the actor on first use.
func (d *Dispatcher) Identify(ctx context.Context, subject string) (string, error) {
	a, err := d.actors.Register(ctx, subject)
	if err != nil {
		return "", fmt.Errorf("identify %s: %w", subject, err)
	}
	return a.ID, nil
}

// Create runs task creation for caller.
func (d *Dispatcher) Create(ctx context.Context, caller string, id task.ID) (task.Notification, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.registry.Create(ctx, caller, id)
	if err != nil {
		d.logger.Info("create rejected", slog.String("caller", caller), slog.Any("task_id", id), slog.Any("err", err))
		return n, err
	}
	d.deliver(ctx, n)
	return n, nil
}

// Remove runs task removal for caller.
func (d *Dispatcher) Remove(ctx context.Context, caller string, id task.ID) (task.Notification, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.registry.Remove(ctx, caller, id)
	if err != nil {
		d.logger.Info("remove rejected", slog.String("caller", caller), slog.Any("task_id", id), slog.Any("err", err))
		return n, err
	}
	d.deliver(ctx, n)
	return n, nil
}

// List enumerates task IDs. The listing is recorded as an event.
func (d *Dispatcher) List(ctx context.Context) ([]task.ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, n, err := d.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	d.deliver(ctx, n)
	return ids, nil
}

// Get returns a task record without emitting a notification.
func (d *Dispatcher) Get(ctx context.Context, id task.ID) (*task.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Get(ctx, id)
}

// deliver appends n to the event log. The operation has already committed,
// so a delivery failure is logged rather than returned.
func (d *Dispatcher) deliver(ctx context.Context, n task.Notification) {
	e, err := d.events.Append(ctx, string(n.Kind), n.Source(), n.Content())
	if err != nil {
		d.logger.Error("deliver notification", slog.String("kind", string(n.Kind)), slog.Any("err", err))
		return
	}
	d.logger.Debug("notification", slog.String("kind", e.Type), slog.String("event_id", e.ID))
}
