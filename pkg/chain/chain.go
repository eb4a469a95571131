// Package chain provides the block height that tasks are stamped with.
// A Counter holds the height; a Producer advances it on a fixed interval.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Counter is a monotonic block height safe for concurrent use.
type Counter struct {
	h atomic.Uint64
}

// NewCounter creates a Counter starting at genesis.
func NewCounter(genesis uint64) *Counter {
	c := &Counter{}
	c.h.Store(genesis)
	return c
}

// Height returns the current height.
func (c *Counter) Height() uint64 { return c.h.Load() }

// Advance moves to the next block and returns its height.
func (c *Counter) Advance() uint64 { return c.h.Add(1) }

// Seed raises the height to h. It never lowers it.
func (c *Counter) Seed(h uint64) {
	for {
		cur := c.h.Load()
		if h <= cur || c.h.CompareAndSwap(cur, h) {
			return
		}
	}
}

// HeightStore persists the highest height reached, so a restarted process
// resumes from it rather than from whatever records happen to survive.
type HeightStore interface {
	LatestHeight(ctx context.Context) (uint64, error)
	RecordHeight(ctx context.Context, h uint64) error
}

// Resume creates a Counter at genesis raised to the height in store.
func Resume(ctx context.Context, store HeightStore, genesis uint64) (*Counter, error) {
	h, err := store.LatestHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume height: %w", err)
	}
	c := NewCounter(genesis)
	c.Seed(h)
	return c, nil
}

// Producer advances a Counter once per interval.
type Producer struct {
	counter  *Counter
	interval time.Duration
	store    HeightStore
	logger   *slog.Logger
}

// NewProducer creates a Producer for counter. When store is non-nil each
// new height is recorded in it.
func NewProducer(counter *Counter, interval time.Duration, store HeightStore, logger *slog.Logger) *Producer {
	return &Producer{counter: counter, interval: interval, store: store, logger: logger}
}

// Run produces blocks until ctx is cancelled.
func (p *Producer) Run(ctx context.Context) {
	p.logger.Info("chain: producing blocks",
		slog.Duration("interval", p.interval),
		slog.Uint64("height", p.counter.Height()))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("chain: stopped", slog.Uint64("height", p.counter.Height()))
			return
		case <-ticker.C:
			h := p.counter.Advance()
			p.logger.Debug("chain: block", slog.Uint64("height", h))
			if p.store == nil {
				continue
			}
			if err := p.store.RecordHeight(ctx, h); err != nil {
				p.logger.Warn("chain: record height", slog.Uint64("height", h), slog.Any("err", err))
			}
		}
	}
}
