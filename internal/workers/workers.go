// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

// Package workers runs the engine's background jobs in a unified way: the
// periodic retention cleanup and any other task that should tick for the
// lifetime of an open vault.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/keyfold/keyfold/internal/logger"
)

// Worker is a background job that runs until its context is cancelled.
type Worker interface {
	Run(ctx context.Context)
}

// Periodic adapts a task function into a Worker that runs it on a fixed
// interval. Task errors are logged and swallowed; the next tick retries.
type Periodic struct {
	Name     string
	Interval time.Duration
	Task     func(ctx context.Context) error
	Logger   *logger.Logger
}

// Run implements [Worker]. It blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := p.Task(ctx); err != nil {
				p.Logger.Warn().
					Err(err).
					Str("func", "Periodic.Run").
					Str("worker", p.Name).
					Msg("background task failed")
			}
		}
	}
}

// Group runs several workers concurrently and waits for all of them to exit.
type Group struct {
	workers []Worker
}

// NewGroup aggregates workers into one runnable unit.
func NewGroup(workers ...Worker) *Group {
	return &Group{workers: workers}
}

// Run starts every worker in its own goroutine and blocks until all have
// returned, which happens when ctx is cancelled.
func (g *Group) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range g.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	wg.Wait()
}
