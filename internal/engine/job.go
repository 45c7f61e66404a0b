// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package engine

import (
	"context"
	"sync"
	"time"
)

// syncJob runs SyncAll on a ticker. It is idle until Start is called.
type syncJob struct {
	engine *SyncEngine

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSyncJob(engine *SyncEngine) *syncJob {
	return &syncJob{engine: engine}
}

// Start launches the periodic sync loop. It stops any previously running
// loop first, then calls SyncAll every configured interval until ctx is
// cancelled or Stop is called. Cycle errors are logged and swallowed: the
// next tick retries, and unauthorized backends have already been disabled by
// the cycle itself.
func (e *SyncEngine) Start(ctx context.Context) {
	interval := e.cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	j := e.job
	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				if err := e.SyncAll(jobCtx); err != nil {
					e.logger.Warn().
						Err(err).
						Str("func", "SyncEngine.Start").
						Msg("periodic sync cycle finished with errors")
				}
			}
		}
	}()
}

// Stop cancels the periodic loop and blocks until it has fully exited. Safe
// to call when the loop is not running.
func (e *SyncEngine) Stop() {
	e.job.Stop()
}

func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}
