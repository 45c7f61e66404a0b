// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

// Package engine orchestrates replication between the local vault and its
// configured sync backends: push and pull cycles, per-backend watermarks,
// backend lifecycle, and the periodic sync job.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/keyfold/keyfold/internal/adapter"
	"github.com/keyfold/keyfold/internal/clock"
	"github.com/keyfold/keyfold/internal/config"
	"github.com/keyfold/keyfold/internal/events"
	"github.com/keyfold/keyfold/internal/keyring"
	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/resolver"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/models"
)

// AdapterFactory constructs a transport adapter for one backend record. The
// engine takes it as a dependency so tests can substitute a mock transport.
type AdapterFactory func(ctx context.Context, backend models.SyncBackend, timeout time.Duration, log *logger.Logger) (adapter.BackendAdapter, error)

// SyncEngine replicates one open vault against its sync backends. One engine
// exists per open vault; it holds no process-global state.
type SyncEngine struct {
	db       *store.DB
	clock    *clock.Clock
	resolver *resolver.Resolver
	keys     *keyring.Manager

	backends store.BackendRepository
	changes  store.ChangeLogRepository
	dirty    store.DirtyTableRepository
	rows     store.RowRepository
	pending  store.PendingColumnRepository

	bus    *events.Bus
	cfg    config.Sync
	logger *logger.Logger

	newAdapter AdapterFactory

	// applyMu serializes every application of remote changes to the local
	// database. Network fetches run concurrently across backends; applies do
	// not, so two pulls can never interleave partial batches.
	applyMu sync.Mutex

	backoffMu sync.Mutex
	backoffs  map[string]*backoffState

	job *syncJob
}

// Deps bundles the engine's constructor dependencies.
type Deps struct {
	DB       *store.DB
	Clock    *clock.Clock
	Resolver *resolver.Resolver
	Keys     *keyring.Manager

	Backends store.BackendRepository
	Changes  store.ChangeLogRepository
	Dirty    store.DirtyTableRepository
	Rows     store.RowRepository
	Pending  store.PendingColumnRepository

	Bus    *events.Bus
	Config config.Sync
	Logger *logger.Logger

	// NewAdapter defaults to adapter.New when nil.
	NewAdapter AdapterFactory
}

// New constructs a SyncEngine for one open vault.
func New(deps Deps) *SyncEngine {
	factory := deps.NewAdapter
	if factory == nil {
		factory = adapter.New
	}

	e := &SyncEngine{
		db:         deps.DB,
		clock:      deps.Clock,
		resolver:   deps.Resolver,
		keys:       deps.Keys,
		backends:   deps.Backends,
		changes:    deps.Changes,
		dirty:      deps.Dirty,
		rows:       deps.Rows,
		pending:    deps.Pending,
		bus:        deps.Bus,
		cfg:        deps.Config,
		logger:     deps.Logger,
		newAdapter: factory,
		backoffs:   make(map[string]*backoffState),
	}
	e.job = newSyncJob(e)
	return e
}

// SyncAll runs one full cycle against every enabled backend concurrently.
//
// Failures never short-circuit: each backend's cycle runs to completion and
// the errors are collected. An unauthorized backend is disabled and its error
// surfaced; an unavailable backend enters error-backoff and is retried on a
// later cycle.
func (e *SyncEngine) SyncAll(ctx context.Context) error {
	log := e.logger

	enabled, err := e.backends.ListEnabled(ctx, e.db)
	if err != nil {
		return err
	}
	if len(enabled) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, backend := range enabled {
		if e.inBackoff(backend.ID) {
			log.Debug().
				Str("func", "SyncEngine.SyncAll").
				Str("backend", backend.Name).
				Msg("backend in error-backoff, skipping cycle")
			continue
		}

		wg.Add(1)
		go func(backend models.SyncBackend) {
			defer wg.Done()

			cycleErr := e.syncBackend(ctx, backend)
			e.noteCycleResult(ctx, backend, cycleErr)
			if cycleErr != nil {
				mu.Lock()
				errs = append(errs, cycleErr)
				mu.Unlock()
			}
		}(backend)
	}
	wg.Wait()

	if finalizeErr := e.finalizeUploads(ctx); finalizeErr != nil {
		errs = append(errs, finalizeErr)
	}

	return errors.Join(errs...)
}

// syncBackend runs push, pull and pending-column reconciliation against one
// backend.
func (e *SyncEngine) syncBackend(ctx context.Context, backend models.SyncBackend) error {
	a, err := e.newAdapter(ctx, backend, e.cfg.RequestTimeout, e.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// A backend whose wrapped key is stale must not receive data encrypted
	// under a key its members cannot unwrap. Pull still runs: reading is
	// always safe.
	if !backend.PendingVaultKeyUpdate {
		if err = e.push(ctx, a, &backend); err != nil {
			return err
		}
	} else {
		e.logger.Warn().
			Str("func", "SyncEngine.syncBackend").
			Str("backend", backend.Name).
			Msg("wrapped key update pending, push suspended")
	}

	if err = e.pull(ctx, a, &backend); err != nil {
		return err
	}

	return e.reconcilePendingColumns(ctx, a, &backend)
}

// noteCycleResult updates backoff state and disables unauthorized backends.
func (e *SyncEngine) noteCycleResult(ctx context.Context, backend models.SyncBackend, cycleErr error) {
	log := e.logger

	switch {
	case cycleErr == nil:
		e.resetBackoff(backend.ID)

	case errors.Is(cycleErr, adapter.ErrUnauthorized):
		log.Error().
			Str("func", "SyncEngine.noteCycleResult").
			Str("backend", backend.Name).
			Msg("backend rejected credentials, disabling")
		if err := e.backends.SetEnabled(ctx, e.db, backend.ID, false); err != nil {
			log.Err(err).
				Str("func", "SyncEngine.noteCycleResult").
				Str("backend", backend.Name).
				Msg("failed to disable backend")
		}

	default:
		delay := e.bumpBackoff(backend.ID)
		log.Warn().
			Err(cycleErr).
			Str("func", "SyncEngine.noteCycleResult").
			Str("backend", backend.Name).
			Dur("retry_in", delay).
			Msg("sync cycle failed, backend in error-backoff")
	}
}

// finalizeUploads flips change records acknowledged by every enabled backend
// to uploaded and clears dirty-table entries with nothing left pending.
func (e *SyncEngine) finalizeUploads(ctx context.Context) error {
	return e.db.WithTx(ctx, func(tx *sql.Tx) error {
		watermark, ok, err := e.backends.MinEnabledPushWatermark(ctx, tx)
		if err != nil {
			return err
		}
		if !ok || watermark.IsZero() {
			return nil
		}

		if _, err = e.changes.MarkUploadedThrough(ctx, tx, watermark); err != nil {
			return err
		}

		dirtyTables, err := e.dirty.List(ctx, tx)
		if err != nil {
			return err
		}
		for _, d := range dirtyTables {
			pending, err := e.changes.HasPendingForTable(ctx, tx, d.TableName)
			if err != nil {
				return err
			}
			if !pending {
				if err = e.dirty.Clear(ctx, tx, d.TableName); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ── Error backoff ───────────────────────────────────────────────────────────

type backoffState struct {
	delay time.Duration
	until time.Time
}

func (e *SyncEngine) inBackoff(backendID string) bool {
	e.backoffMu.Lock()
	defer e.backoffMu.Unlock()

	state, ok := e.backoffs[backendID]
	return ok && time.Now().Before(state.until)
}

func (e *SyncEngine) bumpBackoff(backendID string) time.Duration {
	e.backoffMu.Lock()
	defer e.backoffMu.Unlock()

	state, ok := e.backoffs[backendID]
	if !ok {
		state = &backoffState{delay: e.cfg.BackoffMin}
		e.backoffs[backendID] = state
	} else {
		state.delay *= 2
		if state.delay > e.cfg.BackoffMax {
			state.delay = e.cfg.BackoffMax
		}
	}
	state.until = time.Now().Add(state.delay)
	return state.delay
}

func (e *SyncEngine) resetBackoff(backendID string) {
	e.backoffMu.Lock()
	defer e.backoffMu.Unlock()
	delete(e.backoffs, backendID)
}
