// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/adapter"
	"github.com/keyfold/keyfold/models"
)

// AddBackend verifies credentials, reconciles the vault key, performs the
// initial pull and only then persists the backend record, enabled.
//
// The ordering matters for a device joining an existing vault: pulling the
// full remote history before the backend row exists means the device never
// pushes local placeholder rows that would shadow authoritative remote data,
// and never references parent rows it has not pulled yet.
func (e *SyncEngine) AddBackend(ctx context.Context, backend models.SyncBackend, unlockSecret string) (models.SyncBackend, error) {
	log := e.logger

	if backend.ID == "" {
		backend.ID = uuid.NewString()
	}

	a, err := e.newAdapter(ctx, backend, e.cfg.RequestTimeout, e.logger)
	if err != nil {
		return models.SyncBackend{}, err
	}
	defer a.Close()

	if err = a.Verify(ctx); err != nil {
		return models.SyncBackend{}, fmt.Errorf("verifying backend %q: %w", backend.Name, err)
	}

	blob, salt, err := e.keys.EnsureSyncKey(ctx, a, backend.RemoteVaultID, unlockSecret)
	if err != nil {
		return models.SyncBackend{}, fmt.Errorf("ensuring sync key for backend %q: %w", backend.Name, err)
	}
	backend.WrappedSyncKey = blob
	backend.WrapSalt = salt

	if err = e.initialPull(ctx, a, &backend); err != nil {
		return models.SyncBackend{}, fmt.Errorf("initial pull from backend %q: %w", backend.Name, err)
	}

	backend.Enabled = true
	if err = e.db.WithTx(ctx, func(tx *sql.Tx) error {
		return e.backends.Save(ctx, tx, backend)
	}); err != nil {
		return models.SyncBackend{}, err
	}

	log.Info().
		Str("func", "SyncEngine.AddBackend").
		Str("backend", backend.Name).
		Str("kind", string(backend.Kind)).
		Msg("backend added")
	return backend, nil
}

// initialPull drains the backend's full history with no watermark floor. The
// backend record is not persisted yet, so the processed maximum is tracked on
// the in-memory record and written with it.
func (e *SyncEngine) initialPull(ctx context.Context, a adapter.BackendAdapter, backend *models.SyncBackend) error {
	limit := e.cfg.PushBatchSize

	for {
		resp, err := a.Pull(ctx, backend.RemoteVaultID, backend.LastPullHLC, limit)
		if err != nil {
			return err
		}
		if len(resp.Changes) == 0 {
			return nil
		}

		result, err := e.applyRemote(ctx, resp.Changes, backend, nil)
		if err != nil {
			return err
		}
		backend.LastPullHLC = models.MaxHLC(backend.LastPullHLC, result.MaxProcessed)

		if limit <= 0 || len(resp.Changes) < limit {
			return nil
		}
	}
}

// DisableBackend stops push/pull cycles for a backend without touching its
// remote data or local bookkeeping.
func (e *SyncEngine) DisableBackend(ctx context.Context, id string) error {
	return e.backends.SetEnabled(ctx, e.db, id, false)
}

// EnableBackend re-admits a disabled backend to sync cycles.
func (e *SyncEngine) EnableBackend(ctx context.Context, id string) error {
	return e.backends.SetEnabled(ctx, e.db, id, true)
}

// DeleteBackend removes the backend record and its watermarks locally.
// Already-synced remote data is deliberately left in place: other devices
// may still replicate through it.
func (e *SyncEngine) DeleteBackend(ctx context.Context, id string) error {
	e.resetBackoff(id)
	return e.db.WithTx(ctx, func(tx *sql.Tx) error {
		return e.backends.Delete(ctx, tx, id)
	})
}

// ListBackends returns all configured backends ordered as stored.
func (e *SyncEngine) ListBackends(ctx context.Context) ([]models.SyncBackend, error) {
	return e.backends.List(ctx, e.db)
}

// MarkKeyUpdatePending flags a backend whose unlock secret changed. Push is
// suspended for it until RewrapBackendKey runs.
func (e *SyncEngine) MarkKeyUpdatePending(ctx context.Context, id string) error {
	return e.backends.SetPendingKeyUpdate(ctx, e.db, id, true)
}

// RewrapBackendKey wraps the vault key under a new unlock secret, uploads it
// and clears the pending flag, resuming data push on the next cycle.
func (e *SyncEngine) RewrapBackendKey(ctx context.Context, id, unlockSecret string) error {
	backend, err := e.backends.Get(ctx, e.db, id)
	if err != nil {
		return err
	}

	a, err := e.newAdapter(ctx, backend, e.cfg.RequestTimeout, e.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	blob, salt, err := e.keys.RewrapSyncKey(ctx, a, backend.RemoteVaultID, unlockSecret)
	if err != nil {
		return err
	}

	return e.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.backends.SetWrappedKey(ctx, tx, id, blob, salt); err != nil {
			return err
		}
		return e.backends.SetPendingKeyUpdate(ctx, tx, id, false)
	})
}
