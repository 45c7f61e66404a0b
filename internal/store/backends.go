// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

// backendRepository is the SQLite-backed implementation of
// [BackendRepository]. The tagged-union backend configuration is persisted
// as (kind, config JSON) and re-validated on load, so the rest of the engine
// only ever sees a checked, typed SyncBackend.
type backendRepository struct {
	logger *logger.Logger
}

// NewBackendRepository constructs a [BackendRepository].
func NewBackendRepository(log *logger.Logger) BackendRepository {
	return &backendRepository{logger: log}
}

func (r *backendRepository) Save(ctx context.Context, q Querier, backend models.SyncBackend) error {
	log := logger.FromContext(ctx)

	if err := backend.Validate(); err != nil {
		return err
	}

	configRaw, err := encodeBackendConfig(backend)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, saveBackend,
		backend.ID,
		backend.Name,
		string(backend.Kind),
		configRaw,
		backend.RemoteVaultID,
		backend.WrappedSyncKey,
		backend.WrapSalt,
		backend.Enabled,
		backend.Priority,
		backend.LastPushHLC.String(),
		backend.LastPullHLC.String(),
		backend.PendingVaultKeyUpdate,
	)
	if err != nil {
		log.Err(err).
			Str("func", "backendRepository.Save").
			Str("backend_id", backend.ID).
			Str("kind", string(backend.Kind)).
			Msg("failed to save sync backend")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *backendRepository) Get(ctx context.Context, q Querier, id string) (models.SyncBackend, error) {
	row := q.QueryRowContext(ctx, `SELECT `+backendColumns+` FROM sync_backends WHERE id = ?;`, id)

	backend, err := scanBackend(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncBackend{}, ErrBackendNotFound
	}
	if err != nil {
		return models.SyncBackend{}, err
	}
	return backend, nil
}

func (r *backendRepository) List(ctx context.Context, q Querier) ([]models.SyncBackend, error) {
	return r.list(ctx, q, `SELECT `+backendColumns+` FROM sync_backends ORDER BY priority ASC, name ASC;`)
}

func (r *backendRepository) ListEnabled(ctx context.Context, q Querier) ([]models.SyncBackend, error) {
	return r.list(ctx, q, `SELECT `+backendColumns+` FROM sync_backends WHERE enabled = 1 ORDER BY priority ASC, name ASC;`)
}

func (r *backendRepository) list(ctx context.Context, q Querier, query string) ([]models.SyncBackend, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	backends := make([]models.SyncBackend, 0, 4)
	for rows.Next() {
		backend, scanErr := scanBackend(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		backends = append(backends, backend)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return backends, nil
}

func (r *backendRepository) SetEnabled(ctx context.Context, q Querier, id string, enabled bool) error {
	return r.exec(ctx, q, setBackendEnabled, enabled, id)
}

func (r *backendRepository) SetPendingKeyUpdate(ctx context.Context, q Querier, id string, pending bool) error {
	return r.exec(ctx, q, setBackendPendingKeyUpdate, pending, id)
}

func (r *backendRepository) SetWrappedKey(ctx context.Context, q Querier, id string, key, salt []byte) error {
	return r.exec(ctx, q, setBackendWrappedKey, key, salt, id)
}

func (r *backendRepository) AdvancePushWatermark(ctx context.Context, q Querier, id string, hlc models.HLC) error {
	encoded := hlc.String()
	_, err := q.ExecContext(ctx, advancePushWatermark, encoded, id, encoded)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (r *backendRepository) AdvancePullWatermark(ctx context.Context, q Querier, id string, hlc models.HLC) error {
	encoded := hlc.String()
	_, err := q.ExecContext(ctx, advancePullWatermark, encoded, id, encoded)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (r *backendRepository) MinEnabledPushWatermark(ctx context.Context, q Querier) (models.HLC, bool, error) {
	var raw sql.NullString
	err := q.QueryRowContext(ctx, minEnabledPushWatermark).Scan(&raw)
	if err != nil {
		return models.HLC{}, false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if !raw.Valid {
		return models.HLC{}, false, nil
	}

	hlc, err := models.ParseHLC(raw.String)
	if err != nil {
		return models.HLC{}, false, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return hlc, true, nil
}

func (r *backendRepository) Delete(ctx context.Context, q Querier, id string) error {
	res, err := q.ExecContext(ctx, deleteBackend, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return ErrBackendNotFound
	}

	return nil
}

func (r *backendRepository) exec(ctx context.Context, q Querier, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return ErrBackendNotFound
	}

	return nil
}

// encodeBackendConfig serializes the kind-specific config struct of an
// already validated backend.
func encodeBackendConfig(backend models.SyncBackend) (string, error) {
	var (
		raw []byte
		err error
	)

	switch backend.Kind {
	case models.BackendHTTP:
		raw, err = json.Marshal(backend.HTTP)
	case models.BackendS3:
		raw, err = json.Marshal(backend.S3)
	case models.BackendPostgres:
		raw, err = json.Marshal(backend.Postgres)
	default:
		return "", fmt.Errorf("%w: %q", models.ErrBackendKindUnknown, backend.Kind)
	}
	if err != nil {
		return "", fmt.Errorf("encode backend config: %w", err)
	}

	return string(raw), nil
}

func scanBackend(scan func(dest ...any) error) (models.SyncBackend, error) {
	var (
		backend    models.SyncBackend
		kind       string
		configRaw  string
		pushRaw    string
		pullRaw    string
		wrappedKey []byte
		wrapSalt   []byte
	)

	err := scan(
		&backend.ID,
		&backend.Name,
		&kind,
		&configRaw,
		&backend.RemoteVaultID,
		&wrappedKey,
		&wrapSalt,
		&backend.Enabled,
		&backend.Priority,
		&pushRaw,
		&pullRaw,
		&backend.PendingVaultKeyUpdate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SyncBackend{}, err
		}
		return models.SyncBackend{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	backend.Kind = models.BackendKind(kind)
	backend.WrappedSyncKey = wrappedKey
	backend.WrapSalt = wrapSalt

	switch backend.Kind {
	case models.BackendHTTP:
		cfg := &models.HTTPBackendConfig{}
		if err = json.Unmarshal([]byte(configRaw), cfg); err == nil {
			backend.HTTP = cfg
		}
	case models.BackendS3:
		cfg := &models.S3BackendConfig{}
		if err = json.Unmarshal([]byte(configRaw), cfg); err == nil {
			backend.S3 = cfg
		}
	case models.BackendPostgres:
		cfg := &models.PostgresBackendConfig{}
		if err = json.Unmarshal([]byte(configRaw), cfg); err == nil {
			backend.Postgres = cfg
		}
	default:
		return models.SyncBackend{}, fmt.Errorf("%w: %q", models.ErrBackendKindUnknown, kind)
	}
	if err != nil {
		return models.SyncBackend{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if backend.LastPushHLC, err = models.ParseHLC(pushRaw); err != nil {
		return models.SyncBackend{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if backend.LastPullHLC, err = models.ParseHLC(pullRaw); err != nil {
		return models.SyncBackend{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if err = backend.Validate(); err != nil {
		return models.SyncBackend{}, err
	}

	return backend, nil
}
