// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

// pgBackendAdapter is the self-hosted relay: a shared Postgres database
// holding the replicated change log. Several vaults can share one relay;
// rows are scoped by vault id.
type pgBackendAdapter struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

const (
	pgCreateChanges = `
		CREATE TABLE IF NOT EXISTS keyfold_changes (
			vault_id    TEXT NOT NULL,
			table_name  TEXT NOT NULL,
			row_id      TEXT NOT NULL,
			column_name TEXT NOT NULL,
			op          TEXT NOT NULL,
			hlc         TEXT NOT NULL,
			value       TEXT,
			server_seq  BIGSERIAL,
			PRIMARY KEY (vault_id, table_name, row_id, column_name, hlc)
		);`

	pgCreateChangesIndex = `
		CREATE INDEX IF NOT EXISTS idx_keyfold_changes_pull
		ON keyfold_changes (vault_id, hlc);`

	pgCreateKeys = `
		CREATE TABLE IF NOT EXISTS keyfold_keys (
			vault_id   TEXT PRIMARY KEY,
			salt       BYTEA NOT NULL,
			blob       BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`

	// The full change key in the conflict target makes replayed pushes
	// no-ops, which is what keeps push retries idempotent.
	pgInsertChange = `
		INSERT INTO keyfold_changes (vault_id, table_name, row_id, column_name, op, hlc, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (vault_id, table_name, row_id, column_name, hlc) DO NOTHING;`

	pgSelectChanges = `
		SELECT table_name, row_id, column_name, op, hlc, value, server_seq
		FROM keyfold_changes
		WHERE vault_id = $1 AND hlc > $2
		ORDER BY hlc ASC
		LIMIT $3;`

	pgSelectTableColumn = `
		SELECT table_name, row_id, column_name, op, hlc, value, server_seq
		FROM keyfold_changes
		WHERE vault_id = $1 AND table_name = $2 AND column_name = $3
		ORDER BY hlc ASC;`

	pgSelectKey = `
		SELECT salt, blob, updated_at
		FROM keyfold_keys
		WHERE vault_id = $1;`

	pgUpsertKey = `
		INSERT INTO keyfold_keys (vault_id, salt, blob, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vault_id) DO UPDATE SET
			salt       = excluded.salt,
			blob       = excluded.blob,
			updated_at = excluded.updated_at;`
)

// NewPostgresBackendAdapter constructs the Postgres relay implementation of
// [BackendAdapter].
func NewPostgresBackendAdapter(ctx context.Context, cfg models.PostgresBackendConfig, log *logger.Logger) (BackendAdapter, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing relay dsn: %w", ErrBadRequest, err)
	}

	return &pgBackendAdapter{pool: pool, logger: log}, nil
}

func (p *pgBackendAdapter) Kind() models.BackendKind {
	return models.BackendPostgres
}

// Verify implements [BackendAdapter]. Pings the relay and makes sure the
// relay schema exists; creating it is idempotent and safe to race between
// devices.
func (p *pgBackendAdapter) Verify(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return mapPgError(err)
	}

	for _, stmt := range []string{pgCreateChanges, pgCreateChangesIndex, pgCreateKeys} {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

// Push implements [BackendAdapter]. The batch is applied in one relay
// transaction; the ack covers the full batch or nothing.
func (p *pgBackendAdapter) Push(ctx context.Context, req models.PushRequest) (models.PushResponse, error) {
	if len(req.Changes) == 0 {
		return models.PushResponse{}, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return models.PushResponse{}, mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	maxHLC := req.Changes[0].HLC
	for _, change := range req.Changes {
		_, err = tx.Exec(ctx, pgInsertChange,
			req.VaultID,
			change.TableName,
			change.RowID,
			change.ColumnName,
			string(change.Op),
			change.HLC.String(),
			change.Value,
		)
		if err != nil {
			return models.PushResponse{}, mapPgError(err)
		}
		maxHLC = models.MaxHLC(maxHLC, change.HLC)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.PushResponse{}, mapPgError(err)
	}

	return models.PushResponse{AckedHLC: maxHLC}, nil
}

// Pull implements [BackendAdapter].
func (p *pgBackendAdapter) Pull(ctx context.Context, vaultID string, after models.HLC, limit int) (models.PullResponse, error) {
	pgLimit := int64(limit)
	if limit <= 0 {
		// LIMIT ALL has no binding form; a very large cap is equivalent.
		pgLimit = int64(1) << 62
	}

	rows, err := p.pool.Query(ctx, pgSelectChanges, vaultID, after.String(), pgLimit)
	if err != nil {
		return models.PullResponse{}, mapPgError(err)
	}
	defer rows.Close()

	return scanRemoteChanges(rows)
}

// PullTableColumn implements [BackendAdapter].
func (p *pgBackendAdapter) PullTableColumn(ctx context.Context, vaultID, table, column string) (models.PullResponse, error) {
	rows, err := p.pool.Query(ctx, pgSelectTableColumn, vaultID, table, column)
	if err != nil {
		return models.PullResponse{}, mapPgError(err)
	}
	defer rows.Close()

	return scanRemoteChanges(rows)
}

// FetchWrappedKey implements [BackendAdapter].
func (p *pgBackendAdapter) FetchWrappedKey(ctx context.Context, vaultID string) (models.WrappedKey, bool, error) {
	key := models.WrappedKey{VaultID: vaultID}

	err := p.pool.QueryRow(ctx, pgSelectKey, vaultID).Scan(&key.Salt, &key.Blob, &key.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WrappedKey{}, false, nil
	}
	if err != nil {
		return models.WrappedKey{}, false, mapPgError(err)
	}

	return key, true, nil
}

// UploadWrappedKey implements [BackendAdapter].
func (p *pgBackendAdapter) UploadWrappedKey(ctx context.Context, key models.WrappedKey) error {
	_, err := p.pool.Exec(ctx, pgUpsertKey, key.VaultID, key.Salt, key.Blob, key.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (p *pgBackendAdapter) Close() {
	p.pool.Close()
}

func scanRemoteChanges(rows pgx.Rows) (models.PullResponse, error) {
	var changes []models.RemoteChange

	for rows.Next() {
		var (
			change models.RemoteChange
			op     string
			hlcRaw string
		)
		err := rows.Scan(&change.TableName, &change.RowID, &change.ColumnName, &op, &hlcRaw, &change.Value, &change.ServerSeq)
		if err != nil {
			return models.PullResponse{}, fmt.Errorf("scan relay change: %w", err)
		}

		change.Op = models.Operation(op)
		change.HLC, err = models.ParseHLC(hlcRaw)
		if err != nil {
			return models.PullResponse{}, fmt.Errorf("parse relay change hlc: %w", err)
		}

		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return models.PullResponse{}, mapPgError(err)
	}

	return models.PullResponse{Changes: changes, Length: len(changes)}, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsInvalidAuthorizationSpecification(pgErr.Code),
			pgErr.Code == pgerrcode.InsufficientPrivilege:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case pgerrcode.IsSyntaxErrororAccessRuleViolation(pgErr.Code),
			pgerrcode.IsDataException(pgErr.Code):
			return fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
