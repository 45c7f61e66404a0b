// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyfold/keyfold/internal/logger"
)

type keyRepository struct {
	db     *DB
	logger *logger.Logger
}

// NewKeyRepository constructs the SQLite-backed [KeyRepository].
func NewKeyRepository(db *DB, log *logger.Logger) KeyRepository {
	return &keyRepository{db: db, logger: log}
}

func (r *keyRepository) GetDEK(ctx context.Context) ([]byte, error) {
	var dek []byte
	err := r.db.QueryRowContext(ctx, getVaultDEK).Scan(&dek)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVaultKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return dek, nil
}

func (r *keyRepository) SaveDEK(ctx context.Context, dek []byte) error {
	if _, err := r.db.ExecContext(ctx, saveVaultDEK, dek, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}
