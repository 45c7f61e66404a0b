// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

// clockStateRepository is the SQLite-backed implementation of
// [ClockStateRepository]. It always executes against the connection itself,
// never a caller transaction: a handed-out timestamp must stay persisted even
// if the surrounding operation rolls back, otherwise a restart could re-issue
// it and break per-node monotonicity.
type clockStateRepository struct {
	db     *DB
	logger *logger.Logger
}

// NewClockStateRepository constructs a [ClockStateRepository] backed by the
// provided database connection.
func NewClockStateRepository(db *DB, log *logger.Logger) ClockStateRepository {
	return &clockStateRepository{db: db, logger: log}
}

func (r *clockStateRepository) Get(ctx context.Context) (models.VaultClockState, error) {
	var (
		state   models.VaultClockState
		lastRaw string
	)

	err := r.db.QueryRowContext(ctx, getClockState).Scan(&state.NodeID, &lastRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VaultClockState{}, ErrClockStateNotFound
	}
	if err != nil {
		return models.VaultClockState{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	last, err := models.ParseHLC(lastRaw)
	if err != nil {
		return models.VaultClockState{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	state.LastHLC = last

	return state, nil
}

func (r *clockStateRepository) Init(ctx context.Context, state models.VaultClockState) error {
	log := logger.FromContext(ctx)

	_, err := r.db.ExecContext(ctx, initClockState, state.NodeID, state.LastHLC.String())
	if err != nil {
		log.Err(err).
			Str("func", "clockStateRepository.Init").
			Str("node_id", state.NodeID).
			Msg("failed to initialize vault clock state")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *clockStateRepository) SaveLastHLC(ctx context.Context, last models.HLC) error {
	res, err := r.db.ExecContext(ctx, saveLastHLC, last.String())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return ErrClockStateNotFound
	}

	return nil
}
