// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

// pendingColumnRepository is the SQLite-backed implementation of
// [PendingColumnRepository].
type pendingColumnRepository struct {
	logger *logger.Logger
}

// NewPendingColumnRepository constructs a [PendingColumnRepository].
func NewPendingColumnRepository(log *logger.Logger) PendingColumnRepository {
	return &pendingColumnRepository{logger: log}
}

func (r *pendingColumnRepository) Upsert(ctx context.Context, q Querier, table, column string, at time.Time) error {
	_, err := q.ExecContext(ctx, upsertPendingColumn, table, column, at)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "pendingColumnRepository.Upsert").
			Str("table", table).
			Str("column", column).
			Msg("failed to record pending column")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (r *pendingColumnRepository) List(ctx context.Context, q Querier) ([]models.PendingColumn, error) {
	rows, err := q.QueryContext(ctx, listPendingColumns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	entries := make([]models.PendingColumn, 0, 8)
	for rows.Next() {
		var entry models.PendingColumn
		if err = rows.Scan(&entry.TableName, &entry.ColumnName, &entry.FirstSeenAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return entries, nil
}

func (r *pendingColumnRepository) Delete(ctx context.Context, q Querier, table, column string) error {
	_, err := q.ExecContext(ctx, deletePendingColumn, table, column)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}
