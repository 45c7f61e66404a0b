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

// dirtyTableRepository is the SQLite-backed implementation of
// [DirtyTableRepository].
type dirtyTableRepository struct {
	logger *logger.Logger
}

// NewDirtyTableRepository constructs a [DirtyTableRepository].
func NewDirtyTableRepository(log *logger.Logger) DirtyTableRepository {
	return &dirtyTableRepository{logger: log}
}

func (r *dirtyTableRepository) Upsert(ctx context.Context, q Querier, table string, at time.Time) error {
	_, err := q.ExecContext(ctx, upsertDirtyTable, table, at)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "dirtyTableRepository.Upsert").
			Str("table", table).
			Msg("failed to upsert dirty table entry")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (r *dirtyTableRepository) List(ctx context.Context, q Querier) ([]models.DirtyTable, error) {
	rows, err := q.QueryContext(ctx, listDirtyTables)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	entries := make([]models.DirtyTable, 0, 8)
	for rows.Next() {
		var entry models.DirtyTable
		if err = rows.Scan(&entry.TableName, &entry.ModifiedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return entries, nil
}

func (r *dirtyTableRepository) Clear(ctx context.Context, q Querier, table string) error {
	_, err := q.ExecContext(ctx, clearDirtyTable, table)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}
