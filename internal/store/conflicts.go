// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

// conflictRepository is the SQLite-backed implementation of
// [ConflictRepository].
type conflictRepository struct {
	logger *logger.Logger
}

// NewConflictRepository constructs a [ConflictRepository].
func NewConflictRepository(log *logger.Logger) ConflictRepository {
	return &conflictRepository{logger: log}
}

func (r *conflictRepository) Insert(ctx context.Context, q Querier, rec models.ConflictRecord) error {
	log := logger.FromContext(ctx)

	_, err := q.ExecContext(ctx, insertConflict,
		rec.ID,
		rec.TableName,
		string(rec.Type),
		rec.ConflictKey,
		rec.LocalRowID,
		rec.RemoteRowID,
		rec.LocalSnapshot,
		rec.LocalHLC.String(),
		rec.RemoteValue,
		rec.RemoteHLC.String(),
		rec.DetectedAt,
		string(rec.Resolution),
	)
	if err != nil {
		log.Err(err).
			Str("func", "conflictRepository.Insert").
			Str("table", rec.TableName).
			Str("conflict_key", rec.ConflictKey).
			Msg("failed to insert conflict record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *conflictRepository) Get(ctx context.Context, q Querier, id string) (models.ConflictRecord, error) {
	row := q.QueryRowContext(ctx, getConflict, id)

	rec, err := scanConflict(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConflictRecord{}, ErrConflictNotFound
	}
	if err != nil {
		return models.ConflictRecord{}, err
	}
	return rec, nil
}

func (r *conflictRepository) ListUnresolved(ctx context.Context, q Querier) ([]models.ConflictRecord, error) {
	query, args, err := sq.
		Select("id", "table_name", "type", "conflict_key", "local_row_id", "remote_row_id",
			"local_snapshot", "local_hlc", "remote_value", "remote_hlc",
			"detected_at", "resolved", "resolution", "resolved_at").
		From("conflicts").
		Where(sq.Eq{"resolved": 0}).
		OrderBy("detected_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	records := make([]models.ConflictRecord, 0, 16)
	for rows.Next() {
		rec, scanErr := scanConflict(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return records, nil
}

func (r *conflictRepository) MarkResolved(ctx context.Context, q Querier, id string, at time.Time) error {
	res, err := q.ExecContext(ctx, markConflictResolved, at, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return ErrConflictNotFound
	}

	return nil
}

func scanConflict(scan func(dest ...any) error) (models.ConflictRecord, error) {
	var (
		rec          models.ConflictRecord
		typeRaw      string
		localHLCRaw  string
		remoteHLCRaw string
		resolvedInt  int
		resolution   string
		resolvedAt   sql.NullTime
	)

	err := scan(
		&rec.ID,
		&rec.TableName,
		&typeRaw,
		&rec.ConflictKey,
		&rec.LocalRowID,
		&rec.RemoteRowID,
		&rec.LocalSnapshot,
		&localHLCRaw,
		&rec.RemoteValue,
		&remoteHLCRaw,
		&rec.DetectedAt,
		&resolvedInt,
		&resolution,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConflictRecord{}, err
		}
		return models.ConflictRecord{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	localHLC, err := models.ParseHLC(localHLCRaw)
	if err != nil {
		return models.ConflictRecord{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	remoteHLC, err := models.ParseHLC(remoteHLCRaw)
	if err != nil {
		return models.ConflictRecord{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	rec.Type = models.ConflictType(typeRaw)
	rec.LocalHLC = localHLC
	rec.RemoteHLC = remoteHLC
	rec.Resolved = resolvedInt != 0
	rec.Resolution = models.Resolution(resolution)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		rec.ResolvedAt = &t
	}

	return rec, nil
}
