// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

// changeLogRepository is the SQLite-backed implementation of
// [ChangeLogRepository].
type changeLogRepository struct {
	logger *logger.Logger
}

// NewChangeLogRepository constructs a [ChangeLogRepository].
func NewChangeLogRepository(log *logger.Logger) ChangeLogRepository {
	return &changeLogRepository{logger: log}
}

func (r *changeLogRepository) Replace(ctx context.Context, q Querier, rec models.ChangeRecord) error {
	log := logger.FromContext(ctx)

	_, err := q.ExecContext(ctx, replaceChangeRecord,
		rec.TableName,
		rec.RowID,
		rec.ColumnName,
		string(rec.Op),
		rec.HLC.String(),
		string(rec.UploadState),
		rec.CreatedAt,
	)
	if err != nil {
		log.Err(err).
			Str("func", "changeLogRepository.Replace").
			Str("table", rec.TableName).
			Str("row_id", rec.RowID).
			Str("column", rec.ColumnName).
			Msg("failed to replace change record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *changeLogRepository) PendingSince(ctx context.Context, q Querier, table string, after models.HLC) ([]models.ChangeRecord, error) {
	log := logger.FromContext(ctx)

	query, args, err := sq.
		Select("table_name", "row_id", "column_name", "op", "hlc", "upload_state", "created_at").
		From("change_log").
		Where(sq.Eq{"table_name": table}).
		Where(sq.Gt{"hlc": after.String()}).
		OrderBy("hlc ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "changeLogRepository.PendingSince").
			Str("table", table).
			Msg("failed to select pending change records")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	records := make([]models.ChangeRecord, 0, 64)
	for rows.Next() {
		rec, scanErr := scanChangeRecord(rows.Scan)
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

func (r *changeLogRepository) PendingForCell(ctx context.Context, q Querier, table, rowID, column string, after models.HLC) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, pendingForCell, table, rowID, column, after.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return exists, nil
}

func (r *changeLogRepository) HasPendingForTable(ctx context.Context, q Querier, table string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, hasPendingForTable, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return exists, nil
}

func (r *changeLogRepository) MarkUploadedThrough(ctx context.Context, q Querier, watermark models.HLC) (int64, error) {
	res, err := q.ExecContext(ctx, markUploadedThrough, watermark.String())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return affected, nil
}

func (r *changeLogRepository) DeleteUploadedBefore(ctx context.Context, q Querier, cutoff time.Time) (int64, error) {
	log := logger.FromContext(ctx)

	query, args, err := sq.
		Delete("change_log").
		Where(sq.Eq{"upload_state": string(models.Uploaded)}).
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "changeLogRepository.DeleteUploadedBefore").
			Time("cutoff", cutoff).
			Msg("failed to delete uploaded change records")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return affected, nil
}

// scanChangeRecord maps one change_log row onto a models.ChangeRecord.
func scanChangeRecord(scan func(dest ...any) error) (models.ChangeRecord, error) {
	var (
		rec      models.ChangeRecord
		op       string
		hlcRaw   string
		stateRaw string
	)

	if err := scan(&rec.TableName, &rec.RowID, &rec.ColumnName, &op, &hlcRaw, &stateRaw, &rec.CreatedAt); err != nil {
		return models.ChangeRecord{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	hlc, err := models.ParseHLC(hlcRaw)
	if err != nil {
		return models.ChangeRecord{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	rec.Op = models.Operation(op)
	rec.HLC = hlc
	rec.UploadState = models.UploadState(stateRaw)
	return rec, nil
}
