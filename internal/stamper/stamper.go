// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

// Package stamper writes local mutations to replicated tables. Every
// mutation goes through a typed call that writes the data, the per-column
// stamps, the change-log entry and the dirty-table marker in one
// transaction, so a crash can never leave data visible to the vault but
// invisible to sync.
package stamper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/keyfold/keyfold/internal/clock"
	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/models"
)

var (
	// ErrNoColumns is returned for an insert or update carrying no column
	// values.
	ErrNoColumns = errors.New("mutation carries no columns")

	// ErrRowExists is returned by Insert when the row id is already present.
	ErrRowExists = errors.New("row already exists")
)

// Stamper applies local mutations to one vault.
type Stamper struct {
	db      *store.DB
	clock   *clock.Clock
	rows    store.RowRepository
	changes store.ChangeLogRepository
	dirty   store.DirtyTableRepository
	logger  *logger.Logger
}

// New constructs a Stamper over the vault's repositories.
func New(db *store.DB, clk *clock.Clock, rows store.RowRepository, changes store.ChangeLogRepository, dirty store.DirtyTableRepository, log *logger.Logger) *Stamper {
	return &Stamper{
		db:      db,
		clock:   clk,
		rows:    rows,
		changes: changes,
		dirty:   dirty,
		logger:  log,
	}
}

// Insert creates a new row with the given data columns, stamping every
// column with one freshly issued timestamp.
func (s *Stamper) Insert(ctx context.Context, table, rowID string, values map[string]*string) error {
	if len(values) == 0 {
		return ErrNoColumns
	}

	stamp, err := s.clock.Now(ctx)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, found, err := s.rows.Meta(ctx, tx, table, rowID)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s/%s", ErrRowExists, table, rowID)
		}

		stamps := make(map[string]models.HLC, len(values)+1)
		for column := range values {
			stamps[column] = stamp
		}
		stamps[models.TombstoneColumn] = stamp

		if err = s.rows.InsertRow(ctx, tx, table, rowID, values, stamps, stamp); err != nil {
			return err
		}

		for column := range values {
			if err = s.recordChange(ctx, tx, table, rowID, column, models.OpInsert, stamp); err != nil {
				return err
			}
		}

		return s.markDirty(ctx, tx, table)
	})
}

// Update writes the changed columns of an existing row, stamping only those
// columns. Unchanged columns keep their stamps, so concurrent edits to
// different columns merge without conflict.
func (s *Stamper) Update(ctx context.Context, table, rowID string, changed map[string]*string) error {
	if len(changed) == 0 {
		return ErrNoColumns
	}

	stamp, err := s.clock.Now(ctx)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, found, err := s.rows.Meta(ctx, tx, table, rowID)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrRowNotFound
		}

		for column, value := range changed {
			if err = s.rows.ApplyColumn(ctx, tx, table, rowID, column, value, stamp); err != nil {
				return err
			}
			if err = s.recordChange(ctx, tx, table, rowID, column, models.OpUpdate, stamp); err != nil {
				return err
			}
		}

		return s.markDirty(ctx, tx, table)
	})
}

// Delete soft-deletes a row: the tombstone pseudo-column is stamped and set,
// all other column stamps stay untouched.
func (s *Stamper) Delete(ctx context.Context, table, rowID string) error {
	return s.setTombstone(ctx, table, rowID, true, models.OpDelete)
}

// Restore clears a row's tombstone with a fresh stamp. Under column-level
// LWW the restore wins over any earlier-stamped delete on every device.
func (s *Stamper) Restore(ctx context.Context, table, rowID string) error {
	return s.setTombstone(ctx, table, rowID, false, models.OpUpdate)
}

func (s *Stamper) setTombstone(ctx context.Context, table, rowID string, deleted bool, op models.Operation) error {
	stamp, err := s.clock.Now(ctx)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, found, err := s.rows.Meta(ctx, tx, table, rowID)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrRowNotFound
		}

		if err = s.rows.SetTombstone(ctx, tx, table, rowID, deleted, stamp); err != nil {
			return err
		}
		if err = s.recordChange(ctx, tx, table, rowID, models.TombstoneColumn, op, stamp); err != nil {
			return err
		}

		return s.markDirty(ctx, tx, table)
	})
}

func (s *Stamper) recordChange(ctx context.Context, tx *sql.Tx, table, rowID, column string, op models.Operation, stamp models.HLC) error {
	return s.changes.Replace(ctx, tx, models.ChangeRecord{
		TableName:   table,
		RowID:       rowID,
		ColumnName:  column,
		Op:          op,
		HLC:         stamp,
		UploadState: models.UploadPending,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *Stamper) markDirty(ctx context.Context, tx *sql.Tx, table string) error {
	return s.dirty.Upsert(ctx, tx, table, time.Now().UTC())
}
