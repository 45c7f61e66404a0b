// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

// Package reaper physically removes replication debris that has finished its
// job: tombstoned rows every enabled backend has acknowledged, and uploaded
// change records past their retention window. It never touches anything
// still pending, so it is safe to run concurrently with sync cycles.
package reaper

import (
	"context"
	"time"

	"github.com/keyfold/keyfold/internal/config"
	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/models"
)

// Reaper cleans up one vault's fully propagated tombstones and change log.
type Reaper struct {
	db      *store.DB
	rows    store.RowRepository
	changes store.ChangeLogRepository
	cfg     config.Retention
	nowFn   func() time.Time
	logger  *logger.Logger
}

// New constructs a Reaper with the given retention windows.
func New(db *store.DB, rows store.RowRepository, changes store.ChangeLogRepository, cfg config.Retention, log *logger.Logger) *Reaper {
	return &Reaper{
		db:      db,
		rows:    rows,
		changes: changes,
		cfg:     cfg,
		nowFn:   time.Now,
		logger:  log,
	}
}

// Cleanup removes tombstoned rows older than the tombstone retention window
// and uploaded change records older than the change-log window.
//
// The tombstone cutoff is expressed as an HLC with only the wall component
// set: any stamp issued before the cutoff wall time orders below it
// regardless of counter or node. Rows that still have a pending change
// record are left alone even when old enough; deleting them would lose the
// tombstone before some backend has seen it.
func (r *Reaper) Cleanup(ctx context.Context) error {
	log := r.logger
	now := r.nowFn().UTC()

	tombstoneCutoff := models.HLC{
		WallMillis: now.AddDate(0, 0, -r.cfg.TombstoneDays).UnixMilli(),
	}

	var reaped int64
	for _, table := range r.rows.Tables() {
		n, err := r.rows.ReapTombstones(ctx, r.db, table.Name, tombstoneCutoff)
		if err != nil {
			return err
		}
		reaped += n
	}

	changeLogCutoff := now.AddDate(0, 0, -r.cfg.ChangeLogDays)
	trimmed, err := r.changes.DeleteUploadedBefore(ctx, r.db, changeLogCutoff)
	if err != nil {
		return err
	}

	if reaped > 0 || trimmed > 0 {
		log.Info().
			Str("func", "Reaper.Cleanup").
			Int64("tombstones", reaped).
			Int64("change_records", trimmed).
			Msg("retention cleanup finished")
	}
	return nil
}
