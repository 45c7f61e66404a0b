// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

// Package resolver merges remote changes into the local vault.
//
// Merging is column-level last-writer-wins over HLC stamps. Two concurrent
// edits to different columns of the same row never conflict; only edits to
// the same column compete. The tombstone flag is a stamped pseudo-column and
// follows the same rule, so a later-stamped undelete survives an earlier
// delete on every device.
package resolver

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/clock"
	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/models"
)

// Outcome classifies what the resolver did with one remote change.
type Outcome string

const (
	// OutcomeApplied means the remote value won trivially: no local row, no
	// local stamp for the column, or a causally older local stamp with no
	// unpushed local edit.
	OutcomeApplied Outcome = "applied"

	// OutcomeIgnored means the local column already dominates the remote
	// stamp, or the change is an echo of a local write.
	OutcomeIgnored Outcome = "ignored"

	// OutcomeConflictRemoteWins and OutcomeConflictLocalWins mean both sides
	// edited the column without having seen each other; the decision was
	// recorded as a durable conflict.
	OutcomeConflictRemoteWins Outcome = "conflict_remote_wins"
	OutcomeConflictLocalWins  Outcome = "conflict_local_wins"

	// OutcomeSkippedColumn means the local schema does not know the table or
	// column yet; a pending-column entry was recorded for later
	// reconciliation and the change was otherwise dropped.
	OutcomeSkippedColumn Outcome = "skipped_unknown_column"
)

// BatchResult summarizes one applied batch.
type BatchResult struct {
	Applied   int
	Ignored   int
	Conflicts int
	Skipped   int

	// MaxProcessed is the highest HLC seen in the batch, counting ignored
	// and skipped changes. Pull watermarks advance to this value: skipped
	// columns are tracked as pending entries, not by holding the watermark
	// back.
	MaxProcessed models.HLC

	// UpdatedTables names the tables whose rows actually changed.
	UpdatedTables []string
}

// Resolver applies remote changes to one vault.
type Resolver struct {
	db        *store.DB
	clock     *clock.Clock
	rows      store.RowRepository
	changes   store.ChangeLogRepository
	conflicts store.ConflictRepository
	pending   store.PendingColumnRepository
	logger    *logger.Logger
}

// New constructs a Resolver over the vault's repositories.
func New(db *store.DB, clk *clock.Clock, rows store.RowRepository, changes store.ChangeLogRepository, conflicts store.ConflictRepository, pending store.PendingColumnRepository, log *logger.Logger) *Resolver {
	return &Resolver{
		db:        db,
		clock:     clk,
		rows:      rows,
		changes:   changes,
		conflicts: conflicts,
		pending:   pending,
		logger:    log,
	}
}

// ApplyBatch merges a batch of remote changes in one transaction.
//
// pushWatermark is the push watermark of the backend the batch came from: a
// local change record stamped after it is an edit that backend has not seen,
// which is what turns a same-column write into a genuine conflict.
//
// final, when non-nil, runs as the last statement of the apply transaction
// with the batch's maximum processed HLC. The engine uses it to advance the
// backend's pull watermark (or clear a pending-column entry) atomically with
// the applied data: a crash can re-deliver a batch but replay is idempotent,
// it can never skip one.
func (r *Resolver) ApplyBatch(ctx context.Context, batch []models.RemoteChange, pushWatermark models.HLC, final func(tx *sql.Tx, maxProcessed models.HLC) error) (BatchResult, error) {
	var result BatchResult
	if len(batch) == 0 {
		return result, nil
	}

	// Observing the batch maximum up front merges the furthest-seen logical
	// time for every change at once, winners and losers alike. It happens
	// outside the apply transaction because clock persistence is durable
	// independently of whether the apply commits; a clock that ran ahead of
	// a rolled-back batch is harmless, one that lags an applied batch is not.
	maxSeen := batch[0].HLC
	for _, change := range batch[1:] {
		maxSeen = models.MaxHLC(maxSeen, change.HLC)
	}
	if _, err := r.clock.Observe(ctx, maxSeen); err != nil {
		return result, err
	}

	updated := make(map[string]struct{})

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, change := range batch {
			outcome, err := r.applyOne(ctx, tx, change.ChangeMessage, pushWatermark)
			if err != nil {
				return err
			}

			switch outcome {
			case OutcomeApplied:
				result.Applied++
				updated[change.TableName] = struct{}{}
			case OutcomeIgnored:
				result.Ignored++
			case OutcomeConflictRemoteWins:
				result.Conflicts++
				updated[change.TableName] = struct{}{}
			case OutcomeConflictLocalWins:
				result.Conflicts++
			case OutcomeSkippedColumn:
				result.Skipped++
			}
			result.MaxProcessed = models.MaxHLC(result.MaxProcessed, change.HLC)
		}

		if final != nil {
			return final(tx, result.MaxProcessed)
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}

	for table := range updated {
		result.UpdatedTables = append(result.UpdatedTables, table)
	}
	return result, nil
}

// applyOne runs the merge decision for a single remote change.
func (r *Resolver) applyOne(ctx context.Context, tx *sql.Tx, change models.ChangeMessage, pushWatermark models.HLC) (Outcome, error) {
	log := r.logger

	known, err := r.columnKnown(ctx, change.TableName, change.ColumnName)
	if err != nil {
		return "", err
	}
	if !known {
		if err = r.pending.Upsert(ctx, tx, change.TableName, change.ColumnName, time.Now().UTC()); err != nil {
			return "", err
		}
		log.Info().
			Str("func", "Resolver.applyOne").
			Str("table", change.TableName).
			Str("column", change.ColumnName).
			Msg("unknown column, recorded pending entry")
		return OutcomeSkippedColumn, nil
	}

	meta, found, err := r.rows.Meta(ctx, tx, change.TableName, change.RowID)
	if err != nil {
		return "", err
	}

	localStamp := models.HLC{}
	if found {
		localStamp = meta.StampFor(change.ColumnName)
	}

	// No local row, or the column was never stamped locally: the remote
	// write is causally unopposed.
	if !found || localStamp.IsZero() {
		if err = r.apply(ctx, tx, change); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}

	hasPending, err := r.changes.PendingForCell(ctx, tx, change.TableName, change.RowID, change.ColumnName, pushWatermark)
	if err != nil {
		return "", err
	}

	if !hasPending {
		// No unpushed local edit: plain causal order decides.
		if localStamp.Compare(change.HLC) >= 0 {
			return OutcomeIgnored, nil
		}
		if err = r.apply(ctx, tx, change); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}

	// Equal stamps with a pending record is this device's own write echoed
	// back through the backend.
	if localStamp.Equal(change.HLC) {
		return OutcomeIgnored, nil
	}

	// Both sides wrote the column without having seen each other's change.
	// Last-writer-wins decides deterministically (stamp order includes the
	// node-id tie-break), and the decision is always recorded so a user can
	// inspect and reverse it.
	remoteWins := change.HLC.After(localStamp)

	if err = r.recordConflict(ctx, tx, change, localStamp, remoteWins); err != nil {
		return "", err
	}

	if !remoteWins {
		return OutcomeConflictLocalWins, nil
	}
	if err = r.apply(ctx, tx, change); err != nil {
		return "", err
	}
	return OutcomeConflictRemoteWins, nil
}

// columnKnown reports whether the local schema can store the change. The
// tombstone pseudo-column exists on every replicated table.
func (r *Resolver) columnKnown(ctx context.Context, table, column string) (bool, error) {
	hasTable, err := r.rows.HasTable(ctx, table)
	if err != nil {
		return false, err
	}
	if !hasTable {
		return false, nil
	}
	if column == models.TombstoneColumn {
		return true, nil
	}
	return r.rows.HasColumn(ctx, table, column)
}

func (r *Resolver) apply(ctx context.Context, tx *sql.Tx, change models.ChangeMessage) error {
	return r.rows.ApplyColumn(ctx, tx, change.TableName, change.RowID, change.ColumnName, change.Value, change.HLC)
}

func (r *Resolver) recordConflict(ctx context.Context, tx *sql.Tx, change models.ChangeMessage, localStamp models.HLC, remoteWins bool) error {
	snapshot, err := r.rows.Snapshot(ctx, tx, change.TableName, change.RowID)
	if err != nil {
		return err
	}

	resolution := models.ResolutionLocalWins
	if remoteWins {
		resolution = models.ResolutionRemoteWins
	}

	rec := models.ConflictRecord{
		ID:            uuid.NewString(),
		TableName:     change.TableName,
		Type:          models.ConflictConcurrentUpdate,
		ConflictKey:   change.ColumnName,
		LocalRowID:    change.RowID,
		RemoteRowID:   change.RowID,
		LocalSnapshot: snapshot,
		LocalHLC:      localStamp,
		RemoteValue:   change.Value,
		RemoteHLC:     change.HLC,
		DetectedAt:    time.Now().UTC(),
		Resolution:    resolution,
	}

	if err = r.conflicts.Insert(ctx, tx, rec); err != nil {
		return err
	}

	r.logger.Warn().
		Str("func", "Resolver.recordConflict").
		Str("table", change.TableName).
		Str("row_id", change.RowID).
		Str("column", change.ColumnName).
		Str("resolution", string(resolution)).
		Msg("concurrent write resolved")
	return nil
}
