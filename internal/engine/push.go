// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package engine

import (
	"context"
	"database/sql"

	"github.com/keyfold/keyfold/internal/adapter"
	"github.com/keyfold/keyfold/models"
)

// push sends every change record this backend has not acknowledged yet,
// table by table, in HLC order.
//
// Values are read from the current row state at send time: the change log
// stores stamps, not values, so coalesced edits to one cell push only the
// final value. Partial acknowledgements are fine: the watermark advances to
// whatever the backend durably applied and the rest stays pending for the
// next cycle.
func (e *SyncEngine) push(ctx context.Context, a adapter.BackendAdapter, backend *models.SyncBackend) error {
	log := e.logger

	dirtyTables, err := e.dirty.List(ctx, e.db)
	if err != nil {
		return err
	}

	for _, d := range dirtyTables {
		messages, err := e.composePending(ctx, d.TableName, backend.LastPushHLC)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			continue
		}

		log.Debug().
			Str("func", "SyncEngine.push").
			Str("backend", backend.Name).
			Str("table", d.TableName).
			Int("changes", len(messages)).
			Msg("pushing pending changes")

		if err = e.pushBatches(ctx, a, backend, messages); err != nil {
			return err
		}
	}

	return nil
}

// composePending builds the wire messages for one table in a single read
// transaction, so every value in the batch comes from one consistent
// snapshot.
func (e *SyncEngine) composePending(ctx context.Context, table string, after models.HLC) ([]models.ChangeMessage, error) {
	var messages []models.ChangeMessage

	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		records, err := e.changes.PendingSince(ctx, tx, table, after)
		if err != nil {
			return err
		}

		messages = make([]models.ChangeMessage, 0, len(records))
		for _, rec := range records {
			value, err := e.currentValue(ctx, tx, rec)
			if err != nil {
				return err
			}
			messages = append(messages, models.ChangeMessage{
				TableName:  rec.TableName,
				RowID:      rec.RowID,
				ColumnName: rec.ColumnName,
				Op:         rec.Op,
				HLC:        rec.HLC,
				Value:      value,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// currentValue reads the present value of the changed cell. The tombstone
// pseudo-column is materialized from the row's tombstone flag.
func (e *SyncEngine) currentValue(ctx context.Context, tx *sql.Tx, rec models.ChangeRecord) (*string, error) {
	if rec.ColumnName == models.TombstoneColumn {
		meta, found, err := e.rows.Meta(ctx, tx, rec.TableName, rec.RowID)
		if err != nil {
			return nil, err
		}
		value := models.TombstoneClear
		if found && meta.Tombstone {
			value = models.TombstoneSet
		}
		return &value, nil
	}

	return e.rows.ColumnValue(ctx, tx, rec.TableName, rec.RowID, rec.ColumnName)
}

// pushBatches sends messages in PushBatchSize slices and advances the
// backend's push watermark to each acknowledged HLC. A partial
// acknowledgement stops the table: unacknowledged records stay pending.
func (e *SyncEngine) pushBatches(ctx context.Context, a adapter.BackendAdapter, backend *models.SyncBackend, messages []models.ChangeMessage) error {
	batchSize := e.cfg.PushBatchSize
	if batchSize <= 0 {
		batchSize = len(messages)
	}

	for start := 0; start < len(messages); start += batchSize {
		end := start + batchSize
		if end > len(messages) {
			end = len(messages)
		}
		batch := messages[start:end]

		ack, err := a.Push(ctx, models.PushRequest{
			VaultID: backend.RemoteVaultID,
			Changes: batch,
			Length:  len(batch),
		})
		if err != nil {
			return err
		}
		if ack.AckedHLC.IsZero() {
			return nil
		}

		if err = e.backends.AdvancePushWatermark(ctx, e.db, backend.ID, ack.AckedHLC); err != nil {
			return err
		}
		backend.LastPushHLC = models.MaxHLC(backend.LastPushHLC, ack.AckedHLC)

		// Backend applied only part of the batch; retry the rest next cycle.
		if ack.AckedHLC.Before(batch[len(batch)-1].HLC) {
			return nil
		}
	}

	return nil
}
