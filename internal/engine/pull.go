// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package engine

import (
	"context"
	"database/sql"

	"github.com/keyfold/keyfold/internal/adapter"
	"github.com/keyfold/keyfold/internal/events"
	"github.com/keyfold/keyfold/internal/resolver"
	"github.com/keyfold/keyfold/models"
)

// pull fetches remote changes past the backend's pull watermark and merges
// them through the resolver, advancing the watermark inside each apply
// transaction.
func (e *SyncEngine) pull(ctx context.Context, a adapter.BackendAdapter, backend *models.SyncBackend) error {
	log := e.logger
	limit := e.cfg.PushBatchSize

	for {
		resp, err := a.Pull(ctx, backend.RemoteVaultID, backend.LastPullHLC, limit)
		if err != nil {
			return err
		}
		if len(resp.Changes) == 0 {
			return nil
		}

		result, err := e.applyRemote(ctx, resp.Changes, backend, func(tx *sql.Tx, maxProcessed models.HLC) error {
			return e.backends.AdvancePullWatermark(ctx, tx, backend.ID, maxProcessed)
		})
		if err != nil {
			return err
		}
		backend.LastPullHLC = models.MaxHLC(backend.LastPullHLC, result.MaxProcessed)

		log.Debug().
			Str("func", "SyncEngine.pull").
			Str("backend", backend.Name).
			Int("applied", result.Applied).
			Int("conflicts", result.Conflicts).
			Int("skipped", result.Skipped).
			Msg("pull batch merged")

		if limit <= 0 || len(resp.Changes) < limit {
			return nil
		}
	}
}

// applyRemote funnels one batch through the resolver under the apply mutex
// and announces updated tables.
func (e *SyncEngine) applyRemote(ctx context.Context, changes []models.RemoteChange, backend *models.SyncBackend, final func(tx *sql.Tx, maxProcessed models.HLC) error) (resolver.BatchResult, error) {
	e.applyMu.Lock()
	result, err := e.resolver.ApplyBatch(ctx, changes, backend.LastPushHLC, final)
	e.applyMu.Unlock()
	if err != nil {
		return result, err
	}

	if len(result.UpdatedTables) > 0 && e.bus != nil {
		e.bus.Publish(events.TablesUpdated{Tables: result.UpdatedTables})
	}
	return result, nil
}

// reconcilePendingColumns re-pulls the full history of every table/column
// pair that was skipped for schema skew and is now storable. Each recovered
// pair's pending entry is deleted in the same transaction that applies its
// history.
func (e *SyncEngine) reconcilePendingColumns(ctx context.Context, a adapter.BackendAdapter, backend *models.SyncBackend) error {
	log := e.logger

	pendings, err := e.pending.List(ctx, e.db)
	if err != nil {
		return err
	}
	if len(pendings) == 0 {
		return nil
	}

	// A pending entry only resolves after a migration; re-read the schema so
	// freshly added columns are visible.
	e.rows.InvalidateSchemaCache()

	for _, p := range pendings {
		storable, err := e.columnStorable(ctx, p.TableName, p.ColumnName)
		if err != nil {
			return err
		}
		if !storable {
			continue
		}

		resp, err := a.PullTableColumn(ctx, backend.RemoteVaultID, p.TableName, p.ColumnName)
		if err != nil {
			return err
		}

		_, err = e.applyRemote(ctx, resp.Changes, backend, func(tx *sql.Tx, _ models.HLC) error {
			return e.pending.Delete(ctx, tx, p.TableName, p.ColumnName)
		})
		if err != nil {
			return err
		}
		if len(resp.Changes) == 0 {
			// Nothing to recover; drop the entry on its own.
			if err = e.db.WithTx(ctx, func(tx *sql.Tx) error {
				return e.pending.Delete(ctx, tx, p.TableName, p.ColumnName)
			}); err != nil {
				return err
			}
		}

		log.Info().
			Str("func", "SyncEngine.reconcilePendingColumns").
			Str("table", p.TableName).
			Str("column", p.ColumnName).
			Int("changes", len(resp.Changes)).
			Msg("recovered previously skipped column")
	}

	return nil
}

// columnStorable reports whether the local schema can now hold the pair.
func (e *SyncEngine) columnStorable(ctx context.Context, table, column string) (bool, error) {
	hasTable, err := e.rows.HasTable(ctx, table)
	if err != nil {
		return false, err
	}
	if !hasTable {
		return false, nil
	}
	if column == models.TombstoneColumn {
		return true, nil
	}
	return e.rows.HasColumn(ctx, table, column)
}
