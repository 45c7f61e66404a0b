// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

import (
	"context"
	"time"

	"github.com/keyfold/keyfold/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// ClockStateRepository persists the vault's node identity and last issued
// HLC. It deliberately does not take a Querier: clock persistence must be
// durable before a timestamp is handed out, independent of whatever outer
// transaction the caller may roll back.
type ClockStateRepository interface {
	// Get returns the clock state, or ErrClockStateNotFound when the vault
	// has never issued a timestamp.
	Get(ctx context.Context) (models.VaultClockState, error)

	// Init writes the initial clock state for a fresh vault.
	Init(ctx context.Context, state models.VaultClockState) error

	// SaveLastHLC durably records the last issued timestamp.
	SaveLastHLC(ctx context.Context, last models.HLC) error
}

// ChangeLogRepository manages the per-(table,row,column) change records that
// drive push cycles and conflict detection.
type ChangeLogRepository interface {
	// Replace writes the change record for a cell, overwriting any
	// outstanding record for the same (table,row,column) triple.
	Replace(ctx context.Context, q Querier, rec models.ChangeRecord) error

	// PendingSince returns the change records of one table with HLC greater
	// than after, ordered by HLC ascending. This is the per-backend "still
	// to push" selection: after is the backend's push watermark.
	PendingSince(ctx context.Context, q Querier, table string, after models.HLC) ([]models.ChangeRecord, error)

	// PendingForCell reports whether the given cell has a change record with
	// HLC greater than after, i.e. a local write the backend has not seen.
	PendingForCell(ctx context.Context, q Querier, table, rowID, column string, after models.HLC) (bool, error)

	// HasPendingForTable reports whether any change record of the table is
	// still in the pending upload state.
	HasPendingForTable(ctx context.Context, q Querier, table string) (bool, error)

	// MarkUploadedThrough flips records with HLC not greater than watermark
	// to the uploaded state. The caller passes the minimum push watermark
	// across all enabled backends, so "uploaded" always means "acknowledged
	// everywhere".
	MarkUploadedThrough(ctx context.Context, q Querier, watermark models.HLC) (int64, error)

	// DeleteUploadedBefore removes uploaded change records created before
	// cutoff. Used by the reaper.
	DeleteUploadedBefore(ctx context.Context, q Querier, cutoff time.Time) (int64, error)
}

// DirtyTableRepository tracks tables with unsynced mutations so a push cycle
// does not scan the whole database.
type DirtyTableRepository interface {
	Upsert(ctx context.Context, q Querier, table string, at time.Time) error
	List(ctx context.Context, q Querier) ([]models.DirtyTable, error)

	// Clear removes the dirty entry. Callers must first check that no
	// backend still has pending changes for the table.
	Clear(ctx context.Context, q Querier, table string) error
}

// ConflictRepository stores the durable audit trail of non-trivial merge
// decisions.
type ConflictRepository interface {
	Insert(ctx context.Context, q Querier, rec models.ConflictRecord) error
	Get(ctx context.Context, q Querier, id string) (models.ConflictRecord, error)
	ListUnresolved(ctx context.Context, q Querier) ([]models.ConflictRecord, error)

	// MarkResolved flips the resolved flag once a user has acknowledged the
	// recorded decision.
	MarkResolved(ctx context.Context, q Querier, id string, at time.Time) error
}

// PendingColumnRepository tracks schema-skew markers: table/column pairs a
// pull delivered but the local schema does not have yet.
type PendingColumnRepository interface {
	Upsert(ctx context.Context, q Querier, table, column string, at time.Time) error
	List(ctx context.Context, q Querier) ([]models.PendingColumn, error)
	Delete(ctx context.Context, q Querier, table, column string) error
}

// BackendRepository persists sync backend records and their watermarks.
type BackendRepository interface {
	Save(ctx context.Context, q Querier, backend models.SyncBackend) error
	Get(ctx context.Context, q Querier, id string) (models.SyncBackend, error)
	List(ctx context.Context, q Querier) ([]models.SyncBackend, error)

	// ListEnabled returns enabled backends ordered by priority ascending.
	ListEnabled(ctx context.Context, q Querier) ([]models.SyncBackend, error)

	SetEnabled(ctx context.Context, q Querier, id string, enabled bool) error
	SetPendingKeyUpdate(ctx context.Context, q Querier, id string, pending bool) error
	SetWrappedKey(ctx context.Context, q Querier, id string, key, salt []byte) error

	// AdvancePushWatermark and AdvancePullWatermark move a backend's
	// watermark forward. They never move a watermark backwards.
	AdvancePushWatermark(ctx context.Context, q Querier, id string, hlc models.HLC) error
	AdvancePullWatermark(ctx context.Context, q Querier, id string, hlc models.HLC) error

	// MinEnabledPushWatermark returns the lowest push watermark across
	// enabled backends; ok is false when no backend is enabled.
	MinEnabledPushWatermark(ctx context.Context, q Querier) (hlc models.HLC, ok bool, err error)

	Delete(ctx context.Context, q Querier, id string) error
}

// RowRepository executes generic reads and writes against replicated tables:
// every replicated row carries a row HLC, a per-column HLC map and a
// tombstone flag alongside its data columns.
type RowRepository interface {
	// Meta reads the replication metadata of a row; found is false when the
	// row does not exist.
	Meta(ctx context.Context, q Querier, table, rowID string) (meta models.RowMeta, found bool, err error)

	// ColumnValue reads the current value of one data column.
	ColumnValue(ctx context.Context, q Querier, table, rowID, column string) (*string, error)

	// InsertRow writes a brand-new local row with all data columns and their
	// stamps in one statement.
	InsertRow(ctx context.Context, q Querier, table, rowID string, values map[string]*string, stamps map[string]models.HLC, rowHLC models.HLC) error

	// ApplyColumn sets one column to value with the given stamp, creating
	// the row if it does not exist, and advances the row HLC. The tombstone
	// pseudo-column is applied to the tombstone flag.
	ApplyColumn(ctx context.Context, q Querier, table, rowID, column string, value *string, stamp models.HLC) error

	// SetTombstone flips the tombstone flag and stamps the tombstone
	// pseudo-column, leaving all other column stamps untouched.
	SetTombstone(ctx context.Context, q Querier, table, rowID string, deleted bool, stamp models.HLC) error

	// Snapshot serializes the full row (data and metadata columns) to JSON
	// for conflict records.
	Snapshot(ctx context.Context, q Querier, table, rowID string) (string, error)

	// HasTable and HasColumn answer schema questions for the skew handler.
	HasTable(ctx context.Context, table string) (bool, error)
	HasColumn(ctx context.Context, table, column string) (bool, error)

	// InvalidateSchemaCache drops cached column sets so a later migration
	// becomes visible to HasColumn.
	InvalidateSchemaCache()

	// Tables returns the configured replicated tables.
	Tables() []SyncTable

	// ReapTombstones physically deletes tombstoned rows of one table whose
	// row HLC wall time is older than cutoff and which have no pending
	// change record left. Returns the number of rows removed.
	ReapTombstones(ctx context.Context, q Querier, table string, cutoff models.HLC) (int64, error)
}

// KeyRepository stores the vault's local data-encryption key.
type KeyRepository interface {
	// GetDEK returns the data-encryption key, or ErrVaultKeyNotFound.
	GetDEK(ctx context.Context) ([]byte, error)

	// SaveDEK stores a freshly generated data-encryption key.
	SaveDEK(ctx context.Context, dek []byte) error
}

// SyncTable names one replicated table and its primary-key column.
type SyncTable struct {
	Name     string
	PKColumn string
}
