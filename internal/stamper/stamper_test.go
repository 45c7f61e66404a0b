// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package stamper

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/clock"
	"github.com/keyfold/keyfold/internal/config"
	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/models"
)

var testTables = []store.SyncTable{
	{Name: "folders", PKColumn: "id"},
	{Name: "items", PKColumn: "id"},
	{Name: "item_fields", PKColumn: "id"},
}

type fixture struct {
	db      *store.DB
	clock   *clock.Clock
	rows    store.RowRepository
	changes store.ChangeLogRepository
	dirty   store.DirtyTableRepository
	stamper *Stamper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := store.NewConnectSQLite(ctx, config.VaultDB{DSN: ":memory:"}, logger.Nop())
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	clk, err := clock.New(ctx, store.NewClockStateRepository(db, logger.Nop()), logger.Nop())
	require.NoError(t, err)

	rows := store.NewRowRepository(db, testTables, logger.Nop())
	changes := store.NewChangeLogRepository(logger.Nop())
	dirty := store.NewDirtyTableRepository(logger.Nop())

	return &fixture{
		db:      db,
		clock:   clk,
		rows:    rows,
		changes: changes,
		dirty:   dirty,
		stamper: New(db, clk, rows, changes, dirty, logger.Nop()),
	}
}

func strptr(s string) *string { return &s }

func (f *fixture) pendingRecords(t *testing.T, table string) []models.ChangeRecord {
	t.Helper()
	var recs []models.ChangeRecord
	err := f.db.WithTx(context.Background(), func(tx *sql.Tx) error {
		var err error
		recs, err = f.changes.PendingSince(context.Background(), tx, table, models.HLC{})
		return err
	})
	require.NoError(t, err)
	return recs
}

func TestInsert_StampsAllColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.stamper.Insert(ctx, "items", "item-1", map[string]*string{
		"title":  strptr("bank"),
		"secret": strptr("ciphertext"),
	})
	require.NoError(t, err)

	meta, found, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, meta.Tombstone)
	assert.False(t, meta.RowHLC.IsZero())
	assert.Equal(t, meta.RowHLC, meta.StampFor("title"))
	assert.Equal(t, meta.RowHLC, meta.StampFor("secret"))
	assert.Equal(t, meta.RowHLC, meta.StampFor(models.TombstoneColumn))

	recs := f.pendingRecords(t, "items")
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, models.OpInsert, rec.Op)
		assert.Equal(t, models.UploadPending, rec.UploadState)
		assert.Equal(t, meta.RowHLC, rec.HLC)
	}

	dirty, err := f.dirty.List(ctx, f.db)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "items", dirty[0].TableName)
}

func TestInsert_DuplicateRowFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stamper.Insert(ctx, "items", "item-1", map[string]*string{"title": strptr("a")}))

	err := f.stamper.Insert(ctx, "items", "item-1", map[string]*string{"title": strptr("b")})
	assert.ErrorIs(t, err, ErrRowExists)
}

func TestInsert_NoColumns(t *testing.T) {
	f := newFixture(t)

	err := f.stamper.Insert(context.Background(), "items", "item-1", nil)
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestUpdate_StampsOnlyChangedColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stamper.Insert(ctx, "items", "item-1", map[string]*string{
		"title":  strptr("bank"),
		"secret": strptr("old"),
	}))
	insertMeta, _, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)

	require.NoError(t, f.stamper.Update(ctx, "items", "item-1", map[string]*string{
		"secret": strptr("new"),
	}))

	meta, _, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)

	// Only the changed column moved; the untouched column keeps its stamp.
	assert.True(t, meta.StampFor("secret").After(insertMeta.StampFor("secret")))
	assert.Equal(t, insertMeta.StampFor("title"), meta.StampFor("title"))
	assert.Equal(t, meta.StampFor("secret"), meta.RowHLC)

	value, err := f.rows.ColumnValue(ctx, f.db, "items", "item-1", "secret")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "new", *value)
}

func TestUpdate_CoalescesChangeRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stamper.Insert(ctx, "items", "item-1", map[string]*string{"title": strptr("a")}))
	require.NoError(t, f.stamper.Update(ctx, "items", "item-1", map[string]*string{"title": strptr("b")}))
	require.NoError(t, f.stamper.Update(ctx, "items", "item-1", map[string]*string{"title": strptr("c")}))

	// One record per cell, carrying the newest stamp.
	recs := f.pendingRecords(t, "items")
	require.Len(t, recs, 1)
	assert.Equal(t, "title", recs[0].ColumnName)
	assert.Equal(t, models.OpUpdate, recs[0].Op)

	meta, _, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)
	assert.Equal(t, meta.StampFor("title"), recs[0].HLC)
}

func TestUpdate_MissingRow(t *testing.T) {
	f := newFixture(t)

	err := f.stamper.Update(context.Background(), "items", "ghost", map[string]*string{"title": strptr("x")})
	assert.ErrorIs(t, err, store.ErrRowNotFound)
}

func TestDelete_StampsOnlyTombstone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stamper.Insert(ctx, "items", "item-1", map[string]*string{"title": strptr("bank")}))
	insertMeta, _, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)

	require.NoError(t, f.stamper.Delete(ctx, "items", "item-1"))

	meta, _, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)
	assert.True(t, meta.Tombstone)
	assert.True(t, meta.StampFor(models.TombstoneColumn).After(insertMeta.StampFor(models.TombstoneColumn)))
	assert.Equal(t, insertMeta.StampFor("title"), meta.StampFor("title"))

	recs := f.pendingRecords(t, "items")
	var tombstoneRec *models.ChangeRecord
	for i := range recs {
		if recs[i].ColumnName == models.TombstoneColumn {
			tombstoneRec = &recs[i]
		}
	}
	require.NotNil(t, tombstoneRec)
	assert.Equal(t, models.OpDelete, tombstoneRec.Op)
}

func TestInsert_ReusesTombstonedUniqueKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cols := map[string]*string{"parent_id": strptr("root"), "name": strptr("docs")}
	require.NoError(t, f.stamper.Insert(ctx, "folders", "folder-1", cols))

	// While the first row is live the unique index rejects the sibling.
	err := f.stamper.Insert(ctx, "folders", "folder-2", cols)
	require.Error(t, err)

	require.NoError(t, f.stamper.Delete(ctx, "folders", "folder-1"))

	// Uniqueness only covers live rows, so the key is free again after the
	// soft delete even though the tombstoned row has not been reaped yet.
	require.NoError(t, f.stamper.Insert(ctx, "folders", "folder-2", cols))

	oldMeta, found, err := f.rows.Meta(ctx, f.db, "folders", "folder-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, oldMeta.Tombstone)

	newMeta, found, err := f.rows.Meta(ctx, f.db, "folders", "folder-2")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, newMeta.Tombstone)

	name, err := f.rows.ColumnValue(ctx, f.db, "folders", "folder-2", "name")
	require.NoError(t, err)
	require.NotNil(t, name)
	assert.Equal(t, "docs", *name)
}

func TestRestore_WinsOverEarlierDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stamper.Insert(ctx, "items", "item-1", map[string]*string{"title": strptr("bank")}))
	require.NoError(t, f.stamper.Delete(ctx, "items", "item-1"))
	require.NoError(t, f.stamper.Restore(ctx, "items", "item-1"))

	meta, _, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)
	assert.False(t, meta.Tombstone)
}
