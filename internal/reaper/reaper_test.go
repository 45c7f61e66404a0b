// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/clock"
	"github.com/keyfold/keyfold/internal/config"
	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/stamper"
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
	stamper *stamper.Stamper
	reaper  *Reaper
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

	reaper := New(db, rows, changes, config.Retention{TombstoneDays: 0, ChangeLogDays: 0}, logger.Nop())
	// Move "now" past every stamp the test issues, so zero-day retention
	// windows expire immediately and deterministically.
	reaper.nowFn = func() time.Time { return time.Now().Add(time.Hour) }

	return &fixture{
		db:      db,
		clock:   clk,
		rows:    rows,
		changes: changes,
		stamper: stamper.New(db, clk, rows, changes, dirty, logger.Nop()),
		reaper:  reaper,
	}
}

func strptr(s string) *string { return &s }

// markAllUploaded simulates every enabled backend having acknowledged all
// pending change records.
func (f *fixture) markAllUploaded(t *testing.T) {
	t.Helper()
	_, err := f.changes.MarkUploadedThrough(context.Background(), f.db, f.clock.Last())
	require.NoError(t, err)
}

func TestCleanup_RemovesPropagatedTombstones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stamper.Insert(ctx, "items", "item-1", map[string]*string{"title": strptr("bank")}))
	require.NoError(t, f.stamper.Delete(ctx, "items", "item-1"))
	f.markAllUploaded(t)

	require.NoError(t, f.reaper.Cleanup(ctx))

	_, found, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)
	assert.False(t, found, "propagated tombstone should be physically deleted")

	recs, err := f.changes.PendingSince(ctx, f.db, "items", models.HLC{})
	require.NoError(t, err)
	assert.Empty(t, recs, "uploaded change records past retention should be trimmed")
}

func TestCleanup_KeepsTombstonesWithPendingChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stamper.Insert(ctx, "items", "item-1", map[string]*string{"title": strptr("bank")}))
	require.NoError(t, f.stamper.Delete(ctx, "items", "item-1"))
	// No backend has acknowledged anything: the tombstone must survive.

	require.NoError(t, f.reaper.Cleanup(ctx))

	meta, found, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, meta.Tombstone)
}

func TestCleanup_KeepsLiveRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stamper.Insert(ctx, "items", "item-1", map[string]*string{"title": strptr("bank")}))
	f.markAllUploaded(t)

	require.NoError(t, f.reaper.Cleanup(ctx))

	_, found, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCleanup_KeepsTombstonesInsideRetentionWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stamper.Insert(ctx, "items", "item-1", map[string]*string{"title": strptr("bank")}))
	require.NoError(t, f.stamper.Delete(ctx, "items", "item-1"))
	f.markAllUploaded(t)

	f.reaper.cfg = config.Retention{TombstoneDays: 30, ChangeLogDays: 30}
	f.reaper.nowFn = time.Now

	require.NoError(t, f.reaper.Cleanup(ctx))

	meta, found, err := f.rows.Meta(ctx, f.db, "items", "item-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, meta.Tombstone)
}
