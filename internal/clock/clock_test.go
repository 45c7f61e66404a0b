// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package clock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/models"
)

// fakeClockRepo is an in-memory ClockStateRepository with an injectable
// persistence failure.
type fakeClockRepo struct {
	state   models.VaultClockState
	hasInit bool
	saveErr error
	saves   int
}

func (f *fakeClockRepo) Get(_ context.Context) (models.VaultClockState, error) {
	if !f.hasInit {
		return models.VaultClockState{}, store.ErrClockStateNotFound
	}
	return f.state, nil
}

func (f *fakeClockRepo) Init(_ context.Context, state models.VaultClockState) error {
	f.state = state
	f.hasInit = true
	return nil
}

func (f *fakeClockRepo) SaveLastHLC(_ context.Context, last models.HLC) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.state.LastHLC = last
	return nil
}

func newTestClock(t *testing.T, repo *fakeClockRepo) *Clock {
	t.Helper()
	c, err := New(context.Background(), repo, logger.Nop())
	require.NoError(t, err)
	return c
}

func TestNew_InitializesFreshVault(t *testing.T) {
	repo := &fakeClockRepo{}

	c := newTestClock(t, repo)

	assert.True(t, repo.hasInit)
	assert.NotEmpty(t, c.NodeID())
	assert.True(t, c.Last().IsZero())
}

func TestNew_LoadsPersistedState(t *testing.T) {
	last := models.HLC{WallMillis: 1700000000000, Counter: 7, NodeID: "node-a"}
	repo := &fakeClockRepo{
		state:   models.VaultClockState{NodeID: "node-a", LastHLC: last},
		hasInit: true,
	}

	c := newTestClock(t, repo)

	assert.Equal(t, "node-a", c.NodeID())
	assert.Equal(t, last, c.Last())
}

func TestNow_AdvancesWithWallClock(t *testing.T) {
	repo := &fakeClockRepo{}
	c := newTestClock(t, repo)
	c.nowFn = func() time.Time { return time.UnixMilli(1000) }

	first, err := c.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), first.WallMillis)
	assert.Equal(t, uint32(0), first.Counter)

	c.nowFn = func() time.Time { return time.UnixMilli(2000) }
	second, err := c.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), second.WallMillis)
	assert.Equal(t, uint32(0), second.Counter)
	assert.True(t, second.After(first))
}

func TestNow_StalledWallClockIncrementsCounter(t *testing.T) {
	repo := &fakeClockRepo{}
	c := newTestClock(t, repo)
	c.nowFn = func() time.Time { return time.UnixMilli(1000) }

	var prev models.HLC
	for i := 0; i < 5; i++ {
		stamp, err := c.Now(context.Background())
		require.NoError(t, err)
		assert.True(t, stamp.After(prev), "stamp %d not monotonic", i)
		prev = stamp
	}

	assert.Equal(t, int64(1000), prev.WallMillis)
	assert.Equal(t, uint32(4), prev.Counter)
}

func TestNow_BackwardsWallClockKeepsMonotonicity(t *testing.T) {
	repo := &fakeClockRepo{}
	c := newTestClock(t, repo)

	c.nowFn = func() time.Time { return time.UnixMilli(5000) }
	first, err := c.Now(context.Background())
	require.NoError(t, err)

	// Wall clock jumps back (NTP correction).
	c.nowFn = func() time.Time { return time.UnixMilli(3000) }
	second, err := c.Now(context.Background())
	require.NoError(t, err)

	assert.True(t, second.After(first))
	assert.Equal(t, int64(5000), second.WallMillis)
	assert.Equal(t, uint32(1), second.Counter)
}

func TestNow_PersistenceFailureReturnsError(t *testing.T) {
	repo := &fakeClockRepo{}
	c := newTestClock(t, repo)

	repo.saveErr = errors.New("disk full")

	_, err := c.Now(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistingClock)

	// The failed stamp must not have become the new last value.
	assert.True(t, c.Last().IsZero())
}

func TestObserve_ForwardsTheClock(t *testing.T) {
	repo := &fakeClockRepo{}
	c := newTestClock(t, repo)
	c.nowFn = func() time.Time { return time.UnixMilli(1000) }

	remote := models.HLC{WallMillis: 9000, Counter: 3, NodeID: "other-node"}
	_, err := c.Observe(context.Background(), remote)
	require.NoError(t, err)

	// The next issued stamp must exceed the observed remote stamp.
	next, err := c.Now(context.Background())
	require.NoError(t, err)
	assert.True(t, next.After(remote))
	assert.Equal(t, int64(9000), next.WallMillis)
	assert.Equal(t, uint32(4), next.Counter)
}

func TestObserve_StaleRemoteIsNoop(t *testing.T) {
	repo := &fakeClockRepo{}
	c := newTestClock(t, repo)
	c.nowFn = func() time.Time { return time.UnixMilli(5000) }

	issued, err := c.Now(context.Background())
	require.NoError(t, err)
	savesBefore := repo.saves

	stale := models.HLC{WallMillis: 100, Counter: 0, NodeID: "other-node"}
	last, err := c.Observe(context.Background(), stale)
	require.NoError(t, err)

	assert.Equal(t, issued, last)
	assert.Equal(t, savesBefore, repo.saves, "stale observe must not persist")
}
