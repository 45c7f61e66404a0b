// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

// Package clock implements the vault's hybrid logical clock. Every stamp the
// engine hands out is strictly greater than every stamp it has issued or
// observed before, across process restarts.
package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/models"
)

// ErrPersistingClock is returned when the clock state cannot be saved. A
// timestamp whose persistence failed is never handed out: reusing a stale
// last-HLC after a crash could issue duplicate stamps and break convergence.
var ErrPersistingClock = errors.New("persisting clock state failed")

// Clock issues and merges hybrid logical timestamps for one vault.
type Clock struct {
	mu     sync.Mutex
	nodeID string
	last   models.HLC

	repo   store.ClockStateRepository
	nowFn  func() time.Time
	logger *logger.Logger
}

// New loads the persisted clock state, initializing a fresh node identity
// for a vault that has never issued a timestamp.
func New(ctx context.Context, repo store.ClockStateRepository, log *logger.Logger) (*Clock, error) {
	state, err := repo.Get(ctx)
	if errors.Is(err, store.ErrClockStateNotFound) {
		state = models.VaultClockState{NodeID: uuid.NewString()}
		if err = repo.Init(ctx, state); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistingClock, err)
		}
		log.Info().Str("func", "clock.New").Str("node_id", state.NodeID).Msg("initialized new vault clock")
	} else if err != nil {
		return nil, fmt.Errorf("loading clock state: %w", err)
	}

	return &Clock{
		nodeID: state.NodeID,
		last:   state.LastHLC,
		repo:   repo,
		nowFn:  time.Now,
		logger: log,
	}, nil
}

// NodeID returns the vault's stable node identity.
func (c *Clock) NodeID() string {
	return c.nodeID
}

// Last returns the last issued or observed timestamp.
func (c *Clock) Last() models.HLC {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Now issues the next timestamp. The candidate takes the current wall time;
// when the wall clock has not advanced past the last stamp (or went
// backwards), the last wall time is kept and the counter incremented.
// The new state is persisted before the stamp is returned.
func (c *Clock) Now(ctx context.Context) (models.HLC, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wallMillis := c.nowFn().UnixMilli()

	next := models.HLC{WallMillis: wallMillis, Counter: 0, NodeID: c.nodeID}
	if next.Compare(c.last) <= 0 {
		next = models.HLC{
			WallMillis: c.last.WallMillis,
			Counter:    c.last.Counter + 1,
			NodeID:     c.nodeID,
		}
	}

	if err := c.persist(ctx, next); err != nil {
		return models.HLC{}, err
	}

	c.last = next
	return next, nil
}

// Observe folds a remote timestamp into the clock so every subsequently
// issued stamp is greater than it. Called for every received remote change,
// winning or losing. Returns the merged last timestamp.
func (c *Clock) Observe(ctx context.Context, remote models.HLC) (models.HLC, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote.Compare(c.last) <= 0 {
		return c.last, nil
	}

	merged := models.HLC{
		WallMillis: remote.WallMillis,
		Counter:    remote.Counter,
		NodeID:     c.nodeID,
	}

	if err := c.persist(ctx, merged); err != nil {
		return models.HLC{}, err
	}

	c.last = merged
	return merged, nil
}

func (c *Clock) persist(ctx context.Context, next models.HLC) error {
	if err := c.repo.SaveLastHLC(ctx, next); err != nil {
		c.logger.Err(err).Str("func", "Clock.persist").Msg("failed to persist clock state")
		return fmt.Errorf("%w: %w", ErrPersistingClock, err)
	}
	return nil
}
