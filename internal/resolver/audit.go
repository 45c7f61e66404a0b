// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package resolver

import (
	"context"
	"time"

	"github.com/keyfold/keyfold/models"
)

// UnresolvedConflicts lists the merge decisions no user has acknowledged yet,
// newest first.
func (r *Resolver) UnresolvedConflicts(ctx context.Context) ([]models.ConflictRecord, error) {
	return r.conflicts.ListUnresolved(ctx, r.db)
}

// Conflict returns one conflict record by id.
func (r *Resolver) Conflict(ctx context.Context, id string) (models.ConflictRecord, error) {
	return r.conflicts.Get(ctx, r.db, id)
}

// AcknowledgeConflict marks a conflict as reviewed. The recorded winner is
// not re-applied; a user who disagrees with it edits the row normally, which
// issues a fresh stamp that dominates both sides.
func (r *Resolver) AcknowledgeConflict(ctx context.Context, id string) error {
	return r.conflicts.MarkResolved(ctx, r.db, id, time.Now().UTC())
}

// PendingColumns lists the table/column pairs remote changes referenced but
// the local schema cannot store yet.
func (r *Resolver) PendingColumns(ctx context.Context) ([]models.PendingColumn, error) {
	return r.pending.List(ctx, r.db)
}
