// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package models

import "time"

// ConflictType classifies how a conflict was detected.
type ConflictType string

const (
	// ConflictConcurrentUpdate means both devices wrote the same column
	// without having seen each other's change.
	ConflictConcurrentUpdate ConflictType = "concurrent_update"
)

// Resolution records which side of a conflict the engine applied.
type Resolution string

const (
	ResolutionLocalWins  Resolution = "local_wins"
	ResolutionRemoteWins Resolution = "remote_wins"
)

// ConflictRecord is the durable audit entry written whenever the resolver
// decides between two genuinely concurrent writes to the same column.
// The decision is deterministic (last-writer-wins by HLC), but the record
// keeps the losing snapshot so a user can inspect and reverse it.
//
// Immutable once written, except for the resolution fields which are updated
// when a user acknowledges the conflict.
type ConflictRecord struct {
	ID        string       `json:"id"`
	TableName string       `json:"table_name"`
	Type      ConflictType `json:"type"`

	// ConflictKey is the column both sides wrote. Conflict granularity is
	// column-level: concurrent edits to different columns never conflict.
	ConflictKey string `json:"conflict_key"`

	LocalRowID  string `json:"local_row_id"`
	RemoteRowID string `json:"remote_row_id"`

	// LocalSnapshot is the JSON-serialized local row as it stood when the
	// conflict was detected, LocalHLC the local column's stamp.
	LocalSnapshot string `json:"local_snapshot"`
	LocalHLC      HLC    `json:"local_hlc"`

	// RemoteValue is the incoming column value (nil encodes NULL),
	// RemoteHLC its stamp.
	RemoteValue *string `json:"remote_value"`
	RemoteHLC   HLC     `json:"remote_hlc"`

	DetectedAt time.Time  `json:"detected_at"`
	Resolved   bool       `json:"resolved"`
	Resolution Resolution `json:"resolution"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
