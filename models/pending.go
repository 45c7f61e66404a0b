// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package models

import "time"

// PendingColumn marks a (table, column) pair that a pull delivered but the
// local schema does not have yet — the remote device runs a newer schema
// version. No row data is stored: the backend retains the authoritative
// history, and the entry's existence alone means a targeted re-pull is owed
// once a migration adds the column locally.
type PendingColumn struct {
	TableName   string    `json:"table_name"`
	ColumnName  string    `json:"column_name"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}
