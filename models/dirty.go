// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package models

import "time"

// DirtyTable marks a replicated table that has at least one change record
// not yet pushed to at least one backend. Its existence lets a push cycle
// skip tables without unsynced mutations instead of scanning the whole
// database.
type DirtyTable struct {
	TableName  string    `json:"table_name"`
	ModifiedAt time.Time `json:"modified_at"`
}
