// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package models

import (
	"encoding/json"
	"fmt"
)

// TombstoneColumn is the name of the stamped pseudo-column carrying the
// soft-delete flag. A delete is a write of "1" to this column; it competes
// with other writes to the same column under normal column-level LWW, which
// means a later-stamped undelete can survive an earlier delete.
const TombstoneColumn = "tombstone"

// TombstoneSet and TombstoneClear are the wire values of the tombstone
// pseudo-column.
const (
	TombstoneSet   = "1"
	TombstoneClear = "0"
)

// RowMeta is the replication metadata every row in a replicated table
// carries: the row-level stamp (latest stamp to any column), the per-column
// stamps, and the tombstone flag.
type RowMeta struct {
	RowHLC     HLC
	ColumnHLCs map[string]HLC
	Tombstone  bool
}

// StampFor returns the stamp that last wrote column, or the zero HLC if the
// column has never been stamped on this row.
func (m RowMeta) StampFor(column string) HLC {
	return m.ColumnHLCs[column]
}

// EncodeColumnHLCs serializes the per-column stamp map to the JSON form
// stored in the row's column_hlcs TEXT column.
func EncodeColumnHLCs(stamps map[string]HLC) (string, error) {
	if len(stamps) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(stamps)
	if err != nil {
		return "", fmt.Errorf("encode column hlcs: %w", err)
	}
	return string(raw), nil
}

// DecodeColumnHLCs parses the JSON stored in a row's column_hlcs column.
// An empty string decodes to an empty map.
func DecodeColumnHLCs(raw string) (map[string]HLC, error) {
	stamps := make(map[string]HLC)
	if raw == "" || raw == "{}" {
		return stamps, nil
	}
	if err := json.Unmarshal([]byte(raw), &stamps); err != nil {
		return nil, fmt.Errorf("decode column hlcs: %w", err)
	}
	return stamps, nil
}
