// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// HLC is a hybrid logical clock timestamp: wall-clock milliseconds combined
// with a logical counter and the issuing node's identifier.
//
// HLCs are totally ordered: wall time first, then counter, then node id as a
// deterministic tie-break. The engine relies on this order being the same on
// every device, so the comparison must never consult local state.
type HLC struct {
	// WallMillis is the wall-clock component in Unix milliseconds.
	WallMillis int64

	// Counter is the logical component. It is incremented whenever a
	// timestamp must be issued with a wall-clock value that is not strictly
	// greater than the previously issued or observed one.
	Counter uint32

	// NodeID identifies the device that issued the timestamp.
	NodeID string
}

// hlcSeparator joins the three components in the textual encoding.
// The encoding is built so that lexicographic order of encoded strings equals
// HLC order, which lets SQL "WHERE hlc > ?" and "ORDER BY hlc" work directly
// on the stored TEXT column.
const hlcSeparator = ":"

// String encodes the timestamp as
// "<13-digit wall millis>:<10-digit counter>:<node id>".
// Zero-padding keeps the encoding lexicographically ordered; the counter
// width covers the full uint32 range so a long run of logical increments
// cannot break the ordering.
func (t HLC) String() string {
	return fmt.Sprintf("%013d%s%010d%s%s", t.WallMillis, hlcSeparator, t.Counter, hlcSeparator, t.NodeID)
}

// IsZero reports whether t is the zero timestamp (never issued).
func (t HLC) IsZero() bool {
	return t.WallMillis == 0 && t.Counter == 0 && t.NodeID == ""
}

// Compare returns -1 if t orders before other, 0 if they are identical and
// +1 if t orders after other.
func (t HLC) Compare(other HLC) int {
	if t.WallMillis != other.WallMillis {
		if t.WallMillis < other.WallMillis {
			return -1
		}
		return 1
	}
	if t.Counter != other.Counter {
		if t.Counter < other.Counter {
			return -1
		}
		return 1
	}
	return strings.Compare(t.NodeID, other.NodeID)
}

// Before reports whether t orders strictly before other.
func (t HLC) Before(other HLC) bool { return t.Compare(other) < 0 }

// After reports whether t orders strictly after other.
func (t HLC) After(other HLC) bool { return t.Compare(other) > 0 }

// Equal reports whether both timestamps are identical, node id included.
func (t HLC) Equal(other HLC) bool { return t.Compare(other) == 0 }

// MarshalText implements encoding.TextMarshaler so HLC values serialize as
// their sortable string form in JSON payloads and SQL TEXT columns.
func (t HLC) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *HLC) UnmarshalText(data []byte) error {
	parsed, err := ParseHLC(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseHLC decodes the textual form produced by HLC.String.
// An empty string decodes to the zero timestamp, which is how unset
// watermarks are persisted.
func ParseHLC(s string) (HLC, error) {
	if s == "" {
		return HLC{}, nil
	}

	parts := strings.SplitN(s, hlcSeparator, 3)
	if len(parts) != 3 {
		return HLC{}, fmt.Errorf("malformed hlc %q: expected 3 segments", s)
	}

	wall, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return HLC{}, fmt.Errorf("malformed hlc %q: wall segment: %w", s, err)
	}

	counter, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return HLC{}, fmt.Errorf("malformed hlc %q: counter segment: %w", s, err)
	}

	return HLC{WallMillis: wall, Counter: uint32(counter), NodeID: parts[2]}, nil
}

// MaxHLC returns the later of the two timestamps.
func MaxHLC(a, b HLC) HLC {
	if a.After(b) {
		return a
	}
	return b
}
