// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHLC_CompareOrder(t *testing.T) {
	tests := []struct {
		name string
		a, b HLC
		want int
	}{
		{
			name: "WallTimeDominates",
			a:    HLC{WallMillis: 101, Counter: 0, NodeID: "a"},
			b:    HLC{WallMillis: 100, Counter: 99, NodeID: "z"},
			want: 1,
		},
		{
			name: "CounterBreaksEqualWall",
			a:    HLC{WallMillis: 100, Counter: 2, NodeID: "a"},
			b:    HLC{WallMillis: 100, Counter: 3, NodeID: "a"},
			want: -1,
		},
		{
			name: "NodeIDBreaksFullTie",
			a:    HLC{WallMillis: 100, Counter: 0, NodeID: "node-b"},
			b:    HLC{WallMillis: 100, Counter: 0, NodeID: "node-a"},
			want: 1,
		},
		{
			name: "Identical",
			a:    HLC{WallMillis: 100, Counter: 0, NodeID: "node-a"},
			b:    HLC{WallMillis: 100, Counter: 0, NodeID: "node-a"},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

// TestHLC_StringOrderMatchesCompare pins the property the store depends on:
// lexicographic order of the encoded form equals HLC order, so SQL range
// scans over the TEXT column are correct.
func TestHLC_StringOrderMatchesCompare(t *testing.T) {
	seq := []HLC{
		{},
		{WallMillis: 1, Counter: 0, NodeID: "a"},
		{WallMillis: 1, Counter: 1, NodeID: "a"},
		{WallMillis: 1, Counter: 1, NodeID: "b"},
		{WallMillis: 2, Counter: 0, NodeID: "a"},
		// A device stuck behind a wall-clock jump keeps incrementing the
		// counter, so the encoding must stay ordered across the full uint32
		// range, not just small values.
		{WallMillis: 1000, Counter: 99999, NodeID: "n"},
		{WallMillis: 1000, Counter: 100000, NodeID: "n"},
		{WallMillis: 1000, Counter: 4294967295, NodeID: "n"},
		{WallMillis: 1001, Counter: 0, NodeID: "n"},
		{WallMillis: 1755555555555, Counter: 12, NodeID: "node-1"},
	}

	for i := 1; i < len(seq); i++ {
		prev, cur := seq[i-1], seq[i]
		assert.True(t, prev.Before(cur), "%v should order before %v", prev, cur)
		assert.Less(t, prev.String(), cur.String(),
			"encoded %q should sort before %q", prev.String(), cur.String())
	}
}

func TestParseHLC_RoundTrip(t *testing.T) {
	orig := HLC{WallMillis: 1755555555555, Counter: 7, NodeID: "3f2c9b1e"}

	parsed, err := ParseHLC(orig.String())
	require.NoError(t, err)
	assert.Equal(t, orig, parsed)
}

func TestParseHLC_EmptyIsZero(t *testing.T) {
	parsed, err := ParseHLC("")
	require.NoError(t, err)
	assert.True(t, parsed.IsZero())
}

func TestParseHLC_Malformed(t *testing.T) {
	for _, bad := range []string{"nonsense", "123:456", "abc:00001:n", "0000000000001:xyz:n"} {
		_, err := ParseHLC(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestSyncBackend_Validate(t *testing.T) {
	valid := func() SyncBackend {
		return SyncBackend{
			Name:          "primary",
			Kind:          BackendHTTP,
			HTTP:          &HTTPBackendConfig{BaseURL: "https://sync.example.com", AccessToken: "t"},
			RemoteVaultID: "vault-1",
		}
	}

	t.Run("ValidHTTP", func(t *testing.T) {
		b := valid()
		require.NoError(t, b.Validate())
	})

	t.Run("KindConfigMismatch", func(t *testing.T) {
		b := valid()
		b.Kind = BackendS3
		assert.ErrorIs(t, b.Validate(), ErrBackendConfigShape)
	})

	t.Run("TwoConfigs", func(t *testing.T) {
		b := valid()
		b.Postgres = &PostgresBackendConfig{DSN: "postgres://"}
		assert.ErrorIs(t, b.Validate(), ErrBackendConfigShape)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		b := valid()
		b.Kind = "ftp"
		assert.ErrorIs(t, b.Validate(), ErrBackendKindUnknown)
	})

	t.Run("MissingVaultID", func(t *testing.T) {
		b := valid()
		b.RemoteVaultID = ""
		assert.ErrorIs(t, b.Validate(), ErrBackendConfigFields)
	})

	t.Run("S3MissingBucket", func(t *testing.T) {
		b := SyncBackend{
			Name:          "bucket",
			Kind:          BackendS3,
			S3:            &S3BackendConfig{Region: "eu-west-1"},
			RemoteVaultID: "vault-1",
		}
		assert.ErrorIs(t, b.Validate(), ErrBackendConfigFields)
	})
}
