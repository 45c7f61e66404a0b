// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *StructuredConfig {
	cfg := defaults()
	cfg.Vault.DB.DSN = "/tmp/vault.db"
	return cfg
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *StructuredConfig)
		wantErr error
	}{
		{
			name:    "empty vault db path",
			mutate:  func(cfg *StructuredConfig) { cfg.Vault.DB.DSN = "" },
			wantErr: ErrInvalidVaultConfigs,
		},
		{
			name:    "zero sync interval",
			mutate:  func(cfg *StructuredConfig) { cfg.Sync.Interval = 0 },
			wantErr: ErrInvalidSyncConfigs,
		},
		{
			name:    "zero push batch size",
			mutate:  func(cfg *StructuredConfig) { cfg.Sync.PushBatchSize = 0 },
			wantErr: ErrInvalidSyncConfigs,
		},
		{
			name: "inverted backoff range",
			mutate: func(cfg *StructuredConfig) {
				cfg.Sync.BackoffMin = time.Minute
				cfg.Sync.BackoffMax = time.Second
			},
			wantErr: ErrInvalidSyncConfigs,
		},
		{
			name:    "zero tombstone retention",
			mutate:  func(cfg *StructuredConfig) { cfg.Retention.TombstoneDays = 0 },
			wantErr: ErrInvalidRetentionConfigs,
		},
		{
			name:    "table without pk",
			mutate:  func(cfg *StructuredConfig) { cfg.Tables = []Table{{Name: "items"}} },
			wantErr: ErrInvalidTableConfigs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
