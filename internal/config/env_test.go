// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_AllFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"CONFIG": "/path/to/config.json",

		"VAULT_DB_PATH": "/home/user/.keyfold/vault.db",

		"SYNC_INTERVAL":        "45s",
		"SYNC_REQUEST_TIMEOUT": "15s",
		"SYNC_PUSH_BATCH_SIZE": "250",
		"SYNC_BACKOFF_MIN":     "5s",
		"SYNC_BACKOFF_MAX":     "10m",

		"RETENTION_TOMBSTONE_DAYS":  "14",
		"RETENTION_CHANGE_LOG_DAYS": "21",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)

	assert.Equal(t, "/home/user/.keyfold/vault.db", cfg.Vault.DB.DSN)

	assert.Equal(t, 45*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 15*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, 250, cfg.Sync.PushBatchSize)
	assert.Equal(t, 5*time.Second, cfg.Sync.BackoffMin)
	assert.Equal(t, 10*time.Minute, cfg.Sync.BackoffMax)

	assert.Equal(t, 14, cfg.Retention.TombstoneDays)
	assert.Equal(t, 21, cfg.Retention.ChangeLogDays)
}

func TestParseEnv_PartialFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"VAULT_DB_PATH": "/tmp/vault.db",
		"SYNC_INTERVAL": "1m",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vault.db", cfg.Vault.DB.DSN)

	// Sync partially filled
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Zero(t, cfg.Sync.RequestTimeout)
	assert.Zero(t, cfg.Sync.PushBatchSize)

	// Others untouched
	assert.Equal(t, Retention{}, cfg.Retention)
	assert.Empty(t, cfg.JSONFilePath)
}

func TestParseEnv_EmptyEnv(t *testing.T) {
	// Arrange
	clearEnvVars(t)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	// All nested fields are non-pointer values, so "empty" state is
	// represented by zero values.
	assert.Equal(t, "", cfg.JSONFilePath)

	assert.Equal(t, Vault{}, cfg.Vault)
	assert.Equal(t, Sync{}, cfg.Sync)
	assert.Equal(t, Retention{}, cfg.Retention)
}

func TestParseEnv_InvalidDuration(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"SYNC_INTERVAL": "invalid_duration",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.Error(t, err)
	// Error wording may vary depending on parseEnv internals; assert loosely.
	assert.Contains(t, err.Error(), "env")
}

func TestParseEnv_DurationFormats(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"hours", "2h", 2 * time.Hour},
		{"minutes", "45m", 45 * time.Minute},
		{"seconds", "30s", 30 * time.Second},
		{"combined", "1h30m", 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			envVars := map[string]string{
				"SYNC_REQUEST_TIMEOUT": tt.envValue,
			}
			setEnvVars(t, envVars)

			// Act
			cfg := &StructuredConfig{}
			err := parseEnv(cfg)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Sync.RequestTimeout)
		})
	}
}

// Helpers

func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	clearEnvVars(t)
	for k, v := range vars {
		require.NoError(t, os.Setenv(k, v))
		t.Cleanup(func() { _ = os.Unsetenv(k) })
	}
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	keys := []string{
		"CONFIG",

		"VAULT_DB_PATH",

		"SYNC_INTERVAL",
		"SYNC_REQUEST_TIMEOUT",
		"SYNC_PUSH_BATCH_SIZE",
		"SYNC_BACKOFF_MIN",
		"SYNC_BACKOFF_MAX",

		"RETENTION_TOMBSTONE_DAYS",
		"RETENTION_CHANGE_LOG_DAYS",
	}
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}
