// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the keyfold
// engine. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, and an optional
// JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Vault holds settings of the local vault database.
	Vault Vault `envPrefix:"VAULT_"`

	// Sync holds timing and sizing settings of the sync cycles.
	Sync Sync `envPrefix:"SYNC_"`

	// Retention holds the reaper's retention windows.
	Retention Retention `envPrefix:"RETENTION_"`

	// Tables lists the replicated tables and their primary-key columns.
	// Only settable through the JSON file; when empty, the built-in vault
	// schema registry is used.
	Tables []Table

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged below the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Vault groups settings of the local vault storage.
type Vault struct {
	// DB holds the SQLite connection settings.
	DB VaultDB `envPrefix:"DB_"`
}

// VaultDB holds connection settings for the local vault database.
type VaultDB struct {
	// DSN is the path of the SQLite database file, or ":memory:" for an
	// in-memory vault in tests.
	// Env: VAULT_DB_PATH
	DSN string `env:"PATH"`
}

// Sync holds timing and sizing settings of the periodic sync job.
type Sync struct {
	// Interval is how often the periodic job runs a full sync cycle
	// (e.g. "30s", "5m").
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// RequestTimeout bounds a single outbound backend request.
	// Env: SYNC_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// PushBatchSize caps the number of change messages sent in one push
	// request.
	// Env: SYNC_PUSH_BATCH_SIZE
	PushBatchSize int `env:"PUSH_BATCH_SIZE"`

	// BackoffMin and BackoffMax bound the per-backend exponential backoff
	// applied after failed cycles.
	// Env: SYNC_BACKOFF_MIN, SYNC_BACKOFF_MAX
	BackoffMin time.Duration `env:"BACKOFF_MIN"`
	BackoffMax time.Duration `env:"BACKOFF_MAX"`
}

// Retention holds how long synced bookkeeping data is kept before the
// reaper removes it.
type Retention struct {
	// TombstoneDays is the minimum age, in days, of a fully uploaded
	// tombstoned row before it is physically deleted.
	// Env: RETENTION_TOMBSTONE_DAYS
	TombstoneDays int `env:"TOMBSTONE_DAYS"`

	// ChangeLogDays is the minimum age, in days, of an uploaded change
	// record before it is removed from the change log.
	// Env: RETENTION_CHANGE_LOG_DAYS
	ChangeLogDays int `env:"CHANGE_LOG_DAYS"`
}

// Table names one replicated table and its primary-key column.
type Table struct {
	Name string `json:"name"`
	PK   string `json:"pk"`
}

// defaults returns the built-in fallback configuration. It is merged with
// the lowest priority, so any explicitly configured value wins.
func defaults() *StructuredConfig {
	return &StructuredConfig{
		Sync: Sync{
			Interval:       30 * time.Second,
			RequestTimeout: 15 * time.Second,
			PushBatchSize:  500,
			BackoffMin:     5 * time.Second,
			BackoffMax:     10 * time.Minute,
		},
		Retention: Retention{
			TombstoneDays: 30,
			ChangeLogDays: 30,
		},
		Tables: []Table{
			{Name: "folders", PK: "id"},
			{Name: "items", PK: "id"},
			{Name: "item_fields", PK: "id"},
		},
	}
}

// GetStructuredConfig loads, merges, and validates the engine configuration
// from all available sources in the following priority order (earlier
// sources win for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
