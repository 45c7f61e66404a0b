// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package config

// validate checks that the final merged [StructuredConfig] satisfies all
// engine invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a sentinel error otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Vault.DB.DSN == "" {
		return ErrInvalidVaultConfigs
	}

	if cfg.Sync.Interval <= 0 || cfg.Sync.RequestTimeout <= 0 || cfg.Sync.PushBatchSize <= 0 {
		return ErrInvalidSyncConfigs
	}
	if cfg.Sync.BackoffMin <= 0 || cfg.Sync.BackoffMax < cfg.Sync.BackoffMin {
		return ErrInvalidSyncConfigs
	}

	if cfg.Retention.TombstoneDays <= 0 || cfg.Retention.ChangeLogDays <= 0 {
		return ErrInvalidRetentionConfigs
	}

	for _, t := range cfg.Tables {
		if t.Name == "" || t.PK == "" {
			return ErrInvalidTableConfigs
		}
	}

	return nil
}
