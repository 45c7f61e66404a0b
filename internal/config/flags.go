package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-d vault database file path
//	-c/-config json file path with configs
//	-sync-interval period of the background sync job (e.g., "30s", "5m")
//	-request-timeout outbound backend request timeout (e.g., "15s")
//	-push-batch-size maximum change messages per push request
//	-tombstone-retention-days age of deleted rows before physical removal
func ParseFlags() *StructuredConfig {
	var vaultDBPath string
	var jsonConfigPath string
	var syncInterval time.Duration
	var requestTimeout time.Duration
	var pushBatchSize int
	var tombstoneRetentionDays int

	flag.StringVar(&vaultDBPath, "d", "", "Vault database file path")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Background sync interval (e.g., 30s, 5m)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Backend request timeout (e.g., 15s)")
	flag.IntVar(&pushBatchSize, "push-batch-size", 0, "Maximum change messages per push request")
	flag.IntVar(&tombstoneRetentionDays, "tombstone-retention-days", 0, "Days before tombstoned rows are reaped")

	flag.Parse()

	return &StructuredConfig{
		Vault: Vault{
			DB: VaultDB{
				DSN: vaultDBPath,
			},
		},
		Sync: Sync{
			Interval:       syncInterval,
			RequestTimeout: requestTimeout,
			PushBatchSize:  pushBatchSize,
		},
		Retention: Retention{
			TombstoneDays: tombstoneRetentionDays,
		},
		JSONFilePath: jsonConfigPath,
	}
}
