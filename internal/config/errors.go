package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidVaultConfigs indicates invalid vault storage settings
	// (for example, an empty database path).
	ErrInvalidVaultConfigs = errors.New("invalid vault configuration")
	// ErrInvalidSyncConfigs indicates invalid sync settings (for example,
	// a non-positive interval or an inverted backoff range).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
	// ErrInvalidRetentionConfigs indicates invalid retention windows.
	ErrInvalidRetentionConfigs = errors.New("invalid retention configuration")
	// ErrInvalidTableConfigs indicates an invalid replicated table entry
	// (for example, a missing primary-key column).
	ErrInvalidTableConfigs = errors.New("invalid table configuration")
)
