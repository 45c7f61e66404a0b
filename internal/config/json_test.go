package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_Success(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")

	// Durations in JSON must be duration strings (e.g. "30s").
	jsonBody := `{
		"vault": {
			"db": { "path": "/home/user/.keyfold/vault.db" }
		},
		"sync": {
			"interval": "45s",
			"request_timeout": "15s",
			"push_batch_size": 250,
			"backoff_min": "5s",
			"backoff_max": "10m"
		},
		"retention": {
			"tombstone_days": 14,
			"change_log_days": 21
		},
		"tables": [
			{ "name": "folders", "pk": "id" },
			{ "name": "items", "pk": "id" }
		]
	}`

	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/home/user/.keyfold/vault.db", cfg.Vault.DB.DSN)

	assert.Equal(t, 45*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 15*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, 250, cfg.Sync.PushBatchSize)
	assert.Equal(t, 5*time.Second, cfg.Sync.BackoffMin)
	assert.Equal(t, 10*time.Minute, cfg.Sync.BackoffMax)

	assert.Equal(t, 14, cfg.Retention.TombstoneDays)
	assert.Equal(t, 21, cfg.Retention.ChangeLogDays)

	require.Len(t, cfg.Tables, 2)
	assert.Equal(t, Table{Name: "folders", PK: "id"}, cfg.Tables[0])
	assert.Equal(t, Table{Name: "items", PK: "id"}, cfg.Tables[1])
}

func TestParseJSON_FileNotFound(t *testing.T) {
	// Act
	cfg, err := parseJSON("definitely-does-not-exist.json")

	// Assert
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "error reading a json file")
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`{ this is not json }`), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "error decoding json configs")
}

func TestParseJSON_InvalidDuration(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "bad_duration.json")

	jsonBody := `{
		"sync": { "interval": "not-a-duration" }
	}`
	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "error decoding json configs")
}

func TestParseJSON_EmptyObject(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// With non-pointer nested structs, all fields are zero values.
	assert.Equal(t, StructuredConfig{}, *cfg)
}

func TestParseJSON_PartialObject(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "partial.json")

	jsonBody := `{
		"sync": { "interval": "2m" }
	}`
	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	assert.Zero(t, cfg.Sync.RequestTimeout)
	assert.Zero(t, cfg.Sync.PushBatchSize)

	// Others remain zero
	assert.Equal(t, Vault{}, cfg.Vault)
	assert.Equal(t, Retention{}, cfg.Retention)
	assert.Empty(t, cfg.Tables)
}
