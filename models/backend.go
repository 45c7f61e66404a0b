// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package models

import (
	"errors"
	"fmt"
	"net/url"
)

// BackendKind discriminates the sync backend tagged union. Each kind carries
// its own typed configuration struct; exactly one of the config pointers on
// SyncBackend must be non-nil and must match the kind.
type BackendKind string

const (
	BackendHTTP     BackendKind = "http"
	BackendS3       BackendKind = "s3"
	BackendPostgres BackendKind = "postgres"
)

var (
	ErrBackendKindUnknown  = errors.New("unknown backend kind")
	ErrBackendConfigShape  = errors.New("backend config does not match its kind")
	ErrBackendConfigFields = errors.New("backend config is missing required fields")
)

// HTTPBackendConfig configures a keyfold sync server reached over
// authenticated HTTPS.
type HTTPBackendConfig struct {
	// BaseURL is the server root, e.g. "https://sync.example.com".
	BaseURL string `json:"base_url"`

	// AccessToken is the bearer token presented on every request.
	AccessToken string `json:"access_token"`
}

// S3BackendConfig configures an object-storage backend. Change batches are
// stored as JSON objects under Prefix, keyed by their maximum HLC so that
// object listing order equals HLC order.
type S3BackendConfig struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Prefix          string `json:"prefix"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`

	// Endpoint overrides the AWS endpoint for S3-compatible stores
	// (MinIO, Ceph RGW). Empty means AWS.
	Endpoint string `json:"endpoint,omitempty"`
}

// PostgresBackendConfig configures a self-hosted relay: a shared Postgres
// database holding the replicated change log for one or more vaults.
type PostgresBackendConfig struct {
	// DSN is the pgx connection string.
	DSN string `json:"dsn"`
}

// SyncBackend is one configured replication target and the engine's
// per-backend bookkeeping.
//
// Lifecycle: created disabled and unverified → credentials verified → sync
// key ensured → enabled → participates in push/pull cycles. Disabling or
// deleting a backend never deletes already-synced remote data.
type SyncBackend struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Kind BackendKind `json:"kind"`

	HTTP     *HTTPBackendConfig     `json:"http,omitempty"`
	S3       *S3BackendConfig       `json:"s3,omitempty"`
	Postgres *PostgresBackendConfig `json:"postgres,omitempty"`

	// RemoteVaultID names the vault on the backend side. A single backend
	// (e.g. one Postgres relay) can host several vaults.
	RemoteVaultID string `json:"remote_vault_id"`

	// WrappedSyncKey is the vault data-encryption key wrapped with a
	// KEK derived from the backend unlock secret (nonce-prefixed AES-GCM
	// blob, salt stored alongside). Nil until EnsureSyncKey has run.
	WrappedSyncKey []byte `json:"wrapped_sync_key,omitempty"`

	// WrapSalt is the argon2 salt used to derive the wrapping KEK.
	WrapSalt []byte `json:"wrap_salt,omitempty"`

	Enabled bool `json:"enabled"`

	// Priority orders backends in listings and pull scheduling. It does not
	// affect merge correctness: HLC total order is backend-agnostic.
	Priority int `json:"priority"`

	// LastPushHLC is the highest timestamp this backend has acknowledged on
	// push; LastPullHLC the highest processed on pull. Zero means never.
	LastPushHLC HLC `json:"last_push_hlc"`
	LastPullHLC HLC `json:"last_pull_hlc"`

	// PendingVaultKeyUpdate marks a backend whose wrapped key must be
	// re-uploaded (the unlock secret changed). While set, the orchestrator
	// refuses to push data to this backend.
	PendingVaultKeyUpdate bool `json:"pending_vault_key_update"`
}

// Validate checks the tagged-union shape at construction time: the kind must
// be known, exactly the matching config must be set, and its required fields
// must be present. Backends are validated before they are persisted, so the
// engine never inspects an untyped config at use time.
func (b *SyncBackend) Validate() error {
	configs := 0
	if b.HTTP != nil {
		configs++
	}
	if b.S3 != nil {
		configs++
	}
	if b.Postgres != nil {
		configs++
	}
	if configs != 1 {
		return fmt.Errorf("%w: backend %q carries %d configs", ErrBackendConfigShape, b.Name, configs)
	}

	switch b.Kind {
	case BackendHTTP:
		if b.HTTP == nil {
			return fmt.Errorf("%w: backend %q is %q", ErrBackendConfigShape, b.Name, b.Kind)
		}
		if b.HTTP.BaseURL == "" {
			return fmt.Errorf("%w: http backend %q needs base_url", ErrBackendConfigFields, b.Name)
		}
		if _, err := url.ParseRequestURI(b.HTTP.BaseURL); err != nil {
			return fmt.Errorf("%w: http backend %q base_url: %w", ErrBackendConfigFields, b.Name, err)
		}
	case BackendS3:
		if b.S3 == nil {
			return fmt.Errorf("%w: backend %q is %q", ErrBackendConfigShape, b.Name, b.Kind)
		}
		if b.S3.Bucket == "" || b.S3.Region == "" {
			return fmt.Errorf("%w: s3 backend %q needs bucket and region", ErrBackendConfigFields, b.Name)
		}
	case BackendPostgres:
		if b.Postgres == nil {
			return fmt.Errorf("%w: backend %q is %q", ErrBackendConfigShape, b.Name, b.Kind)
		}
		if b.Postgres.DSN == "" {
			return fmt.Errorf("%w: postgres backend %q needs dsn", ErrBackendConfigFields, b.Name)
		}
	default:
		return fmt.Errorf("%w: %q", ErrBackendKindUnknown, b.Kind)
	}

	if b.RemoteVaultID == "" {
		return fmt.Errorf("%w: backend %q needs remote_vault_id", ErrBackendConfigFields, b.Name)
	}

	return nil
}
