// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

// Package adapter provides transport implementations for sync backends.
//
// The primary abstraction is [BackendAdapter], which decouples the sync
// engine from the backend protocol. The package ships three implementations:
// an HTTP/REST client for a keyfold sync server, an S3 object-storage
// backend, and a Postgres relay backend. [New] constructs the right one from
// a backend record's tagged-union config.
//
// Error values defined in errors.go are mapped from transport-level failures
// so that the engine can use [errors.Is] for protocol-agnostic handling
// ([ErrUnauthorized] disables the backend, [ErrUnavailable] triggers
// error-backoff).
package adapter

import (
	"context"

	"github.com/keyfold/keyfold/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/backend_adapter_mock.go -package=mock

// BackendAdapter is protocol-agnostic access to one sync backend.
// Implementations are responsible for serialization, authentication, and
// mapping transport errors to the sentinel values of this package.
type BackendAdapter interface {
	// Kind reports which transport this adapter speaks.
	Kind() models.BackendKind

	// Verify checks that the backend is reachable and the credentials are
	// accepted, without transferring any vault data. Returns
	// ErrUnauthorized for credential failures and ErrUnavailable for
	// transient ones.
	Verify(ctx context.Context) error

	// Push sends a batch of local changes, ordered by HLC ascending.
	// The response carries the highest timestamp the backend durably
	// applied; on partial failure it is lower than the batch maximum.
	// Pushing an already-applied change is a no-op on the backend.
	Push(ctx context.Context, req models.PushRequest) (models.PushResponse, error)

	// Pull returns up to limit remote changes with HLC greater than after,
	// ordered by HLC ascending. limit <= 0 means no limit.
	Pull(ctx context.Context, vaultID string, after models.HLC, limit int) (models.PullResponse, error)

	// PullTableColumn returns every historical change of one table/column
	// pair regardless of watermark. Used by the schema-skew reconciliation
	// pass after a local migration adds a previously unknown column.
	PullTableColumn(ctx context.Context, vaultID, table, column string) (models.PullResponse, error)

	// FetchWrappedKey returns the wrapped vault key stored on the backend;
	// found is false when the backend holds none for this vault.
	FetchWrappedKey(ctx context.Context, vaultID string) (key models.WrappedKey, found bool, err error)

	// UploadWrappedKey stores a wrapped vault key, replacing any previous
	// one for the vault.
	UploadWrappedKey(ctx context.Context, key models.WrappedKey) error

	// Close releases transport resources (connection pools).
	Close()
}
