// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

// New constructs the adapter matching a backend record's kind. The record is
// validated first, so the engine never reaches a transport with a malformed
// config.
func New(ctx context.Context, backend models.SyncBackend, timeout time.Duration, log *logger.Logger) (BackendAdapter, error) {
	if err := backend.Validate(); err != nil {
		return nil, err
	}

	switch backend.Kind {
	case models.BackendHTTP:
		if err := checkAccessToken(backend.HTTP.AccessToken); err != nil {
			return nil, err
		}
		return NewHTTPBackendAdapter(*backend.HTTP, timeout, log)
	case models.BackendS3:
		return NewS3BackendAdapter(ctx, *backend.S3, log)
	case models.BackendPostgres:
		return NewPostgresBackendAdapter(ctx, *backend.Postgres, log)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrBackendKindUnknown, backend.Kind)
	}
}
