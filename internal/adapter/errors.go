// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package adapter

import "errors"

var (
	// ErrUnauthorized means the backend rejected the credentials. The
	// engine stops pushing and pulling through this backend until the
	// credentials are fixed; the error is surfaced to the caller.
	ErrUnauthorized = errors.New("backend rejected credentials")

	// ErrUnavailable means a transient network or backend failure. The
	// backend stays enabled and enters error-backoff; the cycle is retried.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrBadRequest means the backend rejected the request shape. Retrying
	// the identical request cannot succeed.
	ErrBadRequest = errors.New("backend rejected request")

	// ErrKeyNotFound is the internal marker for a missing wrapped key;
	// adapters translate it into found=false on FetchWrappedKey.
	ErrKeyNotFound = errors.New("wrapped key not found")
)
