// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// checkAccessToken inspects a JWT access token without verifying its
// signature (the signing key lives on the server). An already expired token
// fails fast as ErrUnauthorized instead of burning a round trip per cycle.
// Opaque non-JWT tokens pass through untouched.
func checkAccessToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty access token", ErrUnauthorized)
	}
	if strings.Count(token, ".") != 2 {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Not a parseable JWT; let the backend judge it.
		return nil
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return nil
	}
	if expiry.Before(time.Now()) {
		return fmt.Errorf("%w: access token expired at %s", ErrUnauthorized, expiry.Format(time.RFC3339))
	}

	return nil
}
