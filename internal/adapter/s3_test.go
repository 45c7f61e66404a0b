// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package adapter

import (
	"testing"

	"github.com/aws/smithy-go"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/keyfold/keyfold/models"
)

func TestMapS3Error(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"access denied", "AccessDenied", ErrUnauthorized},
		{"bad key id", "InvalidAccessKeyId", ErrUnauthorized},
		{"expired token", "ExpiredToken", ErrUnauthorized},
		{"missing object", "NoSuchKey", ErrKeyNotFound},
		{"missing bucket", "NoSuchBucket", ErrBadRequest},
		{"throttled", "SlowDown", ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapS3Error(&smithy.GenericAPIError{Code: tt.code, Message: tt.name})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMapS3Error_PlainErrorIsUnavailable(t *testing.T) {
	err := mapS3Error(assert.AnError)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMapPgError(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"invalid password", "28P01", ErrUnauthorized},
		{"insufficient privilege", "42501", ErrUnauthorized},
		{"undefined table", "42P01", ErrBadRequest},
		{"connection failure", "08006", ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapPgError(&pgconn.PgError{Code: tt.code, Message: tt.name})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSortRemoteChanges_HLCOrder(t *testing.T) {
	a := models.RemoteChange{ChangeMessage: models.ChangeMessage{HLC: models.HLC{WallMillis: 3000, NodeID: "a"}}}
	b := models.RemoteChange{ChangeMessage: models.ChangeMessage{HLC: models.HLC{WallMillis: 1000, NodeID: "b"}}}
	c := models.RemoteChange{ChangeMessage: models.ChangeMessage{HLC: models.HLC{WallMillis: 2000, NodeID: "c"}}}

	changes := []models.RemoteChange{a, b, c}
	sortRemoteChanges(changes)

	assert.Equal(t, int64(1000), changes[0].HLC.WallMillis)
	assert.Equal(t, int64(2000), changes[1].HLC.WallMillis)
	assert.Equal(t, int64(3000), changes[2].HLC.WallMillis)
}

func TestS3ObjectKeys(t *testing.T) {
	s := &s3BackendAdapter{prefix: "vaults/"}

	assert.Equal(t, "vaults/changes/vault-1/", s.changesPrefix("vault-1"))
	assert.Equal(t, "vaults/keys/vault-1.json", s.keyObjectKey("vault-1"))
}
