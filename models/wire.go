// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package models

import "time"

// PushRequest is the ordered batch of local changes sent to a backend.
// Changes are ordered by HLC ascending so the backend applies them in causal
// order. Replaying an already-applied change (same table/row/column/HLC) is
// a no-op on the backend, which makes push retries idempotent.
type PushRequest struct {
	VaultID string          `json:"vault_id"`
	Changes []ChangeMessage `json:"changes"`
	Length  int             `json:"length"`
}

// PushResponse acknowledges a push. AckedHLC is the highest timestamp the
// backend durably applied; on a partial failure it is lower than the
// batch maximum and the unacknowledged records stay pending locally.
type PushResponse struct {
	AckedHLC HLC `json:"acked_hlc"`
}

// PullResponse carries remote changes with HLC greater than the requested
// watermark, ordered by HLC ascending.
type PullResponse struct {
	Changes []RemoteChange `json:"changes"`
	Length  int            `json:"length"`
}

// WrappedKey is the vault data-encryption key wrapped for one backend.
type WrappedKey struct {
	VaultID string `json:"vault_id"`

	// Salt is the argon2id salt for deriving the wrapping KEK from the
	// backend unlock secret.
	Salt []byte `json:"salt"`

	// Blob is the nonce-prefixed AES-256-GCM ciphertext of the DEK.
	Blob []byte `json:"blob"`

	UpdatedAt time.Time `json:"updated_at"`
}

// VaultClockState is the local-only clock persistence record: the node
// identity and the last issued timestamp. It is never replicated and is
// re-initialized only when a device is wiped.
type VaultClockState struct {
	NodeID  string `json:"node_id"`
	LastHLC HLC    `json:"last_hlc"`
}
