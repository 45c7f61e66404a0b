// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package keyring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/models"
)

var (
	// ErrWrongUnlockSecret is returned when a remote wrapped key exists but
	// cannot be unwrapped with the KEK derived from the given secret.
	ErrWrongUnlockSecret = errors.New("wrong unlock secret")

	// ErrKeyMismatch is returned when the remote wrapped key unwraps
	// successfully but the contained DEK differs from the local one. The
	// backend holds data of a different vault generation; pushing would mix
	// ciphertexts that cannot all be decrypted by one key.
	ErrKeyMismatch = errors.New("remote vault key does not match local key")
)

// RemoteKeyStore is the slice of a backend adapter the key manager needs.
type RemoteKeyStore interface {
	// FetchWrappedKey returns the wrapped vault key stored on the backend;
	// found is false when the backend has none for this vault.
	FetchWrappedKey(ctx context.Context, vaultID string) (key models.WrappedKey, found bool, err error)

	// UploadWrappedKey stores a wrapped vault key on the backend,
	// overwriting any previous one.
	UploadWrappedKey(ctx context.Context, key models.WrappedKey) error
}

// Manager implements the vault key policy: one DEK per vault, wrapped
// per-backend under the backend's unlock secret.
type Manager struct {
	keychain KeyChain
	keys     store.KeyRepository
	logger   *logger.Logger
}

// NewManager constructs a Manager over the vault's key storage.
func NewManager(keychain KeyChain, keys store.KeyRepository, log *logger.Logger) *Manager {
	return &Manager{keychain: keychain, keys: keys, logger: log}
}

// LocalDEK returns the vault's data-encryption key, generating and
// persisting a fresh one for a vault that has never had a key.
func (m *Manager) LocalDEK(ctx context.Context) ([]byte, error) {
	dek, err := m.keys.GetDEK(ctx)
	if err == nil {
		return dek, nil
	}
	if !errors.Is(err, store.ErrVaultKeyNotFound) {
		return nil, fmt.Errorf("loading vault key: %w", err)
	}

	dek, err = m.keychain.GenerateDEK()
	if err != nil {
		return nil, fmt.Errorf("generating vault key: %w", err)
	}
	if err = m.keys.SaveDEK(ctx, dek); err != nil {
		return nil, fmt.Errorf("persisting vault key: %w", err)
	}

	m.logger.Info().Str("func", "Manager.LocalDEK").Msg("generated new vault key")
	return dek, nil
}

// EnsureSyncKey reconciles the local DEK with the wrapped key stored on a
// backend. If the backend already holds a wrapped key for the vault, it is
// unwrapped with unlockSecret and verified against the local DEK; if the
// backend holds none, the local DEK is wrapped and uploaded. Returns the
// wrapped blob and salt now current on the backend, for persistence on the
// backend record.
func (m *Manager) EnsureSyncKey(ctx context.Context, remote RemoteKeyStore, vaultID, unlockSecret string) (blob, salt []byte, err error) {
	dek, err := m.LocalDEK(ctx)
	if err != nil {
		return nil, nil, err
	}

	remoteKey, found, err := remote.FetchWrappedKey(ctx, vaultID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching wrapped key: %w", err)
	}

	if found {
		kek := m.keychain.DeriveKEK(unlockSecret, remoteKey.Salt)
		remoteDEK, err := m.keychain.UnwrapKey(remoteKey.Blob, kek)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrWrongUnlockSecret, err)
		}
		if !bytes.Equal(remoteDEK, dek) {
			return nil, nil, ErrKeyMismatch
		}
		return remoteKey.Blob, remoteKey.Salt, nil
	}

	return m.wrapAndUpload(ctx, remote, vaultID, unlockSecret, dek)
}

// RewrapSyncKey wraps the local DEK under a new unlock secret and uploads
// it, replacing whatever the backend held. Used after a secret change, when
// the backend record carries the pending key-update flag.
func (m *Manager) RewrapSyncKey(ctx context.Context, remote RemoteKeyStore, vaultID, unlockSecret string) (blob, salt []byte, err error) {
	dek, err := m.LocalDEK(ctx)
	if err != nil {
		return nil, nil, err
	}
	return m.wrapAndUpload(ctx, remote, vaultID, unlockSecret, dek)
}

func (m *Manager) wrapAndUpload(ctx context.Context, remote RemoteKeyStore, vaultID, unlockSecret string, dek []byte) (blob, salt []byte, err error) {
	salt, err = m.keychain.GenerateSalt()
	if err != nil {
		return nil, nil, fmt.Errorf("generating wrap salt: %w", err)
	}

	kek := m.keychain.DeriveKEK(unlockSecret, salt)
	blob, err = m.keychain.WrapKey(dek, kek)
	if err != nil {
		return nil, nil, fmt.Errorf("wrapping vault key: %w", err)
	}

	err = remote.UploadWrappedKey(ctx, models.WrappedKey{
		VaultID:   vaultID,
		Salt:      salt,
		Blob:      blob,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("uploading wrapped key: %w", err)
	}

	m.logger.Info().Str("func", "Manager.wrapAndUpload").Str("vault_id", vaultID).Msg("uploaded wrapped vault key")
	return blob, salt, nil
}
