// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

// Package keyring manages the vault's encryption keys: the locally held
// data-encryption key (DEK) and its wrapped copies stored on sync backends.
// Wrapping follows a zero-knowledge scheme: backends only ever see the DEK
// encrypted under a key derived from the unlock secret, which never leaves
// the device.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

//go:generate mockgen -source=keychain.go -destination=../mock/keychain_mock.go -package=mock

// KeyChain provides the cryptographic primitives of the key manager. It
// knows nothing about networks, databases or backends.
//
// Scheme:
//
//	Salt, DEK = GenerateSalt() + GenerateDEK()
//	KEK       = DeriveKEK(unlockSecret, salt)
//	Blob      = WrapKey(DEK, KEK)        // safe to store on a backend
type KeyChain interface {
	// GenerateSalt generates a random 16-byte salt. The salt is not a
	// secret; it is stored on the backend next to the wrapped key.
	GenerateSalt() ([]byte, error)

	// GenerateDEK generates a random 256-bit data-encryption key. The DEK
	// encrypts all vault data and never leaves the device unwrapped.
	GenerateDEK() ([]byte, error)

	// DeriveKEK derives a 256-bit key-encryption key from the unlock secret
	// and salt via Argon2id. The KEK exists only in memory.
	DeriveKEK(unlockSecret string, salt []byte) []byte

	// WrapKey encrypts the DEK under the KEK with AES-256-GCM. The result
	// (nonce ‖ ciphertext) is safe to store on a backend.
	WrapKey(dek, kek []byte) ([]byte, error)

	// UnwrapKey reverses WrapKey. An authentication failure almost always
	// means a wrong unlock secret produced a wrong KEK.
	UnwrapKey(blob, kek []byte) ([]byte, error)

	// EncryptValue encrypts a plaintext column value with the DEK and
	// returns a base64 blob (nonce ‖ ciphertext).
	EncryptValue(plaintext string, dek []byte) (string, error)

	// DecryptValue reverses EncryptValue.
	DecryptValue(encryptedB64 string, dek []byte) (string, error)
}

// ErrCiphertextTooShort is returned when a wrapped blob is shorter than the
// GCM nonce it must start with.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// keyChain is the private implementation of [KeyChain].
type keyChain struct {
	// Argon2id tuning parameters. Stored in the struct so they can be
	// adjusted per deployment target (e.g. mobile vs. desktop).
	argonTime    uint32
	argonMemory  uint32
	argonThreads uint8
	argonKeyLen  uint32
}

// NewKeyChain constructs a [KeyChain] with the Argon2id parameters
// recommended by OWASP (2024):
//   - time cost:   1 iteration
//   - memory cost: 64 MiB
//   - parallelism: 4 threads
//   - key length:  32 bytes (256 bits)
func NewKeyChain() KeyChain {
	return &keyChain{
		argonTime:    1,
		argonMemory:  64 * 1024, // 64 MiB
		argonThreads: 4,
		argonKeyLen:  32, // 256 bits
	}
}

func (k *keyChain) GenerateSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (k *keyChain) GenerateDEK() ([]byte, error) {
	dek := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, err
	}
	return dek, nil
}

func (k *keyChain) DeriveKEK(unlockSecret string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(unlockSecret),
		salt,
		k.argonTime,
		k.argonMemory,
		k.argonThreads,
		k.argonKeyLen,
	)
}

func (k *keyChain) WrapKey(dek, kek []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Prepend the nonce so UnwrapKey can split it out.
	wrapped := gcm.Seal(nil, nonce, dek, nil)
	return append(nonce, wrapped...), nil
}

func (k *keyChain) UnwrapKey(blob, kek []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]

	dek, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return dek, nil
}

func (k *keyChain) EncryptValue(plaintext string, dek []byte) (string, error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	blob := append(nonce, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

func (k *keyChain) DecryptValue(encryptedB64 string, dek []byte) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encryptedB64)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}

	block, err := aes.NewCipher(dek)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return "", ErrCiphertextTooShort
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt value: %w", err)
	}

	return string(plaintext), nil
}
