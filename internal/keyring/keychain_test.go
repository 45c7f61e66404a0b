// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSalt_LengthAndUniqueness(t *testing.T) {
	kc := NewKeyChain()

	first, err := kc.GenerateSalt()
	require.NoError(t, err)
	second, err := kc.GenerateSalt()
	require.NoError(t, err)

	assert.Len(t, first, 16)
	assert.Len(t, second, 16)
	assert.NotEqual(t, first, second)
}

func TestGenerateDEK_LengthAndUniqueness(t *testing.T) {
	kc := NewKeyChain()

	first, err := kc.GenerateDEK()
	require.NoError(t, err)
	second, err := kc.GenerateDEK()
	require.NoError(t, err)

	assert.Len(t, first, 32)
	assert.Len(t, second, 32)
	assert.NotEqual(t, first, second)
}

func TestDeriveKEK_Deterministic(t *testing.T) {
	kc := NewKeyChain()
	salt := []byte("0123456789abcdef")

	first := kc.DeriveKEK("unlock-secret", salt)
	second := kc.DeriveKEK("unlock-secret", salt)
	other := kc.DeriveKEK("different-secret", salt)

	assert.Len(t, first, 32)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestWrapUnwrapKey_RoundTrip(t *testing.T) {
	kc := NewKeyChain()

	dek, err := kc.GenerateDEK()
	require.NoError(t, err)
	salt, err := kc.GenerateSalt()
	require.NoError(t, err)
	kek := kc.DeriveKEK("unlock-secret", salt)

	blob, err := kc.WrapKey(dek, kek)
	require.NoError(t, err)
	assert.NotEqual(t, dek, blob)

	got, err := kc.UnwrapKey(blob, kek)
	require.NoError(t, err)
	assert.Equal(t, dek, got)
}

func TestUnwrapKey_WrongKEKFails(t *testing.T) {
	kc := NewKeyChain()

	dek, err := kc.GenerateDEK()
	require.NoError(t, err)
	salt, err := kc.GenerateSalt()
	require.NoError(t, err)

	blob, err := kc.WrapKey(dek, kc.DeriveKEK("right-secret", salt))
	require.NoError(t, err)

	_, err = kc.UnwrapKey(blob, kc.DeriveKEK("wrong-secret", salt))
	assert.Error(t, err)
}

func TestUnwrapKey_TruncatedBlob(t *testing.T) {
	kc := NewKeyChain()
	kek := kc.DeriveKEK("secret", []byte("0123456789abcdef"))

	_, err := kc.UnwrapKey([]byte{0x01, 0x02}, kek)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestEncryptDecryptValue_RoundTrip(t *testing.T) {
	kc := NewKeyChain()

	dek, err := kc.GenerateDEK()
	require.NoError(t, err)

	encrypted, err := kc.EncryptValue("hunter2", dek)
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "hunter2")

	plaintext, err := kc.DecryptValue(encrypted, dek)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plaintext)
}

func TestDecryptValue_WrongDEKFails(t *testing.T) {
	kc := NewKeyChain()

	dek, err := kc.GenerateDEK()
	require.NoError(t, err)
	other, err := kc.GenerateDEK()
	require.NoError(t, err)

	encrypted, err := kc.EncryptValue("hunter2", dek)
	require.NoError(t, err)

	_, err = kc.DecryptValue(encrypted, other)
	assert.Error(t, err)
}
