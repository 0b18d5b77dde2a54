package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateFileKey()
	require.NoError(t, err)
	require.Len(t, key, KeySize)

	plaintext := []byte("HELLOWRLD")
	ciphertext, iv, tag, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	require.Len(t, iv, IVSize)
	require.Len(t, tag, TagSize)
	require.NotEqual(t, plaintext, ciphertext)

	decrypted, err := Decrypt(ciphertext, iv, tag, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestEncryptGeneratesFreshIV(t *testing.T) {
	key, err := GenerateFileKey()
	require.NoError(t, err)

	_, iv1, _, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	_, iv2, _, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)

	require.False(t, bytes.Equal(iv1, iv2), "two encryptions must never share an IV")
}

func TestDecryptCorruptedCiphertext(t *testing.T) {
	key, err := GenerateFileKey()
	require.NoError(t, err)

	ciphertext, iv, tag, err := Encrypt([]byte("sensitive content"), key)
	require.NoError(t, err)

	// Every single-byte corruption must fail the tag check, never return
	// altered plaintext.
	for i := range ciphertext {
		corrupted := append([]byte(nil), ciphertext...)
		corrupted[i] ^= 0x01
		_, err := Decrypt(corrupted, iv, tag, key)
		require.ErrorIs(t, err, ErrAuthFailed, "corrupt byte %d", i)
	}
}

func TestDecryptCorruptedTag(t *testing.T) {
	key, err := GenerateFileKey()
	require.NoError(t, err)

	ciphertext, iv, tag, err := Encrypt([]byte("sensitive content"), key)
	require.NoError(t, err)

	badTag := append([]byte(nil), tag...)
	badTag[0] ^= 0x80
	_, err = Decrypt(ciphertext, iv, badTag, key)
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestDecryptWrongKey(t *testing.T) {
	key, err := GenerateFileKey()
	require.NoError(t, err)
	otherKey, err := GenerateFileKey()
	require.NoError(t, err)

	ciphertext, iv, tag, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, iv, tag, otherKey)
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestWrapUnwrapKey(t *testing.T) {
	fileKey, err := GenerateFileKey()
	require.NoError(t, err)
	masterKey, err := GenerateFileKey()
	require.NoError(t, err)

	wrapped, iv, tag, err := WrapKey(fileKey, masterKey)
	require.NoError(t, err)

	unwrapped, err := UnwrapKey(wrapped, iv, tag, masterKey)
	require.NoError(t, err)
	require.Equal(t, fileKey, unwrapped)

	wrongMaster, err := GenerateFileKey()
	require.NoError(t, err)
	_, err = UnwrapKey(wrapped, iv, tag, wrongMaster)
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	_, _, _, err := Encrypt([]byte("data"), []byte("short"))
	require.Error(t, err)
}
