package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	require.Len(t, salt, SaltSize)

	key1 := DeriveKey("Sup3rSecret!", salt)
	key2 := DeriveKey("Sup3rSecret!", salt)
	require.Len(t, key1, KeySize)
	require.Equal(t, key1, key2, "same password and salt must derive the same key")
}

func TestDeriveKeyDiffersByPasswordAndSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	require.NoError(t, err)
	salt2, err := GenerateSalt()
	require.NoError(t, err)

	require.NotEqual(t, DeriveKey("password-a", salt1), DeriveKey("password-b", salt1))
	require.NotEqual(t, DeriveKey("password-a", salt1), DeriveKey("password-a", salt2))
}

func TestGenerateSaltUnique(t *testing.T) {
	salt1, err := GenerateSalt()
	require.NoError(t, err)
	salt2, err := GenerateSalt()
	require.NoError(t, err)
	require.NotEqual(t, salt1, salt2)
}

func TestGenerateExpiringToken(t *testing.T) {
	token, expiry, err := GenerateExpiringToken(30)
	require.NoError(t, err)
	require.Len(t, token, 64) // 32 bytes hex-encoded
	require.WithinDuration(t, time.Now().Add(30*time.Minute), expiry, 5*time.Second)

	token2, _, err := GenerateExpiringToken(30)
	require.NoError(t, err)
	require.NotEqual(t, token, token2)
}
