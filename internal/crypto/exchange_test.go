package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

func parsePrivateKey(t *testing.T, pemStr string) *rsa.PrivateKey {
	t.Helper()
	block, _ := pem.Decode([]byte(pemStr))
	require.NotNil(t, block)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	return key.(*rsa.PrivateKey)
}

func TestGenerateKeyPair(t *testing.T) {
	pubPEM, privPEM, err := GenerateKeyPair()
	require.NoError(t, err)
	require.Contains(t, pubPEM, "PUBLIC KEY")
	require.Contains(t, privPEM, "PRIVATE KEY")

	pub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)
	require.Equal(t, rsaKeyBits, pub.N.BitLen())
}

func TestWrapSymmetricKey(t *testing.T) {
	pubPEM, privPEM, err := GenerateKeyPair()
	require.NoError(t, err)
	pub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)
	priv := parsePrivateKey(t, privPEM)

	key, err := GenerateFileKey()
	require.NoError(t, err)

	wrapped, err := WrapSymmetricKey(key, pub)
	require.NoError(t, err)
	require.NotEqual(t, key, wrapped)

	// The requester-side unwrap (outside the service trust boundary).
	unwrapped, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	require.NoError(t, err)
	require.Equal(t, key, unwrapped)
}

func TestEncryptForExchange(t *testing.T) {
	pubPEM, privPEM, err := GenerateKeyPair()
	require.NoError(t, err)
	pub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)
	priv := parsePrivateKey(t, privPEM)

	plaintext := []byte("already-encrypted artifact bytes")
	payload, err := EncryptForExchange(plaintext, pub)
	require.NoError(t, err)
	require.NotEmpty(t, payload.Data)
	require.Len(t, payload.IV, IVSize)
	require.Len(t, payload.AuthTag, TagSize)

	// Requester side: unwrap the key, then open the payload.
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, payload.WrappedKey, nil)
	require.NoError(t, err)
	recovered, err := Decrypt(payload.Data, payload.IV, payload.AuthTag, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, recovered)
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePublicKey("not a pem block")
	require.Error(t, err)
}
