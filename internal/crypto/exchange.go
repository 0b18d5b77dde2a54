package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const rsaKeyBits = 2048

// ExchangePayload is the result of EncryptForExchange: an AEAD-sealed
// payload plus the payload key wrapped under the recipient's public key.
// Unwrapping happens entirely on the requester's side.
type ExchangePayload struct {
	Data       []byte `json:"data"`
	IV         []byte `json:"iv"`
	AuthTag    []byte `json:"auth_tag"`
	WrappedKey []byte `json:"wrapped_key"`
}

// GenerateKeyPair returns a new RSA-2048 key pair as PEM strings
// (PKIX public key, PKCS#8 private key).
func GenerateKeyPair() (publicPEM, privatePEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key pair: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal private key: %w", err)
	}

	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	return publicPEM, privatePEM, nil
}

// ParsePublicKey decodes a PEM-encoded PKIX RSA public key.
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("invalid public key PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return pub, nil
}

// WrapSymmetricKey encrypts a symmetric key under the recipient's public
// key using RSA-OAEP with SHA-256.
func WrapSymmetricKey(symmetricKey []byte, recipient *rsa.PublicKey) ([]byte, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, recipient, symmetricKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key: %w", err)
	}
	return wrapped, nil
}

// EncryptForExchange seals plaintext with a fresh symmetric key and wraps
// that key for the recipient. The service never learns the recipient's
// private key.
func EncryptForExchange(plaintext []byte, recipient *rsa.PublicKey) (*ExchangePayload, error) {
	key, err := GenerateFileKey()
	if err != nil {
		return nil, err
	}
	data, iv, tag, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	wrapped, err := WrapSymmetricKey(key, recipient)
	if err != nil {
		return nil, err
	}
	return &ExchangePayload{Data: data, IV: iv, AuthTag: tag, WrappedKey: wrapped}, nil
}
