// Package crypto implements the cryptographic primitives of the vault:
// password-based key derivation, AES-GCM envelope encryption, content
// digests and RSA-OAEP key exchange.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the size of key-derivation salts.
	SaltSize = 32
	// KeySize is the size of derived and generated symmetric keys (AES-256).
	KeySize = 32

	// DeriveIterations is the PBKDF2 iteration count. Tuned to cost on the
	// order of 100ms on commodity hardware; raising it invalidates no
	// stored data because the count is applied at derivation time only.
	DeriveIterations = 600_000
)

// DeriveKey stretches a password into a 32-byte master key. Deterministic
// for identical (password, salt) pairs.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, DeriveIterations, KeySize, sha256.New)
}

// GenerateSalt returns a fresh random key-derivation salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateExpiringToken returns a random 32-byte hex token and its expiry.
func GenerateExpiringToken(minutes int) (string, time.Time, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(raw), time.Now().Add(time.Duration(minutes) * time.Minute), nil
}
