package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// IVSize is the AES-GCM nonce size.
	IVSize = 12
	// TagSize is the AES-GCM authentication tag size.
	TagSize = 16

	// AlgorithmName is reported to clients as download metadata.
	AlgorithmName = "AES-256-GCM"
)

// ErrAuthFailed means the authentication tag did not verify: either the key
// is wrong or the ciphertext was tampered with. The primitive cannot tell
// the two apart; callers map it based on which layer failed.
var ErrAuthFailed = errors.New("authentication failed")

// GenerateFileKey returns a fresh random 32-byte file key.
func GenerateFileKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate file key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM. The IV is always generated
// inside this call; there is deliberately no way to supply one, so an IV
// can never be reused with the same key.
func Encrypt(plaintext, key []byte) (ciphertext, iv, authTag []byte, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext = sealed[:len(sealed)-TagSize]
	authTag = sealed[len(sealed)-TagSize:]
	return ciphertext, iv, authTag, nil
}

// Decrypt opens ciphertext sealed by Encrypt. Returns ErrAuthFailed when
// the tag does not verify.
func Decrypt(ciphertext, iv, authTag, key []byte) ([]byte, error) {
	if len(iv) != IVSize || len(authTag) != TagSize {
		return nil, ErrAuthFailed
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(authTag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, authTag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// WrapKey envelope-encrypts a file key under the master key, producing the
// wrapped blob with its own iv/tag pair.
func WrapKey(fileKey, masterKey []byte) (wrapped, iv, authTag []byte, err error) {
	return Encrypt(fileKey, masterKey)
}

// UnwrapKey reverses WrapKey. ErrAuthFailed here means the master key is
// wrong (in practice: wrong password), not that the file was tampered with.
func UnwrapKey(wrapped, iv, authTag, masterKey []byte) ([]byte, error) {
	return Decrypt(wrapped, iv, authTag, masterKey)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
