package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Digest returns the SHA-256 hex digest of data. This is the cheap content
// hash used for tamper evidence; password stretching uses DeriveKey.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyDigest recomputes the digest and compares in constant time.
func VerifyDigest(data []byte, expected string) bool {
	got := Digest(data)
	if len(got) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
