package models

import (
	"time"

	"github.com/google/uuid"
)

type AccessLevel string

const (
	AccessVault  AccessLevel = "vault"
	AccessPublic AccessLevel = "public"
)

func (a AccessLevel) Valid() bool {
	return a == AccessVault || a == AccessPublic
}

// SaltSource tells which salt re-derives the master key for a file.
type SaltSource int

const (
	// HasFileSalt: the record carries its own salt, any holder of the
	// upload password can decrypt.
	HasFileSalt SaltSource = iota
	// LegacyOwnerSalt: older records without a per-file salt fall back to
	// the owner account's salt.
	LegacyOwnerSalt
)

// EncryptionMeta is everything besides the password needed to unwrap and
// decrypt a stored file. Never serialized to clients in full.
type EncryptionMeta struct {
	IV         []byte `json:"-"`
	AuthTag    []byte `json:"-"`
	FileSalt   []byte `json:"-"`
	WrappedKey []byte `json:"-"`
	KeyIV      []byte `json:"-"`
	KeyAuthTag []byte `json:"-"`
}

type File struct {
	ID            uuid.UUID      `json:"id"`
	OwnerID       int64          `json:"owner_id"`
	Name          string         `json:"name"`
	MimeType      string         `json:"mime_type"`
	SizeBytes     int64          `json:"size_bytes"`
	StorageRef    string         `json:"-"`
	AccessLevel   AccessLevel    `json:"access_level"`
	Description   string         `json:"description,omitempty"`
	Encryption    EncryptionMeta `json:"-"`
	Digest        string         `json:"-"`
	ExchangeReady bool           `json:"exchange_ready"`
	ShareToken    *string        `json:"-"`
	ShareExpires  *time.Time     `json:"share_expires,omitempty"`
	Downloads     int64          `json:"downloads"`
	DeletedAt     *time.Time     `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (f *File) SaltSource() SaltSource {
	if len(f.Encryption.FileSalt) > 0 {
		return HasFileSalt
	}
	return LegacyOwnerSalt
}

// DigestPreview is the truncated digest safe to show in listings.
func (f *File) DigestPreview() string {
	if len(f.Digest) <= 12 {
		return f.Digest
	}
	return f.Digest[:12]
}
