package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"go.uber.org/zap"

	"sejf-plikow/internal/access"
	"sejf-plikow/internal/auth"
	"sejf-plikow/internal/config"
	"sejf-plikow/internal/crypto"
	"sejf-plikow/internal/database"
	"sejf-plikow/internal/models"
	"sejf-plikow/internal/storage"
)

var (
	ErrFileNotFound = errors.New("file not found")
	// ErrWrongPassword: the wrapped-key tag failed, meaning the supplied
	// password derived the wrong master key. Retryable.
	ErrWrongPassword = errors.New("invalid decryption password")
	// ErrIntegrity: the ciphertext tag or the content digest failed with a
	// correctly unwrapped key. The artifact is corrupted or tampered with;
	// retrying cannot help.
	ErrIntegrity         = errors.New("file integrity check failed")
	ErrExchangeDisabled  = errors.New("key exchange is not enabled for this file")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrMissingSalt       = errors.New("no salt available to derive the file key")
	ErrPasswordRequired  = errors.New("encryption password is required")
	ErrInvalidAccessTier = errors.New("invalid access level")
)

const IntegrityPassed = "PASSED"

// FileStore is the record-store surface the pipeline needs. The owner
// lookup exists only for the legacy owner-salt fallback.
type FileStore interface {
	CreateFile(ctx context.Context, arg database.CreateFileParams) (*models.File, error)
	GetFileByID(ctx context.Context, id uuid.UUID) (*models.File, error)
	GetFileByShareToken(ctx context.Context, token string) (*models.File, error)
	ListAllFiles(ctx context.Context, limit, offset int) ([]models.File, error)
	ListOwnedOrPublicFiles(ctx context.Context, ownerID int64, limit, offset int) ([]models.File, error)
	ListPublicFiles(ctx context.Context, limit, offset int) ([]models.File, error)
	IncrementDownloads(ctx context.Context, id uuid.UUID) error
	SetShareToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error
	ClearShareToken(ctx context.Context, id uuid.UUID) error
	SoftDeleteFile(ctx context.Context, id uuid.UUID) (bool, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type FileService struct {
	store    FileStore
	blobs    storage.Blob
	recorder AuditRecorder
	cfg      *config.Config
	logger   *zap.Logger
}

func NewFileService(store FileStore, blobs storage.Blob, recorder AuditRecorder, cfg *config.Config, logger *zap.Logger) *FileService {
	return &FileService{
		store:    store,
		blobs:    blobs,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

type UploadParams struct {
	Name        string
	MimeType    string
	Data        []byte
	AccessLevel models.AccessLevel
	Description string
	// Password arrives out-of-band (header), never in the JSON body.
	Password      string
	ExchangeReady bool
}

// Upload runs the envelope pipeline: digest the plaintext, encrypt it with
// a fresh per-file key, then wrap that key under a master key derived from
// the password and a fresh per-file salt. The per-file salt (rather than
// the uploader's account salt) lets any holder of the password re-derive
// the master key, which the sharing flow depends on.
func (s *FileService) Upload(ctx context.Context, claims *auth.AppClaims, arg UploadParams, meta RequestMeta) (*models.File, error) {
	if arg.Password == "" {
		return nil, ErrPasswordRequired
	}
	if !arg.AccessLevel.Valid() {
		return nil, ErrInvalidAccessTier
	}

	digest := crypto.Digest(arg.Data)

	fileKey, err := crypto.GenerateFileKey()
	if err != nil {
		return nil, err
	}
	ciphertext, iv, authTag, err := crypto.Encrypt(arg.Data, fileKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file: %w", err)
	}

	fileSalt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	masterKey := crypto.DeriveKey(arg.Password, fileSalt)
	wrappedKey, keyIV, keyAuthTag, err := crypto.WrapKey(fileKey, masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap file key: %w", err)
	}

	generateRef, err := nanoid.Standard(32)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ref generator: %w", err)
	}
	storageRef := generateRef()

	if err := s.blobs.Save(ctx, storageRef, bytes.NewReader(ciphertext)); err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}

	file, err := s.store.CreateFile(ctx, database.CreateFileParams{
		ID:          uuid.New(),
		OwnerID:     claims.UserID,
		Name:        arg.Name,
		MimeType:    arg.MimeType,
		SizeBytes:   int64(len(arg.Data)),
		StorageRef:  storageRef,
		AccessLevel: arg.AccessLevel,
		Description: arg.Description,
		Encryption: models.EncryptionMeta{
			IV:         iv,
			AuthTag:    authTag,
			FileSalt:   fileSalt,
			WrappedKey: wrappedKey,
			KeyIV:      keyIV,
			KeyAuthTag: keyAuthTag,
		},
		Digest:        digest,
		ExchangeReady: arg.ExchangeReady,
	})
	if err != nil {
		// The record is the source of truth; orphaned blobs are removed.
		if delErr := s.blobs.Delete(ctx, storageRef); delErr != nil {
			s.logger.Warn("failed to remove orphaned blob", zap.String("ref", storageRef), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	s.recordFileEvent(ctx, claims, file.ID, models.ActionFileUpload, models.OutcomeSuccess, meta, nil)
	return file, nil
}

type DownloadResult struct {
	File      *models.File
	Plaintext []byte
	Integrity string
	Algorithm string
}

// Download is the password path: resolve access, re-derive the master key,
// unwrap the file key, decrypt, then re-verify the content digest. The two
// AEAD layers fail distinctly: a bad wrapped-key tag is a wrong password,
// a bad ciphertext tag (or digest mismatch) is tampering.
func (s *FileService) Download(ctx context.Context, claims *auth.AppClaims, fileID uuid.UUID, password string, meta RequestMeta) (*DownloadResult, error) {
	if password == "" {
		return nil, ErrPasswordRequired
	}

	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return nil, ErrFileNotFound
	}

	if err := s.resolveReadAccess(ctx, claims, file, meta); err != nil {
		return nil, err
	}

	salt, err := s.resolveSalt(ctx, file)
	if err != nil {
		return nil, err
	}

	masterKey := crypto.DeriveKey(password, salt)
	fileKey, err := crypto.UnwrapKey(file.Encryption.WrappedKey, file.Encryption.KeyIV, file.Encryption.KeyAuthTag, masterKey)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthFailed) {
			s.recordFileEvent(ctx, claims, file.ID, models.ActionFileDownload, models.OutcomeFailed, meta, map[string]string{"reason": "key decryption failed"})
			return nil, ErrWrongPassword
		}
		return nil, err
	}

	reader, err := s.blobs.Get(ctx, file.StorageRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	defer reader.Close()
	ciphertext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	plaintext, err := crypto.Decrypt(ciphertext, file.Encryption.IV, file.Encryption.AuthTag, fileKey)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthFailed) {
			s.recordFileEvent(ctx, claims, file.ID, models.ActionIntegrityFailed, models.OutcomeError, meta, map[string]string{"layer": "ciphertext"})
			return nil, ErrIntegrity
		}
		return nil, err
	}

	// Independent tamper check outside the AEAD boundary.
	if !crypto.VerifyDigest(plaintext, file.Digest) {
		s.recordFileEvent(ctx, claims, file.ID, models.ActionIntegrityFailed, models.OutcomeError, meta, map[string]string{"layer": "digest"})
		return nil, ErrIntegrity
	}

	if err := s.store.IncrementDownloads(ctx, file.ID); err != nil {
		s.logger.Error("failed to increment download counter", zap.Error(err))
	}

	s.recordFileEvent(ctx, claims, file.ID, models.ActionIntegrityPassed, models.OutcomeSuccess, meta, nil)
	s.recordFileEvent(ctx, claims, file.ID, models.ActionFileDownload, models.OutcomeSuccess, meta, nil)

	return &DownloadResult{
		File:      file,
		Plaintext: plaintext,
		Integrity: IntegrityPassed,
		Algorithm: crypto.AlgorithmName,
	}, nil
}

// ExchangeResult carries both ciphertext layers: the stored artifact
// re-encrypted in transit under a fresh key wrapped for the requester,
// plus the original envelope metadata needed to reconstruct the plaintext
// client-side once the requester also has the file password.
type ExchangeResult struct {
	File       *models.File
	Payload    *crypto.ExchangePayload
	FileIV     []byte
	FileTag    []byte
	WrappedKey []byte
	KeyIV      []byte
	KeyTag     []byte
}

// DownloadForExchange is the passwordless delivery path: the requester
// supplies only a public key; the service never handles plaintext here
// and never learns any private key.
func (s *FileService) DownloadForExchange(ctx context.Context, claims *auth.AppClaims, fileID uuid.UUID, publicKeyPEM string, meta RequestMeta) (*ExchangeResult, error) {
	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	if !file.ExchangeReady {
		return nil, ErrExchangeDisabled
	}

	if err := s.resolveReadAccess(ctx, claims, file, meta); err != nil {
		return nil, err
	}

	pub, err := crypto.ParsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}

	reader, err := s.blobs.Get(ctx, file.StorageRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	defer reader.Close()
	ciphertext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	payload, err := crypto.EncryptForExchange(ciphertext, pub)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare exchange payload: %w", err)
	}

	s.recordFileEvent(ctx, claims, file.ID, models.ActionKeyExchangeDownload, models.OutcomeSuccess, meta, nil)

	return &ExchangeResult{
		File:       file,
		Payload:    payload,
		FileIV:     file.Encryption.IV,
		FileTag:    file.Encryption.AuthTag,
		WrappedKey: file.Encryption.WrappedKey,
		KeyIV:      file.Encryption.KeyIV,
		KeyTag:     file.Encryption.KeyAuthTag,
	}, nil
}

type ShareResult struct {
	Token   string
	Expires time.Time
	URL     string
}

func (s *FileService) Share(ctx context.Context, claims *auth.AppClaims, fileID uuid.UUID, ttl time.Duration, meta RequestMeta) (*ShareResult, error) {
	file, err := s.requireOwnedFile(ctx, claims, fileID, meta)
	if err != nil {
		return nil, err
	}

	token, expires, err := crypto.GenerateExpiringToken(int(ttl.Minutes()))
	if err != nil {
		return nil, err
	}

	if err := s.store.SetShareToken(ctx, file.ID, token, expires); err != nil {
		return nil, fmt.Errorf("failed to store share token: %w", err)
	}

	s.recordFileEvent(ctx, claims, file.ID, models.ActionFileShare, models.OutcomeSuccess, meta, nil)

	return &ShareResult{
		Token:   token,
		Expires: expires,
		URL:     fmt.Sprintf("%s/api/v1/shared/%s", s.cfg.AppHost, token),
	}, nil
}

func (s *FileService) Unshare(ctx context.Context, claims *auth.AppClaims, fileID uuid.UUID, meta RequestMeta) error {
	file, err := s.requireOwnedFile(ctx, claims, fileID, meta)
	if err != nil {
		return err
	}

	if err := s.store.ClearShareToken(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to clear share token: %w", err)
	}

	s.recordFileEvent(ctx, claims, file.ID, models.ActionFileUnshare, models.OutcomeSuccess, meta, nil)
	return nil
}

// ResolveShare maps a non-expired share token to file metadata. The
// password is still required to actually download.
func (s *FileService) ResolveShare(ctx context.Context, token string) (*models.File, error) {
	file, err := s.store.GetFileByShareToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up share token: %w", err)
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	return file, nil
}

// Delete soft-deletes the record, then unlinks the blob best-effort. The
// metadata flag is the authoritative deletion signal; an unlink failure is
// logged, not fatal.
func (s *FileService) Delete(ctx context.Context, claims *auth.AppClaims, fileID uuid.UUID, meta RequestMeta) error {
	file, err := s.requireOwnedFile(ctx, claims, fileID, meta)
	if err != nil {
		return err
	}

	deleted, err := s.store.SoftDeleteFile(ctx, file.ID)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if !deleted {
		return ErrFileNotFound
	}

	if err := s.blobs.Delete(ctx, file.StorageRef); err != nil {
		s.logger.Warn("failed to unlink blob", zap.String("ref", file.StorageRef), zap.Error(err))
	}

	s.recordFileEvent(ctx, claims, file.ID, models.ActionFileDelete, models.OutcomeSuccess, meta, nil)
	return nil
}

// List returns the role-scoped file listing: admin sees everything,
// premium sees own plus public, guest sees public only.
func (s *FileService) List(ctx context.Context, claims *auth.AppClaims, limit, offset int) ([]models.File, error) {
	switch claims.Role {
	case models.RoleAdmin:
		return s.store.ListAllFiles(ctx, limit, offset)
	case models.RolePremium:
		return s.store.ListOwnedOrPublicFiles(ctx, claims.UserID, limit, offset)
	case models.RoleGuest:
		return s.store.ListPublicFiles(ctx, limit, offset)
	}
	return nil, access.ErrNotPermitted
}

// resolveReadAccess gates downloads: vault files are owner-or-admin,
// public files allow any authenticated role.
func (s *FileService) resolveReadAccess(ctx context.Context, claims *auth.AppClaims, file *models.File, meta RequestMeta) error {
	if file.AccessLevel == models.AccessPublic {
		return nil
	}
	err := access.RequireOwnership(claims.Role, claims.UserID, func() (int64, error) {
		return file.OwnerID, nil
	})
	if err != nil {
		s.recordFileEvent(ctx, claims, file.ID, models.ActionAccessDenied, models.OutcomeDenied, meta, map[string]string{"gate": "ownership"})
		return access.ErrNotPermitted
	}
	return nil
}

func (s *FileService) requireOwnedFile(ctx context.Context, claims *auth.AppClaims, fileID uuid.UUID, meta RequestMeta) (*models.File, error) {
	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return nil, ErrFileNotFound
	}

	err = access.RequireOwnership(claims.Role, claims.UserID, func() (int64, error) {
		return file.OwnerID, nil
	})
	if err != nil {
		s.recordFileEvent(ctx, claims, file.ID, models.ActionAccessDenied, models.OutcomeDenied, meta, map[string]string{"gate": "ownership"})
		return nil, access.ErrNotPermitted
	}
	return file, nil
}

// resolveSalt prefers the per-file salt; legacy records without one fall
// back to the owner account's salt and fail closed if neither exists.
func (s *FileService) resolveSalt(ctx context.Context, file *models.File) ([]byte, error) {
	switch file.SaltSource() {
	case models.HasFileSalt:
		return file.Encryption.FileSalt, nil
	case models.LegacyOwnerSalt:
		owner, err := s.store.GetUserByID(ctx, file.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve owner salt: %w", err)
		}
		if owner == nil || len(owner.KeySalt) == 0 {
			return nil, ErrMissingSalt
		}
		return owner.KeySalt, nil
	}
	return nil, ErrMissingSalt
}

func (s *FileService) recordFileEvent(ctx context.Context, claims *auth.AppClaims, fileID uuid.UUID, action models.AuditAction, outcome models.AuditOutcome, meta RequestMeta, detail map[string]string) {
	s.recorder.Record(ctx, &models.AuditEvent{
		ActorID:    &claims.UserID,
		Username:   claims.Username,
		Role:       claims.Role,
		Action:     action,
		TargetID:   fileID.String(),
		TargetType: "file",
		Outcome:    outcome,
		Detail:     detail,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
	})
}
