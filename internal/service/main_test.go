package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sejf-plikow/internal/auth"
	"sejf-plikow/internal/database"
	"sejf-plikow/internal/models"
)

func claimsFor(u *models.User) *auth.AppClaims {
	return &auth.AppClaims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}

// memStore is an in-memory stand-in for the record store, mirroring its
// contract including the single-admin unique index.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
	files  map[uuid.UUID]*models.File
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[int64]*models.User),
		files: make(map[uuid.UUID]*models.File),
	}
}

func (m *memStore) CreateUser(_ context.Context, arg database.CreateUserParams) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == arg.Username {
			return nil, database.ErrUsernameTaken
		}
		if u.Email == arg.Email {
			return nil, database.ErrEmailTaken
		}
		if arg.Role == models.RoleAdmin && u.Role == models.RoleAdmin {
			return nil, database.ErrAdminExists
		}
	}
	m.nextID++
	user := &models.User{
		ID:            m.nextID,
		Username:      arg.Username,
		Email:         arg.Email,
		PasswordHash:  arg.PasswordHash,
		Role:          arg.Role,
		TOTPSecret:    arg.TOTPSecret,
		KeySalt:       arg.KeySalt,
		PublicKeyPEM:  arg.PublicKeyPEM,
		PrivateKeyPEM: arg.PrivateKeyPEM,
		CreatedAt:     time.Now(),
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, nil
}

func (m *memStore) AdminExists(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Role == models.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) IncrementFailedAttempts(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.FailedAttempts++
	return u.FailedAttempts, nil
}

func (m *memStore) LockUser(_ context.Context, userID int64, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].LockedUntil = &until
	return nil
}

func (m *memStore) CompleteMFA(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.TOTPVerified = true
	u.FailedAttempts = 0
	u.LockedUntil = nil
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

func (m *memStore) UpdateUserRole(_ context.Context, userID int64, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role == models.RoleAdmin {
		for id, u := range m.users {
			if id != userID && u.Role == models.RoleAdmin {
				return database.ErrAdminExists
			}
		}
	}
	m.users[userID].Role = role
	return nil
}

func (m *memStore) CreateFile(_ context.Context, arg database.CreateFileParams) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file := &models.File{
		ID:            arg.ID,
		OwnerID:       arg.OwnerID,
		Name:          arg.Name,
		MimeType:      arg.MimeType,
		SizeBytes:     arg.SizeBytes,
		StorageRef:    arg.StorageRef,
		AccessLevel:   arg.AccessLevel,
		Description:   arg.Description,
		Encryption:    arg.Encryption,
		Digest:        arg.Digest,
		ExchangeReady: arg.ExchangeReady,
		CreatedAt:     time.Now(),
	}
	m.files[file.ID] = file
	return file, nil
}

func (m *memStore) GetFileByID(_ context.Context, id uuid.UUID) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[id]; ok && f.DeletedAt == nil {
		clone := *f
		return &clone, nil
	}
	return nil, nil
}

func (m *memStore) GetFileByShareToken(_ context.Context, token string) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.DeletedAt == nil && f.ShareToken != nil && *f.ShareToken == token &&
			f.ShareExpires != nil && f.ShareExpires.After(time.Now()) {
			clone := *f
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) listFiles(pred func(*models.File) bool, limit, offset int) []models.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.File
	for _, f := range m.files {
		if f.DeletedAt == nil && pred(f) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []models.File{}
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (m *memStore) ListAllFiles(_ context.Context, limit, offset int) ([]models.File, error) {
	return m.listFiles(func(*models.File) bool { return true }, limit, offset), nil
}

func (m *memStore) ListOwnedOrPublicFiles(_ context.Context, ownerID int64, limit, offset int) ([]models.File, error) {
	return m.listFiles(func(f *models.File) bool {
		return f.OwnerID == ownerID || f.AccessLevel == models.AccessPublic
	}, limit, offset), nil
}

func (m *memStore) ListPublicFiles(_ context.Context, limit, offset int) ([]models.File, error) {
	return m.listFiles(func(f *models.File) bool {
		return f.AccessLevel == models.AccessPublic
	}, limit, offset), nil
}

func (m *memStore) IncrementDownloads(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id].Downloads++
	return nil
}

func (m *memStore) SetShareToken(_ context.Context, id uuid.UUID, token string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.files[id]
	f.ShareToken = &token
	f.ShareExpires = &expires
	return nil
}

func (m *memStore) ClearShareToken(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.files[id]
	f.ShareToken = nil
	f.ShareExpires = nil
	return nil
}

func (m *memStore) SoftDeleteFile(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.DeletedAt != nil {
		return false, nil
	}
	now := time.Now()
	f.DeletedAt = &now
	return true, nil
}

// memBlob is an in-memory blob backend.
type memBlob struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlob() *memBlob {
	return &memBlob{blobs: make(map[string][]byte)}
}

func (b *memBlob) Save(_ context.Context, ref string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[ref] = content
	return nil
}

func (b *memBlob) Get(_ context.Context, ref string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.blobs[ref]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *memBlob) Delete(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, ref)
	return nil
}

func (b *memBlob) corrupt(ref string, index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[ref][index] ^= 0x01
}

// memRecorder captures audit events for assertions.
type memRecorder struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (r *memRecorder) Record(_ context.Context, event *models.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *memRecorder) has(action models.AuditAction, outcome models.AuditOutcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Action == action && e.Outcome == outcome {
			return true
		}
	}
	return false
}
