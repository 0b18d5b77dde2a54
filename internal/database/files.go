package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sejf-plikow/internal/models"
)

var ErrShareTokenTaken = errors.New("share token already in use")

const fileColumns = `
	id, owner_id, name, mime_type, size_bytes, storage_ref, access_level,
	description, iv, auth_tag, file_salt, wrapped_key, key_iv, key_auth_tag,
	digest, exchange_ready, share_token, share_expires, downloads,
	deleted_at, created_at
`

func scanFile(row pgx.Row) (*models.File, error) {
	var f models.File
	err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.Name,
		&f.MimeType,
		&f.SizeBytes,
		&f.StorageRef,
		&f.AccessLevel,
		&f.Description,
		&f.Encryption.IV,
		&f.Encryption.AuthTag,
		&f.Encryption.FileSalt,
		&f.Encryption.WrappedKey,
		&f.Encryption.KeyIV,
		&f.Encryption.KeyAuthTag,
		&f.Digest,
		&f.ExchangeReady,
		&f.ShareToken,
		&f.ShareExpires,
		&f.Downloads,
		&f.DeletedAt,
		&f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func collectFiles(rows pgx.Rows) ([]models.File, error) {
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if files == nil {
		return []models.File{}, nil
	}
	return files, nil
}

type CreateFileParams struct {
	ID            uuid.UUID
	OwnerID       int64
	Name          string
	MimeType      string
	SizeBytes     int64
	StorageRef    string
	AccessLevel   models.AccessLevel
	Description   string
	Encryption    models.EncryptionMeta
	Digest        string
	ExchangeReady bool
}

func (q *Queries) CreateFile(ctx context.Context, arg CreateFileParams) (*models.File, error) {
	query := `
		INSERT INTO files (
			id, owner_id, name, mime_type, size_bytes, storage_ref, access_level,
			description, iv, auth_tag, file_salt, wrapped_key, key_iv, key_auth_tag,
			digest, exchange_ready
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + fileColumns
	row := q.db.QueryRow(ctx, query,
		arg.ID,
		arg.OwnerID,
		arg.Name,
		arg.MimeType,
		arg.SizeBytes,
		arg.StorageRef,
		arg.AccessLevel,
		arg.Description,
		arg.Encryption.IV,
		arg.Encryption.AuthTag,
		arg.Encryption.FileSalt,
		arg.Encryption.WrappedKey,
		arg.Encryption.KeyIV,
		arg.Encryption.KeyAuthTag,
		arg.Digest,
		arg.ExchangeReady,
	)
	return scanFile(row)
}

func (q *Queries) GetFileByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND deleted_at IS NULL`
	return scanFile(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetFileByShareToken(ctx context.Context, token string) (*models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE share_token = $1 AND share_expires > NOW() AND deleted_at IS NULL
	`
	return scanFile(q.db.QueryRow(ctx, query, token))
}

func (q *Queries) ListAllFiles(ctx context.Context, limit, offset int) ([]models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`
	rows, err := q.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectFiles(rows)
}

func (q *Queries) ListOwnedOrPublicFiles(ctx context.Context, ownerID int64, limit, offset int) ([]models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE (owner_id = $1 OR access_level = 'public') AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectFiles(rows)
}

func (q *Queries) ListPublicFiles(ctx context.Context, limit, offset int) ([]models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE access_level = 'public' AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`
	rows, err := q.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectFiles(rows)
}

// IncrementDownloads bumps the counter atomically on the row.
func (q *Queries) IncrementDownloads(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE files SET downloads = downloads + 1 WHERE id = $1`
	_, err := q.db.Exec(ctx, query, id)
	return err
}

func (q *Queries) SetShareToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	query := `UPDATE files SET share_token = $1, share_expires = $2 WHERE id = $3 AND deleted_at IS NULL`
	_, err := q.db.Exec(ctx, query, token, expires, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrShareTokenTaken
		}
		return err
	}
	return nil
}

func (q *Queries) ClearShareToken(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE files SET share_token = NULL, share_expires = NULL WHERE id = $1`
	_, err := q.db.Exec(ctx, query, id)
	return err
}

// SoftDeleteFile flips the deletion flag and reports whether the row was
// still live, so a concurrent double delete resolves to one winner.
func (q *Queries) SoftDeleteFile(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE files SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := q.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}
