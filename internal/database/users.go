package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sejf-plikow/internal/models"
)

var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already taken")
	// ErrAdminExists is raised by the partial unique index that allows at
	// most one admin row system-wide. Catching it at insert time closes
	// the check-then-create race.
	ErrAdminExists = errors.New("an admin account already exists")
)

const userColumns = `
	id, username, email, password_hash, role, totp_secret, totp_verified,
	key_salt, public_key_pem, private_key_pem, failed_attempts,
	locked_until, last_login_at, created_at
`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.TOTPSecret,
		&user.TOTPVerified,
		&user.KeySalt,
		&user.PublicKeyPEM,
		&user.PrivateKeyPEM,
		&user.FailedAttempts,
		&user.LockedUntil,
		&user.LastLoginAt,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

type CreateUserParams struct {
	Username      string
	Email         string
	PasswordHash  string
	Role          models.Role
	TOTPSecret    string
	KeySalt       []byte
	PublicKeyPEM  string
	PrivateKeyPEM string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role, totp_secret, key_salt, public_key_pem, private_key_pem)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns
	row := q.db.QueryRow(ctx, query,
		arg.Username,
		arg.Email,
		arg.PasswordHash,
		arg.Role,
		arg.TOTPSecret,
		arg.KeySalt,
		arg.PublicKeyPEM,
		arg.PrivateKeyPEM,
	)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "users_username_key":
				return nil, ErrUsernameTaken
			case "users_email_key":
				return nil, ErrEmailTaken
			case "users_single_admin":
				return nil, ErrAdminExists
			}
		}
		return nil, err
	}
	return user, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(q.db.QueryRow(ctx, query, email))
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) AdminExists(ctx context.Context) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE role = 'admin')`
	err := q.db.QueryRow(ctx, query).Scan(&exists)
	return exists, err
}

// IncrementFailedAttempts bumps the counter atomically and returns the new
// value, so concurrent failed logins cannot lose updates.
func (q *Queries) IncrementFailedAttempts(ctx context.Context, userID int64) (int, error) {
	var attempts int
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1
		WHERE id = $1
		RETURNING failed_attempts
	`
	err := q.db.QueryRow(ctx, query, userID).Scan(&attempts)
	return attempts, err
}

func (q *Queries) LockUser(ctx context.Context, userID int64, until time.Time) error {
	query := `UPDATE users SET locked_until = $1 WHERE id = $2`
	_, err := q.db.Exec(ctx, query, until, userID)
	return err
}

// CompleteMFA records a successful MFA verification: the verified flag is
// set, the failure counter resets and last login is stamped.
func (q *Queries) CompleteMFA(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET totp_verified = TRUE, failed_attempts = 0, locked_until = NULL, last_login_at = NOW()
		WHERE id = $1
	`
	_, err := q.db.Exec(ctx, query, userID)
	return err
}

func (q *Queries) UpdateUserRole(ctx context.Context, userID int64, role models.Role) error {
	query := `UPDATE users SET role = $1 WHERE id = $2`
	_, err := q.db.Exec(ctx, query, role, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "users_single_admin" {
			return ErrAdminExists
		}
		return err
	}
	return nil
}
