package models

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles. Authorization decisions switch
// exhaustively on this type instead of comparing raw strings.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePremium Role = "premium"
	RoleGuest   Role = "guest"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RolePremium, RoleGuest:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Role           Role       `json:"role"`
	TOTPSecret     string     `json:"-"`
	TOTPVerified   bool       `json:"totp_verified"`
	KeySalt        []byte     `json:"-"`
	PublicKeyPEM   string     `json:"public_key,omitempty"`
	PrivateKeyPEM  string     `json:"-"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Locked reports whether the account is currently locked out.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
