package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sejf-plikow/internal/models"
)

// ErrMFAPending is returned when a pending token is presented where a full
// access token is required.
var ErrMFAPending = errors.New("mfa verification pending")

type AppClaims struct {
	UserID     int64       `json:"user_id"`
	Username   string      `json:"username"`
	Role       models.Role `json:"role"`
	MFAPending bool        `json:"mfa_pending"`
	jwt.RegisteredClaims
}

func newClaims(user *models.User, pending bool, ttl time.Duration) *AppClaims {
	return &AppClaims{
		UserID:     user.ID,
		Username:   user.Username,
		Role:       user.Role,
		MFAPending: pending,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "sejf-plikow",
		},
	}
}

// GeneratePendingToken issues the short-lived token carried between
// password verification and MFA completion.
func GeneratePendingToken(user *models.User, secret string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims(user, true, ttl))
	return token.SignedString([]byte(secret))
}

// GenerateAccessToken issues the full-access token after MFA completion.
func GenerateAccessToken(user *models.User, secret string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims(user, false, ttl))
	return token.SignedString([]byte(secret))
}

// VerifyToken parses and validates either token type.
func VerifyToken(tokenString, secret string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrInvalidKey
}

// VerifyAccessToken validates a token and rejects MFA-pending ones.
func VerifyAccessToken(tokenString, secret string) (*AppClaims, error) {
	claims, err := VerifyToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.MFAPending {
		return nil, ErrMFAPending
	}
	return claims, nil
}

// VerifyPendingToken validates a token and requires the pending flag.
func VerifyPendingToken(tokenString, secret string) (*AppClaims, error) {
	claims, err := VerifyToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if !claims.MFAPending {
		return nil, jwt.ErrInvalidKey
	}
	return claims, nil
}
