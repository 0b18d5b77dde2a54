package auth

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpIssuer = "sejf-plikow"

// TOTPEnrollment is the one-time provisioning artifact returned at
// registration. The secret is never again included in any read response.
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// GenerateTOTPSecret creates a fresh TOTP secret and its otpauth:// URI.
func GenerateTOTPSecret(accountName string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, err
	}
	return &TOTPEnrollment{Secret: key.Secret(), URI: key.URL()}, nil
}

// VerifyTOTPCode checks a 6-digit code against the secret, allowing one
// 30-second step of clock drift in either direction.
func VerifyTOTPCode(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
