package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"sejf-plikow/internal/models"
)

const testPassword = "Sup3rSecret!"

func jsonRequest(t *testing.T, method, path string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// registerAccount creates a fresh account and returns its TOTP secret.
func registerAccount(t *testing.T, username, role string) RegisterResponse {
	t.Helper()
	req := jsonRequest(t, "POST", "/api/v1/auth/register", RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	rr, envelope := doRequest(t, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp RegisterResponse
	decodeData(t, envelope, &resp)
	require.NotEmpty(t, resp.TOTPSecret)
	return resp
}

// authenticate runs the full two-step login and returns the access cookie.
func authenticate(t *testing.T, username, totpSecret string) *http.Cookie {
	t.Helper()
	req := jsonRequest(t, "POST", "/api/v1/auth/login", LoginRequest{
		Email:    username + "@example.com",
		Password: testPassword,
	})
	rr, _ := doRequest(t, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	pending := cookieByName(rr, pendingCookieName)
	require.NotNil(t, pending)

	code, err := totp.GenerateCode(totpSecret, time.Now())
	require.NoError(t, err)

	req = jsonRequest(t, "POST", "/api/v1/auth/mfa/verify", VerifyMFARequest{Code: code})
	rr, _ = doRequest(t, req, pending)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	access := cookieByName(rr, accessCookieName)
	require.NotNil(t, access)
	return access
}

var (
	adminOnce   sync.Once
	adminSecret string
)

// adminCookie lazily registers the singleton admin and logs it in.
func adminCookie(t *testing.T) *http.Cookie {
	t.Helper()
	adminOnce.Do(func() {
		resp := registerAccount(t, "vault_admin", "admin")
		require.Equal(t, models.RoleAdmin, resp.User.Role)
		adminSecret = resp.TOTPSecret
	})
	return authenticate(t, "vault_admin", adminSecret)
}

func TestAPI_RegisterAndLoginFlow(t *testing.T) {
	resp := registerAccount(t, "flow_user", "premium")
	require.Equal(t, models.RolePremium, resp.User.Role)
	require.Contains(t, resp.TOTPUri, "otpauth://")

	access := authenticate(t, "flow_user", resp.TOTPSecret)

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	rr, envelope := doRequest(t, req, access)
	require.Equal(t, http.StatusOK, rr.Code)

	var me models.User
	decodeData(t, envelope, &me)
	require.Equal(t, "flow_user", me.Username)
	require.True(t, me.TOTPVerified)
}

func TestAPI_LoginWrongPassword(t *testing.T) {
	registerAccount(t, "wrongpass_user", "premium")

	req := jsonRequest(t, "POST", "/api/v1/auth/login", LoginRequest{
		Email:    "wrongpass_user@example.com",
		Password: "not-the-password",
	})
	rr, envelope := doRequest(t, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.False(t, envelope.Success)
	require.Nil(t, cookieByName(rr, pendingCookieName))
}

func TestAPI_VerifyMFAWrongCode(t *testing.T) {
	registerAccount(t, "wrongcode_user", "premium")

	req := jsonRequest(t, "POST", "/api/v1/auth/login", LoginRequest{
		Email:    "wrongcode_user@example.com",
		Password: testPassword,
	})
	rr, _ := doRequest(t, req)
	require.Equal(t, http.StatusOK, rr.Code)
	pending := cookieByName(rr, pendingCookieName)
	require.NotNil(t, pending)

	req = jsonRequest(t, "POST", "/api/v1/auth/mfa/verify", VerifyMFARequest{Code: "000000"})
	rr, _ = doRequest(t, req, pending)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Nil(t, cookieByName(rr, accessCookieName))
}

func TestAPI_PendingTokenRejectedForAPI(t *testing.T) {
	registerAccount(t, "pending_user", "premium")

	req := jsonRequest(t, "POST", "/api/v1/auth/login", LoginRequest{
		Email:    "pending_user@example.com",
		Password: testPassword,
	})
	rr, _ := doRequest(t, req)
	pending := cookieByName(rr, pendingCookieName)
	require.NotNil(t, pending)

	// The MFA-pending token must not open any authenticated route.
	req = httptest.NewRequest("GET", "/api/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: pending.Value})
	rr, _ = doRequest(t, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAPI_SecondAdminDowngraded(t *testing.T) {
	adminCookie(t)

	resp := registerAccount(t, "would_be_admin", "admin")
	require.Equal(t, models.RoleGuest, resp.User.Role)
}

func TestAPI_Logout(t *testing.T) {
	resp := registerAccount(t, "logout_user", "premium")
	access := authenticate(t, "logout_user", resp.TOTPSecret)

	req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	rr, _ := doRequest(t, req, access)
	require.Equal(t, http.StatusOK, rr.Code)

	for _, c := range rr.Result().Cookies() {
		if c.Name == accessCookieName {
			require.Less(t, c.MaxAge, 0)
		}
	}
}

func TestAPI_UnauthenticatedRejected(t *testing.T) {
	for _, path := range []string{"/api/v1/me", "/api/v1/files"} {
		req := httptest.NewRequest("GET", path, nil)
		rr, _ := doRequest(t, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code, fmt.Sprintf("path %s", path))
	}
}

func TestAPI_AccountLockout(t *testing.T) {
	registerAccount(t, "lockout_user", "premium")

	for i := 0; i < 5; i++ {
		req := jsonRequest(t, "POST", "/api/v1/auth/login", LoginRequest{
			Email:    "lockout_user@example.com",
			Password: "bad-password",
		})
		rr, _ := doRequest(t, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	// Even the correct password is refused while locked.
	req := jsonRequest(t, "POST", "/api/v1/auth/login", LoginRequest{
		Email:    "lockout_user@example.com",
		Password: testPassword,
	})
	rr, _ := doRequest(t, req)
	require.Equal(t, http.StatusLocked, rr.Code)
}
