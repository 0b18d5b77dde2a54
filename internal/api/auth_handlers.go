package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sejf-plikow/internal/database"
	"sejf-plikow/internal/models"
	"sejf-plikow/internal/service"
)

type RegisterRequest struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"Sup3rSecret!"`
	Role     string `json:"role" example:"premium"`
}

type RegisterResponse struct {
	User       *models.User `json:"user"`
	TOTPSecret string       `json:"totp_secret"`
	TOTPUri    string       `json:"totp_uri"`
}

// @Summary      Register a new account
// @Description  Creates an account with a derived key salt and an RSA keypair, and returns the one-time TOTP enrollment payload. Requesting the admin role when an admin already exists silently downgrades to guest.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        registerRequest  body      RegisterRequest  true  "Account details"
// @Success      201              {object}  RegisterResponse
// @Failure      400              {string}  string "Invalid request body"
// @Failure      409              {string}  string "Username or email already taken"
// @Router       /auth/register [post]
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "username and email are required")
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		role = models.RoleGuest
	}

	result, err := s.auths.Register(r.Context(), service.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	}, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordTooShort):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, database.ErrUsernameTaken), errors.Is(err, database.ErrEmailTaken):
			respondError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("registration failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, RegisterResponse{
		User:       result.User,
		TOTPSecret: result.Enrollment.Secret,
		TOTPUri:    result.Enrollment.URI,
	})
}

type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"Sup3rSecret!"`
}

// @Summary      Verify credentials (first factor)
// @Description  Checks email and password and sets the short-lived MFA-pending cookie. Full access is only granted after the TOTP code is verified.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest  body      LoginRequest  true  "Credentials"
// @Success      200           {string}  string "MFA code required"
// @Failure      401           {string}  string "Invalid credentials"
// @Failure      423           {string}  string "Account temporarily locked"
// @Router       /auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pendingToken, err := s.auths.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrAccountLocked):
			respondError(w, http.StatusLocked, "account temporarily locked")
		default:
			s.logger.Error("login failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	s.setAuthCookie(w, pendingCookieName, pendingToken, s.config.JWT.PendingTTL)
	respondMessage(w, http.StatusOK, "MFA code required")
}

type VerifyMFARequest struct {
	Code string `json:"code" example:"123456"`
}

// @Summary      Verify the TOTP code (second factor)
// @Description  Exchanges the MFA-pending cookie plus a valid TOTP code for the full access cookie. A wrong code does not invalidate the pending cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        verifyRequest  body      VerifyMFARequest  true  "TOTP code"
// @Success      200            {object}  models.User
// @Failure      401            {string}  string "Invalid code or expired pending token"
// @Router       /auth/mfa/verify [post]
func (s *Server) VerifyMFAHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(pendingCookieName)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no pending login")
		return
	}

	var req VerifyMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accessToken, user, err := s.auths.VerifyMFA(r.Context(), cookie.Value, req.Code, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrInvalidCode):
			respondError(w, http.StatusUnauthorized, err.Error())
		default:
			s.logger.Error("mfa verification failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	s.clearAuthCookie(w, pendingCookieName)
	s.setAuthCookie(w, accessCookieName, accessToken, s.config.JWT.AccessTTL)
	respondJSON(w, http.StatusOK, user)
}

// @Summary      Log out
// @Description  Clears both auth cookies. Tokens are stateless, so logout is a client-side state change plus an audit record.
// @Tags         auth
// @Success      200  {string}  string "Logged out"
// @Router       /auth/logout [post]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	s.auths.Logout(r.Context(), claims, requestMeta(r))

	s.clearAuthCookie(w, accessCookieName)
	s.clearAuthCookie(w, pendingCookieName)
	respondMessage(w, http.StatusOK, "logged out")
}

// @Summary      Get current user info
// @Tags         users
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      401  {string}  string "Unauthorized"
// @Router       /me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to retrieve user")
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (s *Server) setAuthCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearAuthCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
