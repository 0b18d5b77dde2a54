// Package service holds the two core services: the credential/MFA flow and
// the encrypted file pipeline. Both depend on narrow store interfaces so
// they can be exercised without a database.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"sejf-plikow/internal/auth"
	"sejf-plikow/internal/config"
	"sejf-plikow/internal/crypto"
	"sejf-plikow/internal/database"
	"sejf-plikow/internal/models"
)

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike;
	// the client never learns which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrInvalidCode        = errors.New("invalid code")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrPasswordTooShort   = errors.New("password does not meet the minimum length")
	ErrUserNotFound       = errors.New("user not found")
)

// RequestMeta is the per-request client context threaded explicitly into
// every operation instead of living on an ambient request object.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

// UserStore is the account persistence the auth flow needs.
type UserStore interface {
	CreateUser(ctx context.Context, arg database.CreateUserParams) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	AdminExists(ctx context.Context) (bool, error)
	IncrementFailedAttempts(ctx context.Context, userID int64) (int, error)
	LockUser(ctx context.Context, userID int64, until time.Time) error
	CompleteMFA(ctx context.Context, userID int64) error
	UpdateUserRole(ctx context.Context, userID int64, role models.Role) error
}

// AuditRecorder is satisfied by audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, event *models.AuditEvent)
}

type AuthService struct {
	store    UserStore
	recorder AuditRecorder
	cfg      *config.Config
	logger   *zap.Logger
}

func NewAuthService(store UserStore, recorder AuditRecorder, cfg *config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:    store,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

type RegisterParams struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// RegisterResult carries the one-time TOTP provisioning artifact. The
// secret is never again included in any response.
type RegisterResult struct {
	User       *models.User
	Enrollment *auth.TOTPEnrollment
}

func (s *AuthService) Register(ctx context.Context, arg RegisterParams, meta RequestMeta) (*RegisterResult, error) {
	if len(arg.Password) < s.cfg.Security.MinPasswordLen {
		return nil, ErrPasswordTooShort
	}
	role := arg.Role
	if !role.Valid() {
		role = models.RoleGuest
	}

	// Admin is a singleton. The existence check gives the common case a
	// clean downgrade; the partial unique index catches the race between
	// two concurrent admin registrations.
	if role == models.RoleAdmin {
		exists, err := s.store.AdminExists(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check for admin: %w", err)
		}
		if exists {
			role = models.RoleGuest
		}
	}

	hash, err := auth.HashPassword(arg.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	enrollment, err := auth.GenerateTOTPSecret(arg.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	publicPEM, privatePEM, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	params := database.CreateUserParams{
		Username:      arg.Username,
		Email:         arg.Email,
		PasswordHash:  hash,
		Role:          role,
		TOTPSecret:    enrollment.Secret,
		KeySalt:       salt,
		PublicKeyPEM:  publicPEM,
		PrivateKeyPEM: privatePEM,
	}

	user, err := s.store.CreateUser(ctx, params)
	if errors.Is(err, database.ErrAdminExists) {
		// Lost the admin race: downgrade, never silently promote.
		params.Role = models.RoleGuest
		user, err = s.store.CreateUser(ctx, params)
	}
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, &models.AuditEvent{
		ActorID:    &user.ID,
		Username:   user.Username,
		Role:       user.Role,
		Action:     models.ActionUserCreated,
		TargetID:   strconv.FormatInt(user.ID, 10),
		TargetType: "user",
		Outcome:    models.OutcomeSuccess,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
	})
	s.recorder.Record(ctx, &models.AuditEvent{
		ActorID:    &user.ID,
		Username:   user.Username,
		Role:       user.Role,
		Action:     models.ActionMFASetup,
		TargetID:   strconv.FormatInt(user.ID, 10),
		TargetType: "user",
		Outcome:    models.OutcomeSuccess,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
	})

	return &RegisterResult{User: user, Enrollment: enrollment}, nil
}

// Login verifies the password and issues the MFA-pending token. The state
// machine transitions Anonymous → PasswordVerified here; full access is
// only granted by VerifyMFA.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		// Burn a comparison so response time does not betray whether the
		// email exists.
		auth.EqualizeTiming(password)
		s.recordAuthEvent(ctx, nil, email, models.ActionLoginFailed, models.OutcomeFailed, meta, nil)
		return "", ErrInvalidCredentials
	}

	if user.Locked(time.Now()) {
		// A locked account does not consume attempts.
		s.recordAuthEvent(ctx, user, "", models.ActionLoginFailed, models.OutcomeDenied, meta, map[string]string{"reason": "locked"})
		return "", ErrAccountLocked
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		attempts, err := s.store.IncrementFailedAttempts(ctx, user.ID)
		if err != nil {
			s.logger.Error("failed to increment login attempts", zap.Error(err))
		}
		if attempts >= s.cfg.Security.LockoutThreshold {
			until := time.Now().Add(s.cfg.Security.LockoutDuration)
			if err := s.store.LockUser(ctx, user.ID, until); err != nil {
				s.logger.Error("failed to lock account", zap.Error(err))
			}
			s.recordAuthEvent(ctx, user, "", models.ActionAccountLocked, models.OutcomeSuccess, meta, map[string]string{
				"attempts": strconv.Itoa(attempts),
			})
		}
		s.recordAuthEvent(ctx, user, "", models.ActionLoginFailed, models.OutcomeFailed, meta, nil)
		return "", ErrInvalidCredentials
	}

	pendingToken, err := auth.GeneratePendingToken(user, s.cfg.JWT.Secret, s.cfg.JWT.PendingTTL)
	if err != nil {
		return "", fmt.Errorf("failed to generate pending token: %w", err)
	}

	s.recordAuthEvent(ctx, user, "", models.ActionLoginSuccess, models.OutcomeSuccess, meta, map[string]string{"stage": "password"})
	return pendingToken, nil
}

// VerifyMFA validates the pending token and the TOTP code and issues the
// full-access token: the PasswordVerified → Authenticated transition.
func (s *AuthService) VerifyMFA(ctx context.Context, pendingToken, code string, meta RequestMeta) (string, *models.User, error) {
	claims, err := auth.VerifyPendingToken(pendingToken, s.cfg.JWT.Secret)
	if err != nil {
		return "", nil, ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", nil, ErrInvalidToken
	}

	if !auth.VerifyTOTPCode(code, user.TOTPSecret) {
		s.recordAuthEvent(ctx, user, "", models.ActionMFAFailed, models.OutcomeFailed, meta, nil)
		// The pending token stays usable until its own expiry.
		return "", nil, ErrInvalidCode
	}

	if err := s.store.CompleteMFA(ctx, user.ID); err != nil {
		return "", nil, fmt.Errorf("failed to record mfa completion: %w", err)
	}

	accessToken, err := auth.GenerateAccessToken(user, s.cfg.JWT.Secret, s.cfg.JWT.AccessTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.recordAuthEvent(ctx, user, "", models.ActionMFAVerified, models.OutcomeSuccess, meta, nil)
	return accessToken, user, nil
}

// Logout only audits; tokens are stateless and are cleared client-side.
func (s *AuthService) Logout(ctx context.Context, claims *auth.AppClaims, meta RequestMeta) {
	s.recorder.Record(ctx, &models.AuditEvent{
		ActorID:   &claims.UserID,
		Username:  claims.Username,
		Role:      claims.Role,
		Action:    models.ActionLogout,
		Outcome:   models.OutcomeSuccess,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	})
}

// ChangeRole is the admin-only role mutation. Promoting to admin fails if
// an admin already exists.
func (s *AuthService) ChangeRole(ctx context.Context, actor *auth.AppClaims, targetID int64, role models.Role, meta RequestMeta) error {
	target, err := s.store.GetUserByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if target == nil {
		return ErrUserNotFound
	}

	if err := s.store.UpdateUserRole(ctx, targetID, role); err != nil {
		return err
	}

	s.recorder.Record(ctx, &models.AuditEvent{
		ActorID:    &actor.UserID,
		Username:   actor.Username,
		Role:       actor.Role,
		Action:     models.ActionRoleChanged,
		TargetID:   strconv.FormatInt(targetID, 10),
		TargetType: "user",
		Outcome:    models.OutcomeSuccess,
		Detail:     map[string]string{"from": string(target.Role), "to": string(role)},
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
	})
	return nil
}

func (s *AuthService) recordAuthEvent(ctx context.Context, user *models.User, fallbackName string, action models.AuditAction, outcome models.AuditOutcome, meta RequestMeta, detail map[string]string) {
	event := &models.AuditEvent{
		Action:    action,
		Outcome:   outcome,
		Detail:    detail,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	}
	if user != nil {
		event.ActorID = &user.ID
		event.Username = user.Username
		event.Role = user.Role
		event.TargetID = strconv.FormatInt(user.ID, 10)
		event.TargetType = "user"
	} else {
		event.Username = fallbackName
	}
	s.recorder.Record(ctx, event)
}
