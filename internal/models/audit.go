package models

import "time"

// AuditAction is the closed vocabulary of auditable actions.
type AuditAction string

const (
	ActionLoginSuccess        AuditAction = "LOGIN_SUCCESS"
	ActionLoginFailed         AuditAction = "LOGIN_FAILED"
	ActionLogout              AuditAction = "LOGOUT"
	ActionMFASetup            AuditAction = "MFA_SETUP"
	ActionMFAVerified         AuditAction = "MFA_VERIFIED"
	ActionMFAFailed           AuditAction = "MFA_FAILED"
	ActionAccountLocked       AuditAction = "ACCOUNT_LOCKED"
	ActionFileUpload          AuditAction = "FILE_UPLOAD"
	ActionFileDownload        AuditAction = "FILE_DOWNLOAD"
	ActionFileDelete          AuditAction = "FILE_DELETE"
	ActionFileShare           AuditAction = "FILE_SHARE"
	ActionFileUnshare         AuditAction = "FILE_UNSHARE"
	ActionKeyExchangeDownload AuditAction = "KEY_EXCHANGE_DOWNLOAD"
	ActionIntegrityPassed     AuditAction = "INTEGRITY_CHECK_PASSED"
	ActionIntegrityFailed     AuditAction = "INTEGRITY_CHECK_FAILED"
	ActionAccessGranted       AuditAction = "ACCESS_GRANTED"
	ActionAccessDenied        AuditAction = "ACCESS_DENIED"
	ActionUserCreated         AuditAction = "USER_CREATED"
	ActionUserDeleted         AuditAction = "USER_DELETED"
	ActionRoleChanged         AuditAction = "ROLE_CHANGED"
	ActionConfigChanged       AuditAction = "CONFIG_CHANGED"
)

type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "SUCCESS"
	OutcomeFailed  AuditOutcome = "FAILED"
	OutcomeDenied  AuditOutcome = "DENIED"
	OutcomeError   AuditOutcome = "ERROR"
)

// AuditEvent is append-only. Username and role are denormalized so the
// record stays meaningful if the account is later altered.
type AuditEvent struct {
	ID         int64             `json:"id"`
	ActorID    *int64            `json:"actor_id,omitempty"`
	Username   string            `json:"username"`
	Role       Role              `json:"role"`
	Action     AuditAction       `json:"action"`
	TargetID   string            `json:"target_id,omitempty"`
	TargetType string            `json:"target_type,omitempty"`
	Outcome    AuditOutcome      `json:"outcome"`
	Detail     map[string]string `json:"detail,omitempty"`
	ClientIP   string            `json:"client_ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
