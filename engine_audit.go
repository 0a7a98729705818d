package rbacauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginThrottled           = "login_throttled"
	auditEventAccountLocked            = "account_locked"
	auditEventAccountUnlocked          = "account_unlocked"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshInvalid           = "refresh_invalid"
	auditEventTokenRevoked             = "token_revoked"
	auditEventLogout                   = "logout"
	auditEventLogoutAll                = "logout_all"
	auditEventPasswordChangeSuccess    = "password_change_success"
	auditEventPasswordChangeFailure    = "password_change_failure"
	auditEventPasswordChangeReuse      = "password_change_reuse_attempt"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventPasswordResetReplay      = "password_reset_replay"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventPermissionDenied         = "permission_denied"
	auditEventHierarchyReloaded        = "hierarchy_reloaded"
)

// AuditErrorCode is the stable error label recorded on audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials   AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound         AuditErrorCode = "user_not_found"
	auditErrAccountLocked        AuditErrorCode = "account_locked"
	auditErrAccountDisabled      AuditErrorCode = "account_disabled"
	auditErrAccountUnverified    AuditErrorCode = "account_unverified"
	auditErrThrottled            AuditErrorCode = "too_many_attempts"
	auditErrInvalidToken         AuditErrorCode = "invalid_token"
	auditErrTokenExpired         AuditErrorCode = "token_expired"
	auditErrTokenRevoked         AuditErrorCode = "token_revoked"
	auditErrTokenVersionMismatch AuditErrorCode = "token_version_mismatch"
	auditErrPasswordPolicy       AuditErrorCode = "password_policy"
	auditErrPasswordReuse        AuditErrorCode = "password_reuse"
	auditErrPermissionDenied     AuditErrorCode = "permission_denied"
	auditErrHierarchyInvalid     AuditErrorCode = "hierarchy_invalid"
	auditErrBackendUnavailable   AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	jti string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		JTI:       jti,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrThrottled
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrTokenVersionMismatch):
		return auditErrTokenVersionMismatch
	case errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrWrongTokenKind):
		return auditErrInvalidToken
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReused):
		return auditErrPasswordReuse
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrInvalidHierarchy):
		return auditErrHierarchyInvalid
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrBackendUnavailable
	default:
		return auditErrInternal
	}
}
