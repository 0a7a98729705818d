package rbacauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/mnaimfaizy/go-rbac-auth/password"
	"github.com/mnaimfaizy/go-rbac-auth/permission"
	"github.com/mnaimfaizy/go-rbac-auth/token"
)

var (
	// ErrInvalidCredentials is returned for any failed credential check,
	// including unknown identifiers, to avoid user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by [UserStore] implementations for missing
	// principals. The engine collapses it to [ErrInvalidCredentials] on
	// authentication paths.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountLocked indicates the account is inside its lockout window.
	// Errors matching it usually carry a retry-after via [LockedError].
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountUnverified indicates the account email is not yet verified.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountDisabled indicates the account is deactivated.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrTokenRevoked indicates the token's jti is present in the revocation
	// ledger.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenVersionMismatch indicates the token carries a stale
	// token_version snapshot: the principal's version was bumped after
	// issuance (password change or logout-all).
	ErrTokenVersionMismatch = errors.New("token version mismatch")
	// ErrPasswordReused indicates the candidate password matches one of the
	// last N passwords tracked by the history guard.
	ErrPasswordReused = errors.New("password was used recently")
	// ErrTooManyAttempts indicates the sliding attempt window is saturated.
	ErrTooManyAttempts = errors.New("too many authentication attempts")
	// ErrPermissionDenied indicates the principal's roles do not resolve to
	// the required permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStoreUnavailable indicates a backing store could not be reached.
	// Verification fails closed; the request is fatal, never assumed valid.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady indicates the engine was not built through [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrMalformedToken indicates a signature or structure failure.
	ErrMalformedToken = token.ErrMalformed
	// ErrTokenExpired indicates the token is past expiry.
	ErrTokenExpired = token.ErrExpired
	// ErrWrongTokenKind indicates a token kind mismatch.
	ErrWrongTokenKind = token.ErrWrongKind
	// ErrPasswordPolicy indicates a composition-policy violation; use
	// errors.As with [*password.PolicyError] for the individual reasons.
	ErrPasswordPolicy = password.ErrPolicyViolation
	// ErrInvalidHierarchy indicates a cycle or dangling reference in the
	// role/permission graph.
	ErrInvalidHierarchy = permission.ErrInvalidHierarchy
)

// LockedError wraps [ErrAccountLocked] with the time remaining until the
// lockout window expires. Disclosure of the retry time is deliberate:
// lockout state does not aid credential guessing.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}
