package rbacauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mnaimfaizy/go-rbac-auth/internal/rate"
	"github.com/mnaimfaizy/go-rbac-auth/password"
	"github.com/mnaimfaizy/go-rbac-auth/permission"
	"github.com/mnaimfaizy/go-rbac-auth/revocation"
	"github.com/mnaimfaizy/go-rbac-auth/token"
)

// Engine is the authentication and authorization core. Construct it through
// [New] and [Builder.Build]; the zero value is not usable.
type Engine struct {
	config      Config
	users       UserStore
	hierarchy   HierarchySource
	notifier    Notifier
	tokens      *token.Manager
	hasher      *password.Hasher
	revocations revocation.Store
	attempts    *rate.Window
	audit       *auditDispatcher
	metrics     *Metrics

	// resolver is swapped atomically on ReloadHierarchy; readers never block.
	resolver atomic.Pointer[permission.Resolver]

	// dummyHash is a real argon2id hash at the configured cost, verified
	// against on unknown-user logins to flatten the timing difference.
	dummyHash string

	now func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded due to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
LOGIN
====================================
*/

// Login authenticates email/password and issues an access/refresh pair.
// Unknown identifiers, wrong passwords and disabled accounts are
// indistinguishable to callers; all return [ErrInvalidCredentials]. Lockout
// state is evaluated before the password so a locked account never leaks
// credential validity.
func (e *Engine) Login(ctx context.Context, email, pass string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)

	if err := e.checkAttemptWindow(ctx, email); err != nil {
		e.metricInc(MetricLoginThrottled)
		e.emitAudit(ctx, auditEventLoginThrottled, false, "", "", err, nil)
		return nil, err
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// burn a hash to keep unknown-user timing close to a mismatch
			_, _ = e.hasher.Verify(pass, e.dummyHash)
			e.recordFailure(ctx, email)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrUserNotFound, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if locked, lerr := e.checkLockout(ctx, user); locked {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", lerr, nil)
		return nil, lerr
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, e.handleFailedPassword(ctx, email, user)
	}

	if !user.Active {
		// audit records the real cause; the caller sees only the generic
		// error so login cannot probe account state
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrAccountDisabled, nil)
		return nil, ErrInvalidCredentials
	}
	if !user.Verified {
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrAccountUnverified, nil)
		return nil, ErrAccountUnverified
	}

	if user.FailedAttempts > 0 {
		if err := e.users.ResetLoginFailures(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if e.attempts != nil {
		_ = e.attempts.Reset(ctx, email)
	}

	e.maybeUpgradeHash(ctx, user, pass)

	pair, _, err := e.issuePair(user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, "", nil, nil)

	return &AuthResult{Tokens: pair, User: user}, nil
}

func (e *Engine) handleFailedPassword(ctx context.Context, email string, user *UserRecord) error {
	e.recordFailure(ctx, email)

	count, err := e.users.RecordLoginFailure(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if count >= e.config.Lockout.MaxFailedAttempts {
		until := e.now().Add(e.config.Lockout.LockoutDuration)
		if err := e.users.Lock(ctx, user.ID, until); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventAccountLocked, false, user.ID, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{"failed_attempts": strconv.Itoa(count)}
		})
		return &LockedError{RetryAfter: e.config.Lockout.LockoutDuration}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

// maybeUpgradeHash transparently rehashes after a parameter upgrade. Failure
// is non-fatal; the old hash keeps working.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *UserRecord, pass string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := e.users.RehashPassword(ctx, user.ID, newHash); err == nil {
		user.PasswordHash = newHash
	}
}

/*
====================================
REFRESH / LOGOUT
====================================
*/

// Refresh exchanges a refresh token for a new access/refresh pair. With
// rotation enabled the presented token is revoked before the new pair is
// returned, so a replayed token fails with [ErrTokenRevoked].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(refreshToken, token.KindRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
		return nil, err
	}

	if err := e.checkRevoked(ctx, claims.ID); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.ID, err, nil)
		return nil, err
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if user.TokenVersion != claims.TokenVersion {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, claims.ID, ErrTokenVersionMismatch, nil)
		return nil, ErrTokenVersionMismatch
	}
	if !user.Active {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrAccountDisabled
	}
	if locked, lerr := e.checkLockout(ctx, user); locked {
		e.metricInc(MetricRefreshFailure)
		return nil, lerr
	}

	if e.config.Token.RotateRefreshTokens {
		if err := e.revocations.Revoke(ctx, claims.ID, claims.Remaining(e.now())); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.metricInc(MetricTokenRevoked)
	}

	pair, _, err := e.issuePair(user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, claims.ID, nil, nil)

	return &AuthResult{Tokens: pair, User: user}, nil
}

// Logout retires the presented token, access or refresh, by revoking its
// jti for the remainder of its lifetime. The paired token is untouched;
// revoke it separately with [Engine.RevokeToken], or use [Engine.LogoutAll]
// to invalidate everything at once.
func (e *Engine) Logout(ctx context.Context, tokenStr string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(tokenStr, token.KindAccess)
	if errors.Is(err, token.ErrWrongKind) {
		claims, err = e.tokens.Parse(tokenStr, token.KindRefresh)
	}
	if err != nil {
		return err
	}

	if err := e.revocations.Revoke(ctx, claims.ID, claims.Remaining(e.now())); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.Subject, claims.ID, nil, nil)
	return nil
}

// LogoutAll bumps the principal's token version, invalidating every
// outstanding token at once. Returns the new version.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	version, err := e.users.BumpTokenVersion(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)
	return version, nil
}

// RevokeToken retires an individual token of any kind by its jti.
func (e *Engine) RevokeToken(ctx context.Context, tokenStr string, kind token.Kind) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(tokenStr, kind)
	if err != nil {
		return err
	}

	if err := e.revocations.Revoke(ctx, claims.ID, claims.Remaining(e.now())); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventTokenRevoked, true, claims.Subject, claims.ID, nil, nil)
	return nil
}

/*
====================================
HELPERS
====================================
*/

func (e *Engine) issuePair(user *UserRecord) (TokenPair, *token.Claims, error) {
	access, accessClaims, err := e.tokens.Issue(user.ID, token.KindAccess, user.TokenVersion, e.config.Token.AccessTTL)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := e.tokens.Issue(user.ID, token.KindRefresh, user.TokenVersion, e.config.Token.RefreshTTL)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(e.config.Token.AccessTTL / time.Second),
	}, accessClaims, nil
}

// checkRevoked consults the revocation ledger and fails closed: if the
// ledger is unreachable the token is treated as unverifiable, never as
// valid.
func (e *Engine) checkRevoked(ctx context.Context, jti string) error {
	revoked, err := e.revocations.IsRevoked(ctx, jti)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

func (e *Engine) checkAttemptWindow(ctx context.Context, identifier string) error {
	if e.attempts == nil {
		return nil
	}
	count, err := e.attempts.Count(ctx, identifier, e.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count >= e.config.Attempts.MaxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (e *Engine) recordFailure(ctx context.Context, identifier string) {
	if e.attempts == nil {
		return
	}
	// throttling is advisory; a dead window backend must not block login
	_, _ = e.attempts.Record(ctx, identifier, e.now())
}

// checkLockout applies lazy unlock: an expired lock is cleared and the
// failure counter reset on the next attempt that observes it.
func (e *Engine) checkLockout(ctx context.Context, user *UserRecord) (bool, error) {
	if user.LockedUntil.IsZero() {
		return false, nil
	}

	now := e.now()
	if now.Before(user.LockedUntil) {
		return true, &LockedError{RetryAfter: user.LockedUntil.Sub(now)}
	}

	if err := e.users.ClearLock(ctx, user.ID); err != nil {
		return true, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.users.ResetLoginFailures(ctx, user.ID); err != nil {
		return true, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	user.LockedUntil = time.Time{}
	user.FailedAttempts = 0

	e.metricInc(MetricAccountUnlocked)
	e.emitAudit(ctx, auditEventAccountUnlocked, true, user.ID, "", nil, nil)
	return false, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
