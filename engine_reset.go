package rbacauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mnaimfaizy/go-rbac-auth/token"
)

// RequestPasswordReset issues a reset token and hands it to the notifier.
// Unknown identifiers succeed silently so the operation cannot be used to
// probe for accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.notifier == nil {
		return errors.New("password reset requires a notifier")
	}

	email = normalizeEmail(email)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !user.Active {
		return nil
	}

	resetToken, claims, err := e.tokens.Issue(user.ID, token.KindReset, user.TokenVersion, e.config.Token.ResetTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := e.notifier.SendPasswordReset(ctx, user, resetToken, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, claims.ID, nil, nil)
	return nil
}

// ConfirmPasswordReset consumes a reset token and installs the new
// password. The token is single-use: its jti is revoked on success, and a
// replay fails with [ErrTokenRevoked]. A version bump between issue and
// confirm also invalidates the token.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, resetToken, newPass string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(resetToken, token.KindReset)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", err, nil)
		return err
	}

	if err := e.checkRevoked(ctx, claims.ID); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		if errors.Is(err, ErrTokenRevoked) {
			e.emitAudit(ctx, auditEventPasswordResetReplay, false, claims.Subject, claims.ID, err, nil)
		}
		return err
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if user.TokenVersion != claims.TokenVersion {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return ErrTokenVersionMismatch
	}
	// mirrors the request path: deactivation between issue and confirm
	// retires the token
	if !user.Active {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return ErrAccountDisabled
	}

	if err := e.setPassword(ctx, user, newPass); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return err
	}

	// consume the token before reporting success; a ledger outage here is
	// surfaced even though the password already changed
	if err := e.revocations.Revoke(ctx, claims.ID, claims.Remaining(e.now())); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, claims.ID, nil, nil)
	return nil
}

// RequestEmailVerification issues a verification token for an unverified
// account and hands it to the notifier. Already-verified and unknown
// accounts succeed silently.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.notifier == nil {
		return errors.New("email verification requires a notifier")
	}

	email = normalizeEmail(email)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user.Verified || !user.Active {
		return nil
	}

	verifyToken, claims, err := e.tokens.Issue(user.ID, token.KindVerification, user.TokenVersion, e.config.Token.VerificationTTL)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	if err := e.notifier.SendEmailVerification(ctx, user, verifyToken, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("send email verification: %w", err)
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, user.ID, claims.ID, nil, nil)
	return nil
}

// ConfirmEmailVerification consumes a verification token and marks the
// account verified. Single-use, like reset confirmation.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, verifyToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(verifyToken, token.KindVerification)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", "", err, nil)
		return err
	}

	if err := e.checkRevoked(ctx, claims.ID); err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		return err
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if user.TokenVersion != claims.TokenVersion {
		e.metricInc(MetricEmailVerificationFailure)
		return ErrTokenVersionMismatch
	}
	if !user.Active {
		e.metricInc(MetricEmailVerificationFailure)
		return ErrAccountDisabled
	}

	if !user.Verified {
		if err := e.users.MarkVerified(ctx, user.ID); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if err := e.revocations.Revoke(ctx, claims.ID, claims.Remaining(e.now())); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, user.ID, claims.ID, nil, nil)
	return nil
}
