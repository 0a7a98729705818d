package rbacauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mnaimfaizy/go-rbac-auth/password"
)

// ChangePassword verifies the current password, then applies the
// composition policy and the reuse guard before swapping in the new hash.
// With BumpVersionOnChange set, every outstanding token is invalidated in
// the same store transaction.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPass, newPass string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(oldPass, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.setPassword(ctx, user, newPass); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, "", nil, nil)
	return nil
}

// setPassword runs the policy and reuse checks shared by password change and
// reset confirmation, then persists the new hash.
func (e *Engine) setPassword(ctx context.Context, user *UserRecord, newPass string) error {
	if err := e.config.Password.Policy.Validate(newPass); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.ID, "", err, nil)
		return err
	}

	if depth := e.config.Password.HistoryDepth; depth > 0 {
		history, err := e.users.PasswordHistory(ctx, user.ID, depth)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		// the current hash counts against reuse too
		history = append([]string{user.PasswordHash}, history...)

		reused, err := password.IsReused(e.hasher, newPass, history)
		if err != nil {
			return fmt.Errorf("check password history: %w", err)
		}
		if reused {
			e.metricInc(MetricPasswordChangeReuseRejected)
			e.emitAudit(ctx, auditEventPasswordChangeReuse, false, user.ID, "", ErrPasswordReused, nil)
			return ErrPasswordReused
		}
	}

	newHash, err := e.hasher.Hash(newPass)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = e.users.UpdatePassword(ctx, user.ID, newHash, e.config.Password.HistoryDepth, e.config.Password.BumpVersionOnChange)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}
