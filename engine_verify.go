package rbacauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mnaimfaizy/go-rbac-auth/token"
)

// VerifyAccess validates an access token end to end and returns the
// authenticated principal. Checks run in a fixed order: signature and
// structure, expiry, kind, revocation, then token version. The first
// failure wins; the revocation check fails closed when the ledger is
// unreachable.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	identity, err := e.verifyAccess(ctx, accessToken)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return nil, err
	}

	e.metricInc(MetricVerifySuccess)
	return identity, nil
}

func (e *Engine) verifyAccess(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := e.tokens.Parse(accessToken, token.KindAccess)
	if err != nil {
		return nil, err
	}

	if err := e.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	user, err := e.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrTokenVersionMismatch
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &Identity{
		UserID:       user.ID,
		TokenVersion: claims.TokenVersion,
		RoleIDs:      append([]string(nil), user.RoleIDs...),
		JTI:          claims.ID,
		ExpiresAt:    expiresAt,
	}, nil
}
