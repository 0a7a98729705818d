package rbacauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mnaimfaizy/go-rbac-auth/token"
)

func TestRefreshRotatesAndRevokesOldToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	seedUser(t, engine, store, "correct-horse-1")

	ctx := context.Background()
	first, err := engine.Login(ctx, "alice@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	second, err := engine.Refresh(ctx, first.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if second.Tokens.RefreshToken == first.Tokens.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	// replaying the rotated-out token must fail
	if _, err := engine.Refresh(ctx, first.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on replay, got %v", err)
	}

	// the replacement still works
	if _, err := engine.Refresh(ctx, second.Tokens.RefreshToken); err != nil {
		t.Fatalf("Refresh with rotated token failed: %v", err)
	}
}

func TestRefreshWithoutRotationKeepsOldTokenValid(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	cfg := newTestConfig()
	cfg.Token.RotateRefreshTokens = false
	engine := newTestEngine(t, rdb, store, cfg)
	seedUser(t, engine, store, "correct-horse-1")

	ctx := context.Background()
	first, err := engine.Login(ctx, "alice@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, first.Tokens.RefreshToken); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, first.Tokens.RefreshToken); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	seedUser(t, engine, store, "correct-horse-1")

	ctx := context.Background()
	res, err := engine.Login(ctx, "alice@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, res.Tokens.AccessToken); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestRefreshAfterVersionBump(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	seedUser(t, engine, store, "correct-horse-1")

	ctx := context.Background()
	res, err := engine.Login(ctx, "alice@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.LogoutAll(ctx, "u1"); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrTokenVersionMismatch) {
		t.Fatalf("expected ErrTokenVersionMismatch, got %v", err)
	}
}

func TestRefreshLockedAccount(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	u := seedUser(t, engine, store, "correct-horse-1")

	ctx := context.Background()
	res, err := engine.Login(ctx, "alice@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	u.LockedUntil = time.Now().Add(10 * time.Minute)
	if _, err := engine.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	seedUser(t, engine, store, "correct-horse-1")

	ctx := context.Background()
	res, err := engine.Login(ctx, "alice@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}

	// access token stays valid until it expires; logout only retires the
	// presented token
	if _, err := engine.VerifyAccess(ctx, res.Tokens.AccessToken); err != nil {
		t.Fatalf("VerifyAccess after logout failed: %v", err)
	}
}

func TestLogoutAcceptsAccessToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	seedUser(t, engine, store, "correct-horse-1")

	ctx := context.Background()
	res, err := engine.Login(ctx, "alice@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, res.Tokens.AccessToken); err != nil {
		t.Fatalf("Logout with access token failed: %v", err)
	}

	if _, err := engine.VerifyAccess(ctx, res.Tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}

	// the refresh token was not presented and stays usable
	if _, err := engine.Refresh(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("Refresh after access-token logout failed: %v", err)
	}
}

func TestLogoutRejectsNonSessionToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	seedUser(t, engine, store, "correct-horse-1")

	resetToken, _, err := engine.tokens.Issue("u1", token.KindReset, 0, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := engine.Logout(context.Background(), resetToken); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestLogoutAllUnknownUser(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())

	if _, err := engine.LogoutAll(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRefreshFailsClosedWhenLedgerDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	seedUser(t, engine, store, "correct-horse-1")

	ctx := context.Background()
	res, err := engine.Login(ctx, "alice@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	mr.Close()

	if _, err := engine.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
