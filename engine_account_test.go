package rbacauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLockoutTriggersAtThreshold(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	cfg := newTestConfig()
	cfg.Lockout.MaxFailedAttempts = 3
	cfg.Lockout.LockoutDuration = 10 * time.Minute
	engine := newTestEngine(t, rdb, store, cfg)
	seedUser(t, engine, store, "correct-horse-1")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, "alice@example.com", "wrong-pass-1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	// third consecutive failure crosses the threshold
	_, err := engine.Login(ctx, "alice@example.com", "wrong-pass-1")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	var lockErr *LockedError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockedError, got %T", err)
	}
	if lockErr.RetryAfter != 10*time.Minute {
		t.Fatalf("unexpected RetryAfter %v", lockErr.RetryAfter)
	}

	if store.user("u1").LockedUntil.IsZero() {
		t.Fatal("expected LockedUntil to be persisted")
	}
}

func TestLockedAccountRejectsCorrectPassword(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	u := seedUser(t, engine, store, "correct-horse-1")
	u.LockedUntil = time.Now().Add(5 * time.Minute)

	_, err := engine.Login(context.Background(), "alice@example.com", "correct-horse-1")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	var lockErr *LockedError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockedError, got %T", err)
	}
	if lockErr.RetryAfter <= 0 || lockErr.RetryAfter > 5*time.Minute {
		t.Fatalf("RetryAfter out of range: %v", lockErr.RetryAfter)
	}
}

func TestExpiredLockClearsLazily(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	u := seedUser(t, engine, store, "correct-horse-1")
	u.FailedAttempts = 5
	u.LockedUntil = time.Now().Add(-time.Second)

	res, err := engine.Login(context.Background(), "alice@example.com", "correct-horse-1")
	if err != nil {
		t.Fatalf("Login after lock expiry failed: %v", err)
	}
	if res.Tokens.AccessToken == "" {
		t.Fatal("expected tokens after lazy unlock")
	}

	after := store.user("u1")
	if !after.LockedUntil.IsZero() {
		t.Fatal("expected lock to be cleared")
	}
	if after.FailedAttempts != 0 {
		t.Fatalf("expected failure counter reset, got %d", after.FailedAttempts)
	}
	if store.clearLockCalls != 1 {
		t.Fatalf("expected 1 ClearLock call, got %d", store.clearLockCalls)
	}
}

func TestExpiredLockWithWrongPasswordCountsFresh(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	engine := newTestEngine(t, rdb, store, newTestConfig())
	u := seedUser(t, engine, store, "correct-horse-1")
	u.FailedAttempts = 5
	u.LockedUntil = time.Now().Add(-time.Second)

	_, err := engine.Login(context.Background(), "alice@example.com", "wrong-pass-1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// the stale counter was reset before the fresh failure was recorded
	if got := store.user("u1").FailedAttempts; got != 1 {
		t.Fatalf("expected counter 1 after lazy unlock, got %d", got)
	}
}

func TestLockoutUsesEngineClock(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMockUserStore()
	cfg := newTestConfig()
	cfg.Lockout.MaxFailedAttempts = 1
	cfg.Lockout.LockoutDuration = time.Hour
	engine := newTestEngine(t, rdb, store, cfg)
	seedUser(t, engine, store, "correct-horse-1")

	base := time.Now()
	engine.now = func() time.Time { return base }

	ctx := context.Background()
	if _, err := engine.Login(ctx, "alice@example.com", "wrong-pass-1"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected immediate lock, got %v", err)
	}

	// still inside the window
	if _, err := engine.Login(ctx, "alice@example.com", "correct-horse-1"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked inside window, got %v", err)
	}

	// advance past the lock
	engine.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	if _, err := engine.Login(ctx, "alice@example.com", "correct-horse-1"); err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
}
