package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		Secret:        []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "rbacauth-test",
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}
	return m
}

func TestIssueThenParseRoundTrip(t *testing.T) {
	m := newTestManager(t)

	signed, issued, err := m.Issue("u1", KindAccess, 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if issued.ID == "" {
		t.Fatal("expected non-empty jti")
	}

	claims, err := m.Parse(signed, KindAccess)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "u1" {
		t.Fatalf("expected subject u1, got %q", claims.Subject)
	}
	if claims.Kind != KindAccess {
		t.Fatalf("expected access kind, got %q", claims.Kind)
	}
	if claims.TokenVersion != 3 {
		t.Fatalf("expected token_version 3, got %d", claims.TokenVersion)
	}
	if claims.ID != issued.ID {
		t.Fatalf("jti changed across round trip: %q vs %q", claims.ID, issued.ID)
	}
}

func TestParseRejectsWrongKind(t *testing.T) {
	m := newTestManager(t)

	signed, _, err := m.Issue("u1", KindRefresh, 1, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := m.Parse(signed, KindAccess); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newTestManager(t)

	signed, _, err := m.Issue("u1", KindAccess, 1, time.Millisecond)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := m.Parse(signed, KindAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseRejectsGarbageAndForeignSignature(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Parse("not-a-token", KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for garbage, got %v", err)
	}

	other, err := NewManager(Config{
		SigningMethod: MethodHS256,
		Secret:        []byte("ffffffffffffffffffffffffffffffff"),
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}
	signed, _, err := other.Issue("u1", KindAccess, 1, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := m.Parse(signed, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for foreign signature, got %v", err)
	}
}

func TestParseRejectsAlgorithmSubstitution(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	edManager, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}

	signed, _, err := edManager.Issue("u1", KindAccess, 1, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	hsManager := newTestManager(t)
	if _, err := hsManager.Parse(signed, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for cross-algorithm token, got %v", err)
	}
}

func TestIssueGeneratesUniqueJTI(t *testing.T) {
	m := newTestManager(t)

	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		_, claims, err := m.Issue("u1", KindAccess, 1, time.Minute)
		if err != nil {
			t.Fatalf("issue failed: %v", err)
		}
		if _, dup := seen[claims.ID]; dup {
			t.Fatalf("duplicate jti %q", claims.ID)
		}
		seen[claims.ID] = struct{}{}
	}
}

func TestRemainingClampsAtZero(t *testing.T) {
	m := newTestManager(t)

	_, claims, err := m.Issue("u1", KindAccess, 1, time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if got := claims.Remaining(time.Now()); got <= 0 {
		t.Fatalf("expected positive remaining lifetime, got %v", got)
	}
	if got := claims.Remaining(time.Now().Add(2 * time.Minute)); got != 0 {
		t.Fatalf("expected zero remaining lifetime after expiry, got %v", got)
	}
}
