package password

import (
	"errors"
	"testing"
)

func strictPolicy() Policy {
	return Policy{
		MinLength:        10,
		MaxLength:        128,
		RequireUpper:     true,
		RequireLower:     true,
		RequireDigit:     true,
		RequireSpecial:   true,
		MaxRepeatRun:     3,
		MaxSequentialRun: 3,
		Blacklist:        []string{"Password123!", "Qwerty123!"},
	}
}

func TestPolicyAcceptsCompliantPassword(t *testing.T) {
	if err := strictPolicy().Validate("Tr1cky&Sturdy"); err != nil {
		t.Fatalf("expected compliant password to pass, got %v", err)
	}
}

func TestPolicyReportsAllViolations(t *testing.T) {
	err := strictPolicy().Validate("short")
	if err == nil {
		t.Fatal("expected policy violation")
	}
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}

	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected *PolicyError, got %T", err)
	}
	// "short": too short, no upper, no digit, no special.
	if len(policyErr.Violations) != 4 {
		t.Fatalf("expected 4 violations, got %d: %v", len(policyErr.Violations), policyErr.Violations)
	}
}

func TestPolicyRejectsRepeatedRuns(t *testing.T) {
	err := strictPolicy().Validate("Vaaaalid&123")
	if err == nil {
		t.Fatal("expected repeated-run violation")
	}
}

func TestPolicyRejectsSequentialRuns(t *testing.T) {
	for _, candidate := range []string{"Xabcd&19Zk", "Xk&87654Zq"} {
		if err := strictPolicy().Validate(candidate); err == nil {
			t.Fatalf("expected sequential-run violation for %q", candidate)
		}
	}
}

func TestPolicyBlacklistIsCaseInsensitive(t *testing.T) {
	err := strictPolicy().Validate("pASSWORD123!")
	if err == nil {
		t.Fatal("expected blacklist violation")
	}

	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected *PolicyError, got %T", err)
	}
	found := false
	for _, v := range policyErr.Violations {
		if v == "password is too common" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected too-common violation, got %v", policyErr.Violations)
	}
}

func TestZeroPolicyAcceptsAnything(t *testing.T) {
	if err := (Policy{}).Validate("x"); err != nil {
		t.Fatalf("expected zero policy to accept, got %v", err)
	}
}
