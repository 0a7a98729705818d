package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrPolicyViolation is the sentinel wrapped by every [PolicyError].
var ErrPolicyViolation = errors.New("password policy violation")

// Policy describes the composition rules enforced on password-set
// operations. Login never re-validates composition; only Hash-time
// operations (change, reset, account creation) do.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool

	// MaxRepeatRun rejects runs of the same character longer than this
	// (0 disables the check). "aaaa" fails with MaxRepeatRun 3.
	MaxRepeatRun int
	// MaxSequentialRun rejects ascending or descending character runs longer
	// than this (0 disables). "abcd" and "4321" fail with MaxSequentialRun 3.
	MaxSequentialRun int

	// Blacklist holds disallowed passwords, compared case-insensitively.
	Blacklist []string
}

// PolicyError carries every rule the candidate violated, so callers can
// report all problems at once instead of one per attempt.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password policy violation: %s", strings.Join(e.Violations, "; "))
}

func (e *PolicyError) Unwrap() error {
	return ErrPolicyViolation
}

// Validate checks candidate against the policy. A nil return means the
// candidate is acceptable; otherwise the error is a [*PolicyError] and
// matches [ErrPolicyViolation] via errors.Is.
func (p Policy) Validate(candidate string) error {
	var violations []string

	length := len([]rune(candidate))
	if p.MinLength > 0 && length < p.MinLength {
		violations = append(violations, fmt.Sprintf("shorter than %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		violations = append(violations, fmt.Sprintf("longer than %d characters", p.MaxLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if p.RequireUpper && !hasUpper {
		violations = append(violations, "missing uppercase character")
	}
	if p.RequireLower && !hasLower {
		violations = append(violations, "missing lowercase character")
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "missing digit")
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, "missing special character")
	}

	if p.MaxRepeatRun > 0 && longestRepeatRun(candidate) > p.MaxRepeatRun {
		violations = append(violations, fmt.Sprintf("repeated character run longer than %d", p.MaxRepeatRun))
	}
	if p.MaxSequentialRun > 0 && longestSequentialRun(candidate) > p.MaxSequentialRun {
		violations = append(violations, fmt.Sprintf("sequential character run longer than %d", p.MaxSequentialRun))
	}

	if len(p.Blacklist) > 0 {
		lowered := strings.ToLower(candidate)
		for _, banned := range p.Blacklist {
			if lowered == strings.ToLower(banned) {
				violations = append(violations, "password is too common")
				break
			}
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &PolicyError{Violations: violations}
}

func longestRepeatRun(s string) int {
	var best, run int
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
		prev = r
	}
	return best
}

func longestSequentialRun(s string) int {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}

	best, asc, desc := 1, 1, 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1]+1 {
			asc++
		} else {
			asc = 1
		}
		if runes[i] == runes[i-1]-1 {
			desc++
		} else {
			desc = 1
		}
		if asc > best {
			best = asc
		}
		if desc > best {
			best = desc
		}
	}
	return best
}
