package rbacauth

import (
	"errors"
	"time"

	"github.com/mnaimfaizy/go-rbac-auth/password"
)

// Config is the full engine configuration tree. Configure it during
// initialization and treat it as immutable afterwards; the builder keeps a
// private clone.
type Config struct {
	Token      TokenConfig
	Lockout    LockoutConfig
	Attempts   AttemptsConfig
	Password   PasswordConfig
	Permission PermissionConfig
	Revocation RevocationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls signing and per-kind lifetimes.
type TokenConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	// Secret is the HMAC key for hs256.
	Secret []byte
	// PrivateKey/PublicKey are the Ed25519 keys, PEM or raw.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	// Leeway absorbs clock skew during expiry checks.
	Leeway time.Duration

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	ResetTTL        time.Duration
	VerificationTTL time.Duration

	// RotateRefreshTokens revokes the presented refresh token the moment a
	// replacement pair is issued.
	RotateRefreshTokens bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the consecutive-failure lockout state machine.
type LockoutConfig struct {
	// MaxFailedAttempts is the consecutive-failure threshold that triggers
	// a lock.
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// AttemptsConfig controls the sliding-window attempt throttle, evaluated
// before credentials are examined. Zero MaxAttempts disables the throttle.
type AttemptsConfig struct {
	MaxAttempts int
	Window      time.Duration
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls hashing, composition policy, and the reuse guard.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// Pepper is a server-side HMAC key mixed in before hashing. Optional.
	Pepper []byte
	// UpgradeOnLogin transparently rehashes when stored parameters are
	// weaker than the configured ones.
	UpgradeOnLogin bool

	// HistoryDepth is the number of prior hashes the reuse guard checks.
	// Zero disables the guard.
	HistoryDepth int
	// BumpVersionOnChange invalidates outstanding tokens on password change.
	BumpVersionOnChange bool

	Policy password.Policy
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig controls the role-hierarchy resolver.
type PermissionConfig struct {
	// InheritGroupGrants makes role-group ancestry grant-bearing: a role
	// inherits grants attached to its group and every ancestor group. When
	// false, groups are organizational only.
	InheritGroupGrants bool
}

// RevocationConfig controls the Redis revocation ledger.
type RevocationConfig struct {
	RedisPrefix string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Key material is not
// included; callers set Token.Secret or the ed25519 key pair before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod:       "ed25519",
			AccessTTL:           5 * time.Minute,
			RefreshTTL:          7 * 24 * time.Hour,
			ResetTTL:            15 * time.Minute,
			VerificationTTL:     24 * time.Hour,
			Leeway:              30 * time.Second,
			RotateRefreshTokens: true,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			LockoutDuration:   15 * time.Minute,
		},
		Attempts: AttemptsConfig{
			MaxAttempts: 0,
			Window:      15 * time.Minute,
			RedisPrefix: "fw",
		},
		Password: PasswordConfig{
			Memory:              65536,
			Time:                3,
			Parallelism:         2,
			SaltLength:          16,
			KeyLength:           32,
			UpgradeOnLogin:      true,
			HistoryDepth:        5,
			BumpVersionOnChange: true,
			Policy: password.Policy{
				MinLength:        10,
				MaxLength:        128,
				RequireUpper:     true,
				RequireLower:     true,
				RequireDigit:     true,
				MaxRepeatRun:     3,
				MaxSequentialRun: 4,
			},
		},
		Permission: PermissionConfig{
			InheritGroupGrants: true,
		},
		Revocation: RevocationConfig{
			RedisPrefix: "rvk",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.Password.Pepper = cloneBytes(cfg.Password.Pepper)
	out.Password.Policy.Blacklist = append([]string(nil), cfg.Password.Policy.Blacklist...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internally inconsistent or unsafe
// values. The builder calls it before constructing the engine.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.ResetTTL <= 0 {
		return errors.New("Token ResetTTL must be > 0")
	}
	if c.Token.VerificationTTL <= 0 {
		return errors.New("Token VerificationTTL must be > 0")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}
	if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
		return errors.New("unsupported token signing method")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.Token.SigningMethod == "hs256" && len(c.Token.Secret) < 32 {
		return errors.New("hs256 requires Secret length >= 256 bits")
	}

	// Lockout
	if c.Lockout.MaxFailedAttempts <= 0 {
		return errors.New("Lockout MaxFailedAttempts must be > 0")
	}
	if c.Lockout.LockoutDuration <= 0 {
		return errors.New("Lockout LockoutDuration must be > 0")
	}

	// Attempt window
	if c.Attempts.MaxAttempts < 0 {
		return errors.New("Attempts MaxAttempts must be >= 0")
	}
	if c.Attempts.MaxAttempts > 0 && c.Attempts.Window <= 0 {
		return errors.New("Attempts Window must be > 0 when the throttle is enabled")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.HistoryDepth < 0 {
		return errors.New("Password HistoryDepth must be >= 0")
	}
	if c.Password.Policy.MinLength <= 0 {
		return errors.New("Password Policy MinLength must be > 0")
	}
	if c.Password.Policy.MaxLength > 0 && c.Password.Policy.MaxLength < c.Password.Policy.MinLength {
		return errors.New("Password Policy MaxLength must be >= MinLength")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
