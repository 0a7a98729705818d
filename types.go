package rbacauth

import (
	"context"
	"time"

	"github.com/mnaimfaizy/go-rbac-auth/permission"
	"github.com/mnaimfaizy/go-rbac-auth/token"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// Identity is the verified principal extracted from an access token.
type Identity struct {
	UserID       string
	TokenVersion int64
	RoleIDs      []string
	// JTI is the token's unique identifier, usable for targeted revocation.
	JTI string
	// ExpiresAt is the token expiry; revoking up to this instant is
	// sufficient to retire the token.
	ExpiresAt time.Time
}

// AuthResult bundles the issued tokens with the authenticated principal.
type AuthResult struct {
	Tokens TokenPair
	User   *UserRecord
}

// UserRecord is the engine's view of a stored principal. Stores may keep a
// richer row; the engine reads and mutates only these fields.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	Active       bool

	// FailedAttempts is the consecutive-failure counter. Reset on success
	// and on lazy unlock.
	FailedAttempts int
	// LockedUntil is zero when the account is not locked. Lock state is
	// always derived from this instant at read time, never cached.
	LockedUntil time.Time

	// TokenVersion invalidates outstanding tokens when bumped.
	TokenVersion int64

	LastPasswordChangeAt time.Time
	RoleIDs              []string
}

// Locked reports whether the record is inside its lockout window at now.
func (u *UserRecord) Locked(now time.Time) bool {
	return !u.LockedUntil.IsZero() && now.Before(u.LockedUntil)
}

// UserStore is the persistence boundary for principals. Implementations must
// return [ErrUserNotFound] for missing rows and make RecordLoginFailure
// atomic: concurrent failures for the same user must each observe a distinct
// counter value.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*UserRecord, error)
	GetByID(ctx context.Context, id string) (*UserRecord, error)

	// RecordLoginFailure increments the consecutive-failure counter and
	// returns the post-increment value.
	RecordLoginFailure(ctx context.Context, id string) (int, error)
	ResetLoginFailures(ctx context.Context, id string) error

	Lock(ctx context.Context, id string, until time.Time) error
	ClearLock(ctx context.Context, id string) error

	// UpdatePassword replaces the stored hash, appends the prior hash to
	// the password history trimmed to depth, and bumps the token version
	// when bumpVersion is set. The whole mutation must be atomic.
	UpdatePassword(ctx context.Context, id, hash string, historyDepth int, bumpVersion bool) error
	// PasswordHistory returns up to depth prior hashes, most recent first.
	PasswordHistory(ctx context.Context, id string, depth int) ([]string, error)
	// RehashPassword swaps the stored hash in place after a transparent
	// parameter upgrade. No history entry, no version bump.
	RehashPassword(ctx context.Context, id, hash string) error

	MarkVerified(ctx context.Context, id string) error
	// BumpTokenVersion increments the principal's token version and returns
	// the new value.
	BumpTokenVersion(ctx context.Context, id string) (int64, error)
}

// HierarchySource loads the role/permission graph for the resolver. The
// engine snapshots the result; call [Engine.ReloadHierarchy] after writes.
type HierarchySource interface {
	LoadHierarchy(ctx context.Context) (*permission.Hierarchy, error)
}

// Notifier delivers out-of-band tokens (password reset, email verification).
// The engine never returns those tokens to the caller of the request
// operation.
type Notifier interface {
	SendPasswordReset(ctx context.Context, user *UserRecord, resetToken string, expiresAt time.Time) error
	SendEmailVerification(ctx context.Context, user *UserRecord, verifyToken string, expiresAt time.Time) error
}

// Kind aliases for callers that only import the root package.
const (
	KindAccess       = token.KindAccess
	KindRefresh      = token.KindRefresh
	KindReset        = token.KindReset
	KindVerification = token.KindVerification
)
