package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	rbacauth "github.com/mnaimfaizy/go-rbac-auth"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserStore is the pgx-backed implementation of [rbacauth.UserStore].
type UserStore struct {
	db DB
}

var _ rbacauth.UserStore = (*UserStore)(nil)

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, password_hash, verified, active, failed_attempts,
	locked_until, token_version, last_password_change_at`

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*rbacauth.UserRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	return s.scanUser(ctx, row)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*rbacauth.UserRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return s.scanUser(ctx, row)
}

func (s *UserStore) scanUser(ctx context.Context, row pgx.Row) (*rbacauth.UserRecord, error) {
	var (
		u            rbacauth.UserRecord
		lockedUntil  *time.Time
		lastPwChange *time.Time
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Verified, &u.Active,
		&u.FailedAttempts, &lockedUntil, &u.TokenVersion, &lastPwChange)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbacauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if lockedUntil != nil {
		u.LockedUntil = *lockedUntil
	}
	if lastPwChange != nil {
		u.LastPasswordChangeAt = *lastPwChange
	}

	rows, err := s.db.Query(ctx, `
		SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id
	`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, fmt.Errorf("scan role id: %w", err)
		}
		u.RoleIDs = append(u.RoleIDs, roleID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}

	return &u, nil
}

// RecordLoginFailure increments the consecutive-failure counter in a single
// statement so concurrent failures each observe a distinct value.
func (s *UserStore) RecordLoginFailure(ctx context.Context, id string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		UPDATE users
		SET failed_attempts = failed_attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_attempts
	`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, rbacauth.ErrUserNotFound
		}
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	return count, nil
}

func (s *UserStore) ResetLoginFailures(ctx context.Context, id string) error {
	return s.execOnUser(ctx, `
		UPDATE users SET failed_attempts = 0, updated_at = now() WHERE id = $1
	`, id)
}

func (s *UserStore) Lock(ctx context.Context, id string, until time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET locked_until = $2, updated_at = now() WHERE id = $1
	`, id, until)
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbacauth.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ClearLock(ctx context.Context, id string) error {
	return s.execOnUser(ctx, `
		UPDATE users SET locked_until = NULL, updated_at = now() WHERE id = $1
	`, id)
}

// UpdatePassword swaps the hash, archives the previous one, trims the
// history to depth, and optionally bumps the token version, all in one
// transaction.
func (s *UserStore) UpdatePassword(ctx context.Context, id, hash string, historyDepth int, bumpVersion bool) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var oldHash string
	err = tx.QueryRow(ctx, `
		SELECT password_hash FROM users WHERE id = $1 FOR UPDATE
	`, id).Scan(&oldHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbacauth.ErrUserNotFound
		}
		return fmt.Errorf("load current hash: %w", err)
	}

	if historyDepth > 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO password_history (user_id, password_hash, created_at)
			VALUES ($1, $2, now())
		`, id, oldHash); err != nil {
			return fmt.Errorf("archive hash: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM password_history
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM password_history
				WHERE user_id = $1
				ORDER BY created_at DESC
				LIMIT $2
			)
		`, id, historyDepth); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}

	bump := 0
	if bumpVersion {
		bump = 1
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET password_hash = $2,
		    last_password_change_at = now(),
		    token_version = token_version + $3,
		    updated_at = now()
		WHERE id = $1
	`, id, hash, bump); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *UserStore) PasswordHistory(ctx context.Context, id string, depth int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT password_hash FROM password_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, id, depth)
	if err != nil {
		return nil, fmt.Errorf("query password history: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *UserStore) RehashPassword(ctx context.Context, id, hash string) error {
	return s.execOnUser(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, hash)
}

func (s *UserStore) MarkVerified(ctx context.Context, id string) error {
	return s.execOnUser(ctx, `
		UPDATE users SET verified = TRUE, updated_at = now() WHERE id = $1
	`, id)
}

func (s *UserStore) BumpTokenVersion(ctx context.Context, id string) (int64, error) {
	var version int64
	err := s.db.QueryRow(ctx, `
		UPDATE users
		SET token_version = token_version + 1, updated_at = now()
		WHERE id = $1
		RETURNING token_version
	`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, rbacauth.ErrUserNotFound
		}
		return 0, fmt.Errorf("bump token version: %w", err)
	}
	return version, nil
}

func (s *UserStore) execOnUser(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbacauth.ErrUserNotFound
	}
	return nil
}
