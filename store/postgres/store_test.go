package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rbacauth "github.com/mnaimfaizy/go-rbac-auth"
	"github.com/mnaimfaizy/go-rbac-auth/store/postgres"
)

var userCols = []string{
	"id", "email", "password_hash", "verified", "active",
	"failed_attempts", "locked_until", "token_version", "last_password_change_at",
}

func TestGetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.NewUserStore(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		locked := time.Now().Add(time.Hour)
		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs("alice@example.com").
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow("u1", "alice@example.com", "hash", true, true, 2, &locked, int64(3), (*time.Time)(nil)))
		mock.ExpectQuery("SELECT role_id FROM user_roles").
			WithArgs("u1").
			WillReturnRows(pgxmock.NewRows([]string{"role_id"}).AddRow("admin").AddRow("viewer"))

		u, err := store.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", u.ID)
		assert.Equal(t, 2, u.FailedAttempts)
		assert.Equal(t, int64(3), u.TokenVersion)
		assert.True(t, u.Locked(time.Now()))
		assert.Equal(t, []string{"admin", "viewer"}, u.RoleIDs)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs("ghost@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := store.GetByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, rbacauth.ErrUserNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginFailureReturnsIncrementedCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.NewUserStore(mock)

	mock.ExpectQuery("UPDATE users").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"failed_attempts"}).AddRow(4))

	count, err := store.RecordLoginFailure(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLoginFailureUnknownUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.NewUserStore(mock)

	mock.ExpectQuery("UPDATE users").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.RecordLoginFailure(context.Background(), "ghost")
	assert.ErrorIs(t, err, rbacauth.ErrUserNotFound)
}

func TestLockAndClearLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.NewUserStore(mock)
	ctx := context.Background()
	until := time.Now().Add(15 * time.Minute)

	mock.ExpectExec("UPDATE users SET locked_until").
		WithArgs("u1", until).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.Lock(ctx, "u1", until))

	mock.ExpectExec("UPDATE users SET locked_until = NULL").
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.ClearLock(ctx, "u1"))

	mock.ExpectExec("UPDATE users SET locked_until").
		WithArgs("ghost", until).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, store.Lock(ctx, "ghost", until), rbacauth.ErrUserNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.NewUserStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT password_hash FROM users").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"password_hash"}).AddRow("old-hash"))
	mock.ExpectExec("INSERT INTO password_history").
		WithArgs("u1", "old-hash").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM password_history").
		WithArgs("u1", 5).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("UPDATE users").
		WithArgs("u1", "new-hash", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = store.UpdatePassword(context.Background(), "u1", "new-hash", 5, true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordSkipsHistoryWhenDepthZero(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.NewUserStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT password_hash FROM users").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"password_hash"}).AddRow("old-hash"))
	mock.ExpectExec("UPDATE users").
		WithArgs("u1", "new-hash", 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = store.UpdatePassword(context.Background(), "u1", "new-hash", 0, false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordRollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.NewUserStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT password_hash FROM users").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"password_hash"}).AddRow("old-hash"))
	mock.ExpectExec("INSERT INTO password_history").
		WithArgs("u1", "old-hash").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.UpdatePassword(context.Background(), "u1", "new-hash", 5, true)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBumpTokenVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.NewUserStore(mock)

	mock.ExpectQuery("UPDATE users").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}).AddRow(int64(7)))

	version, err := store.BumpTokenVersion(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), version)
}

func TestPasswordHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := postgres.NewUserStore(mock)

	mock.ExpectQuery("SELECT password_hash FROM password_history").
		WithArgs("u1", 3).
		WillReturnRows(pgxmock.NewRows([]string{"password_hash"}).
			AddRow("h3").AddRow("h2").AddRow("h1"))

	history, err := store.PasswordHistory(context.Background(), "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"h3", "h2", "h1"}, history)
}
