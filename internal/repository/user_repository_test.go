package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/school-admin-api/internal/models"
)

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Username:     "alice",
		Email:        "alice@school.local",
		PhoneNumber:  "0811111111",
		NationalID:   "3175000000000001",
		PasswordHash: "hash",
		Role:         models.RoleStudent,
		Status:       models.ApprovalPending,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindConflicts(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"username", "email", "phone_number", "national_id"}).
		AddRow("Alice", "other@school.local", "0811111111", "999").
		AddRow("someone", "alice@school.local", "000", "3175000000000001")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT username, email, phone_number, national_id FROM users")).
		WithArgs("alice", "alice@school.local", "0811111111", "3175000000000001").
		WillReturnRows(rows)

	conflicts, err := repo.FindConflicts(context.Background(), "alice", "alice@school.local", "0811111111", "3175000000000001", "")
	require.NoError(t, err)
	require.True(t, conflicts["username"])
	require.True(t, conflicts["email"])
	require.True(t, conflicts["phone_number"])
	require.True(t, conflicts["national_id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindConflictsNone(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT username, email, phone_number, national_id FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"username", "email", "phone_number", "national_id"}))

	conflicts, err := repo.FindConflicts(context.Background(), "alice", "alice@school.local", "", "", "")
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryApplyApprovalBatch(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reason := "incomplete documents"
	updates := []models.ApprovalUpdate{
		{UserID: "u1", Role: models.RoleStudent, Status: models.ApprovalApproved, Member: true, Active: true, UpdatedAt: time.Now()},
		{UserID: "u2", Status: models.ApprovalRejected, RejectionReason: &reason, UpdatedAt: time.Now()},
	}
	require.NoError(t, repo.ApplyApprovalBatch(context.Background(), updates))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryApplyApprovalBatchEmpty(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	require.NoError(t, repo.ApplyApprovalBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCountPending(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE status = $1")).
		WithArgs(models.ApprovalPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

	count, err := repo.CountPending(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 9, count)

	mock.ExpectQuery(regexp.QuoteMeta("AND role = $2")).
		WithArgs(models.ApprovalPending, models.RoleStudent).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err = repo.CountPending(context.Background(), models.RoleStudent)
	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDs(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "username", "email", "phone_number", "national_id", "password_hash", "role", "status",
		"member", "active", "rejection_reason", "national_id_image", "profile_image", "last_login", "created_at", "updated_at",
	}).
		AddRow("u1", "alice", "alice@school.local", "0811111111", "317", "hash", models.RoleStudent, models.ApprovalPending, false, true, nil, nil, nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id IN")).
		WithArgs("u1", "u2").
		WillReturnRows(rows)

	users, err := repo.FindByIDs(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "alice", users[0].Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateLastLogin(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	ts := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_login = $2")).
		WithArgs("u1", ts, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLastLogin(context.Background(), "u1", ts))
	require.NoError(t, mock.ExpectationsWereMet())
}
