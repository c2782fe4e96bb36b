package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
)

type mockProfileRepo struct {
	users     map[string]*models.User
	conflicts map[string]bool
	updated   *models.User
	audits    []models.AuditLog
}

func (m *mockProfileRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *mockProfileRepo) FindConflicts(_ context.Context, _, _, _, _, _ string) (map[string]bool, error) {
	return m.conflicts, nil
}

func (m *mockProfileRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	var users []models.User
	for _, user := range m.users {
		users = append(users, *user)
	}
	return users, len(users), nil
}

func (m *mockProfileRepo) UpdateProfile(_ context.Context, user *models.User) error {
	m.updated = user
	return nil
}

func (m *mockProfileRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

func profileTestUser() *models.User {
	return &models.User{
		ID:          "u1",
		Username:    "alice",
		Email:       "alice@school.local",
		PhoneNumber: "0811111111",
		NationalID:  "3175000000000001",
		Role:        models.RoleStudent,
		Status:      models.ApprovalApproved,
		Member:      true,
		Active:      true,
	}
}

func newUserService(repo *mockProfileRepo, files *mockFileStore) *UserService {
	return NewUserService(repo, files, validator.New(), zap.NewNop())
}

func TestUserServiceUpdateProfile(t *testing.T) {
	repo := &mockProfileRepo{users: map[string]*models.User{"u1": profileTestUser()}}
	svc := newUserService(repo, &mockFileStore{})

	user, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{
		Email:       "alice.new@school.local",
		PhoneNumber: "0822222222",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice.new@school.local", user.Email)
	require.NotNil(t, repo.updated)
	assert.Equal(t, "0822222222", repo.updated.PhoneNumber)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionProfileUpdate, repo.audits[0].Action)
}

func TestUserServiceUpdateProfileStoresImage(t *testing.T) {
	repo := &mockProfileRepo{users: map[string]*models.User{"u1": profileTestUser()}}
	files := &mockFileStore{}
	svc := newUserService(repo, files)

	upload := &FileUpload{Filename: "me.png", Reader: strings.NewReader("png-bytes")}
	user, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{
		Email:       "alice@school.local",
		PhoneNumber: "0811111111",
	}, upload)
	require.NoError(t, err)
	require.NotNil(t, user.ProfileImage)
	assert.Equal(t, "profile-u1.png", *user.ProfileImage)
	require.Len(t, files.saved, 1)
}

func TestUserServiceUpdateProfileRejectsTakenEmail(t *testing.T) {
	repo := &mockProfileRepo{
		users:     map[string]*models.User{"u1": profileTestUser()},
		conflicts: map[string]bool{"email": true},
	}
	svc := newUserService(repo, &mockFileStore{})

	_, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{
		Email:       "taken@school.local",
		PhoneNumber: "0811111111",
	}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "email", appErr.Field)
	assert.Equal(t, "email is already taken", appErr.Message)
	assert.Nil(t, repo.updated)
}

func TestUserServiceUpdateProfileRejectsBadEmail(t *testing.T) {
	repo := &mockProfileRepo{users: map[string]*models.User{"u1": profileTestUser()}}
	svc := newUserService(repo, &mockFileStore{})

	_, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{
		Email:       "not-an-email",
		PhoneNumber: "0811111111",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestUserServiceGetUnknown(t *testing.T) {
	svc := newUserService(&mockProfileRepo{users: map[string]*models.User{}}, &mockFileStore{})

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}
