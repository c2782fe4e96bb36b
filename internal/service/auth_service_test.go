package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
	"github.com/schoolcore/school-admin-api/pkg/jobs"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	conflicts map[string]bool
	tokens    map[string]*models.RefreshToken
	created   *models.User
	revoked   []string
	audits    []models.AuditLog
	lastLogin *time.Time
	password  string
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindConflicts(ctx context.Context, username, email, phone, nationalID, excludeID string) (map[string]bool, error) {
	if m.conflicts == nil {
		return map[string]bool{}, nil
	}
	return m.conflicts, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	m.created = user
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.password = passwordHash
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin = &ts
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, "all:"+userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]*models.RefreshToken)
	}
	m.tokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

type mockCodeStore struct {
	values map[string]string
}

func (m *mockCodeStore) GetString(ctx context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", appErrors.ErrCacheMiss
}

func (m *mockCodeStore) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *mockCodeStore) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

type mockFileStore struct {
	saved []string
}

func (m *mockFileStore) SaveStream(filename string, r io.Reader) (string, error) {
	m.saved = append(m.saved, filename)
	return filename, nil
}

type mockMailQueue struct {
	jobs []jobs.Job
}

func (m *mockMailQueue) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "school-admin-api",
		ResetCodeTTL:       5 * time.Minute,
	}
}

func newAuthService(repo *mockAuthRepo, codes *mockCodeStore, files *mockFileStore, queue *mockMailQueue) *AuthService {
	return NewAuthService(repo, codes, files, queue, validator.New(), zap.NewNop(), testAuthConfig())
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func activeUser(t *testing.T, email, password string) *models.User {
	return &models.User{
		ID:           "u1",
		Username:     "someone",
		Email:        email,
		PasswordHash: hashPassword(t, password),
		Role:         models.RoleStudent,
		Status:       models.ApprovalApproved,
		Member:       true,
		Active:       true,
	}
}

func TestAuthServiceRegister(t *testing.T) {
	repo := &mockAuthRepo{}
	files := &mockFileStore{}
	svc := newAuthService(repo, &mockCodeStore{}, files, &mockMailQueue{})

	user, err := svc.Register(context.Background(), RegisterRequest{
		Username:    "newstudent",
		Email:       "new@school.local",
		PhoneNumber: "08123456789",
		NationalID:  "3174051234560001",
		Password:    "supersecret",
		Role:        "student",
	}, &FileUpload{Filename: "ktp.jpg", Reader: strings.NewReader("img")})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, user.Status)
	assert.False(t, user.Member)
	assert.True(t, user.Active)
	assert.Equal(t, models.RoleStudent, user.Role)
	require.NotNil(t, user.NationalIDImage)
	assert.Contains(t, *user.NationalIDImage, ".jpg")
	require.Len(t, files.saved, 1)
	require.NotNil(t, repo.created)
}

func TestAuthServiceRegisterRejectsTakenUsername(t *testing.T) {
	repo := &mockAuthRepo{conflicts: map[string]bool{"username": true}}
	svc := newAuthService(repo, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username:    "taken",
		Email:       "new@school.local",
		PhoneNumber: "08123456789",
		NationalID:  "3174051234560001",
		Password:    "supersecret",
		Role:        "student",
	}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "username", appErr.Field)
	assert.Equal(t, "username is already taken", appErr.Message)
	assert.Nil(t, repo.created)
}

func TestAuthServiceRegisterRejectsAdminRole(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username:    "sneaky",
		Email:       "new@school.local",
		PhoneNumber: "08123456789",
		NationalID:  "3174051234560001",
		Password:    "supersecret",
		Role:        "admin",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestAuthServiceLogin(t *testing.T) {
	user := activeUser(t, "a@school.local", "supersecret")
	repo := &mockAuthRepo{users: map[string]*models.User{"a@school.local": user}}
	svc := newAuthService(repo, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

	result, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@school.local", Password: "supersecret"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "u1", result.User.ID)
	assert.NotNil(t, repo.lastLogin)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	user := activeUser(t, "a@school.local", "supersecret")
	repo := &mockAuthRepo{users: map[string]*models.User{"a@school.local": user}}
	svc := newAuthService(repo, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@school.local", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, 401, appErrors.FromError(err).Status)
}

func TestAuthServiceLoginGating(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*models.User)
		code    string
		status  int
		message string
	}{
		{
			name:   "rejected account",
			mutate: func(u *models.User) { u.Status = models.ApprovalRejected; u.Member = false },
			code:   "ACCOUNT_REJECTED",
			status: 403,
		},
		{
			name:   "pending approval",
			mutate: func(u *models.User) { u.Status = models.ApprovalPending; u.Member = false },
			code:   "PENDING_APPROVAL",
			status: 403,
		},
		{
			name:   "deactivated account",
			mutate: func(u *models.User) { u.Active = false },
			code:   "ACCOUNT_INACTIVE",
			status: 403,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := activeUser(t, "a@school.local", "supersecret")
			tc.mutate(user)
			repo := &mockAuthRepo{users: map[string]*models.User{"a@school.local": user}}
			svc := newAuthService(repo, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

			_, err := svc.Login(context.Background(), models.LoginRequest{Email: "a@school.local", Password: "supersecret"})
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Equal(t, tc.status, appErr.Status)
		})
	}
}

func TestAuthServiceRefreshTokenRotation(t *testing.T) {
	user := activeUser(t, "a@school.local", "supersecret")
	repo := &mockAuthRepo{
		users: map[string]*models.User{"a@school.local": user},
		tokens: map[string]*models.RefreshToken{
			"old-token": {ID: "rt1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newAuthService(repo, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

	result, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", result.RefreshToken)
	assert.Contains(t, repo.revoked, "rt1")
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	user := activeUser(t, "a@school.local", "supersecret")
	repo := &mockAuthRepo{
		users: map[string]*models.User{"a@school.local": user},
		tokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
		},
	}
	svc := newAuthService(repo, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, 401, appErrors.FromError(err).Status)
}

func TestAuthServiceForgotPassword(t *testing.T) {
	user := activeUser(t, "a@school.local", "supersecret")
	repo := &mockAuthRepo{users: map[string]*models.User{"a@school.local": user}}
	codes := &mockCodeStore{}
	queue := &mockMailQueue{}
	svc := newAuthService(repo, codes, &mockFileStore{}, queue)

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "a@school.local"})
	require.NoError(t, err)

	code := codes.values["password-reset:a@school.local"]
	assert.Len(t, code, 6)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "password_reset_email", queue.jobs[0].Type)
}

func TestAuthServiceForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	codes := &mockCodeStore{}
	queue := &mockMailQueue{}
	svc := newAuthService(&mockAuthRepo{}, codes, &mockFileStore{}, queue)

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "nobody@school.local"})
	require.NoError(t, err)
	assert.Empty(t, codes.values)
	assert.Empty(t, queue.jobs)
}

func TestAuthServiceResetPassword(t *testing.T) {
	user := activeUser(t, "a@school.local", "supersecret")
	repo := &mockAuthRepo{users: map[string]*models.User{"a@school.local": user}}
	codes := &mockCodeStore{values: map[string]string{"password-reset:a@school.local": "123456"}}
	svc := newAuthService(repo, codes, &mockFileStore{}, &mockMailQueue{})

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Email:       "a@school.local",
		Code:        "123456",
		NewPassword: "brand-new-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.password)
	assert.Empty(t, codes.values, "code is consumed")
	assert.Contains(t, repo.revoked, "all:u1")
}

func TestAuthServiceResetPasswordWrongCode(t *testing.T) {
	codes := &mockCodeStore{values: map[string]string{"password-reset:a@school.local": "123456"}}
	svc := newAuthService(&mockAuthRepo{}, codes, &mockFileStore{}, &mockMailQueue{})

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Email:       "a@school.local",
		Code:        "654321",
		NewPassword: "brand-new-pass",
	})
	require.Error(t, err)
	assert.Equal(t, "invalid or expired reset code", appErrors.FromError(err).Message)
}

func TestAuthServiceVerifyResetCodeExpired(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{}, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

	err := svc.VerifyResetCode(context.Background(), models.VerifyResetCodeRequest{Email: "a@school.local", Code: "123456"})
	require.Error(t, err)
	assert.Equal(t, "invalid or expired reset code", appErrors.FromError(err).Message)
}

func TestAuthServiceChangePassword(t *testing.T) {
	user := activeUser(t, "a@school.local", "supersecret")
	repo := &mockAuthRepo{users: map[string]*models.User{"a@school.local": user}}
	svc := newAuthService(repo, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "supersecret",
		NewPassword: "even-more-secret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.password)
	assert.Contains(t, repo.revoked, "all:u1")
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	user := activeUser(t, "a@school.local", "supersecret")
	repo := &mockAuthRepo{users: map[string]*models.User{"a@school.local": user}}
	svc := newAuthService(repo, &mockCodeStore{}, &mockFileStore{}, &mockMailQueue{})

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "nope",
		NewPassword: "even-more-secret",
	})
	require.Error(t, err)
	assert.Equal(t, 403, appErrors.FromError(err).Status)
	assert.Empty(t, repo.password)
}
