package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
	"github.com/schoolcore/school-admin-api/pkg/mailer"
)

type mockApprovalRepo struct {
	users   map[string]models.User
	applied []models.ApprovalUpdate
	audits  []models.AuditLog
}

func (m *mockApprovalRepo) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var found []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			found = append(found, u)
		}
	}
	return found, nil
}

func (m *mockApprovalRepo) ListPending(ctx context.Context) ([]models.User, error) {
	var pending []models.User
	for _, u := range m.users {
		if u.Status == models.ApprovalPending {
			pending = append(pending, u)
		}
	}
	return pending, nil
}

func (m *mockApprovalRepo) ApplyApprovalBatch(ctx context.Context, updates []models.ApprovalUpdate) error {
	m.applied = append(m.applied, updates...)
	return nil
}

func (m *mockApprovalRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, *log)
	return nil
}

type mockMailer struct {
	sent []mailer.Message
	err  error
}

func (m *mockMailer) Send(ctx context.Context, messages ...mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, messages...)
	return nil
}

func pendingUser(id, email string) models.User {
	return models.User{ID: id, Username: "user-" + id, Email: email, Status: models.ApprovalPending}
}

func TestApprovalServiceProcessApprove(t *testing.T) {
	repo := &mockApprovalRepo{users: map[string]models.User{
		"u1": pendingUser("u1", "u1@school.local"),
		"u2": pendingUser("u2", "u2@school.local"),
	}}
	mail := &mockMailer{}
	svc := NewApprovalService(repo, mail, validator.New(), zap.NewNop())

	outcome, err := svc.Process(context.Background(), "admin-1", ProcessRegistrationsRequest{
		Action: "approve",
		Users: []ApprovalItem{
			{ID: "u1", Role: "student"},
			{ID: "u2", Role: "teacher"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Processed)
	assert.False(t, outcome.MailFailed)
	require.Len(t, repo.applied, 2)
	assert.Equal(t, models.RoleStudent, repo.applied[0].Role)
	assert.True(t, repo.applied[0].Member)
	assert.True(t, repo.applied[0].Active)
	assert.Len(t, repo.audits, 2)
	assert.Len(t, mail.sent, 2)
	assert.Equal(t, "Registration approved", mail.sent[0].Subject)
}

func TestApprovalServiceProcessSkipsUnknownUsers(t *testing.T) {
	repo := &mockApprovalRepo{users: map[string]models.User{
		"u1": pendingUser("u1", "u1@school.local"),
		"u2": pendingUser("u2", "u2@school.local"),
	}}
	svc := NewApprovalService(repo, &mockMailer{}, validator.New(), zap.NewNop())

	outcome, err := svc.Process(context.Background(), "admin-1", ProcessRegistrationsRequest{
		Action: "approve",
		Users: []ApprovalItem{
			{ID: "u1", Role: "student"},
			{ID: "ghost", Role: "student"},
			{ID: "u2", Role: "student"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Processed)
	assert.Contains(t, outcome.Skipped, "ghost")
}

func TestApprovalServiceProcessApproveRequiresRole(t *testing.T) {
	repo := &mockApprovalRepo{users: map[string]models.User{"u1": pendingUser("u1", "u1@school.local")}}
	svc := NewApprovalService(repo, &mockMailer{}, validator.New(), zap.NewNop())

	_, err := svc.Process(context.Background(), "admin-1", ProcessRegistrationsRequest{
		Action: "approve",
		Users:  []ApprovalItem{{ID: "u1"}},
	})
	require.Error(t, err)
	assert.Equal(t, "role", appErrors.FromError(err).Field)
	assert.Empty(t, repo.applied)
}

func TestApprovalServiceProcessRejectRequiresReason(t *testing.T) {
	repo := &mockApprovalRepo{users: map[string]models.User{"u1": pendingUser("u1", "u1@school.local")}}
	svc := NewApprovalService(repo, &mockMailer{}, validator.New(), zap.NewNop())

	_, err := svc.Process(context.Background(), "admin-1", ProcessRegistrationsRequest{
		Action: "reject",
		Users:  []ApprovalItem{{ID: "u1"}},
	})
	require.Error(t, err)
	assert.Equal(t, "reason", appErrors.FromError(err).Field)
	assert.Empty(t, repo.applied)
}

func TestApprovalServiceProcessReject(t *testing.T) {
	repo := &mockApprovalRepo{users: map[string]models.User{"u1": pendingUser("u1", "u1@school.local")}}
	mail := &mockMailer{}
	svc := NewApprovalService(repo, mail, validator.New(), zap.NewNop())

	outcome, err := svc.Process(context.Background(), "admin-1", ProcessRegistrationsRequest{
		Action: "reject",
		Users:  []ApprovalItem{{ID: "u1"}},
		Reason: "incomplete documents",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	require.Len(t, repo.applied, 1)
	assert.Equal(t, models.ApprovalRejected, repo.applied[0].Status)
	assert.Equal(t, models.RoleNone, repo.applied[0].Role)
	assert.False(t, repo.applied[0].Member)
	require.NotNil(t, repo.applied[0].RejectionReason)
	assert.Equal(t, "incomplete documents", *repo.applied[0].RejectionReason)
	require.Len(t, mail.sent, 1)
	assert.Contains(t, mail.sent[0].Body, "incomplete documents")
}

func TestApprovalServiceProcessSkipsAlreadyApproved(t *testing.T) {
	approved := pendingUser("u1", "u1@school.local")
	approved.Status = models.ApprovalApproved
	repo := &mockApprovalRepo{users: map[string]models.User{"u1": approved}}
	svc := NewApprovalService(repo, &mockMailer{}, validator.New(), zap.NewNop())

	outcome, err := svc.Process(context.Background(), "admin-1", ProcessRegistrationsRequest{
		Action: "approve",
		Users:  []ApprovalItem{{ID: "u1", Role: "student"}},
	})
	require.NoError(t, err)
	assert.Zero(t, outcome.Processed)
	assert.Contains(t, outcome.Skipped, "u1")
	assert.Empty(t, repo.applied)
}

func TestApprovalServiceProcessMailFailureIsPartial(t *testing.T) {
	repo := &mockApprovalRepo{users: map[string]models.User{"u1": pendingUser("u1", "u1@school.local")}}
	mail := &mockMailer{err: errors.New("smtp down")}
	svc := NewApprovalService(repo, mail, validator.New(), zap.NewNop())

	outcome, err := svc.Process(context.Background(), "admin-1", ProcessRegistrationsRequest{
		Action: "approve",
		Users:  []ApprovalItem{{ID: "u1", Role: "student"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.True(t, outcome.MailFailed)
	require.Len(t, repo.applied, 1)
}

func TestApprovalServiceProcessRejectsUnknownAction(t *testing.T) {
	svc := NewApprovalService(&mockApprovalRepo{}, &mockMailer{}, validator.New(), zap.NewNop())

	_, err := svc.Process(context.Background(), "admin-1", ProcessRegistrationsRequest{
		Action: "archive",
		Users:  []ApprovalItem{{ID: "u1"}},
	})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}
