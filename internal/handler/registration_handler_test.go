package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/school-admin-api/internal/middleware"
	"github.com/schoolcore/school-admin-api/internal/models"
	"github.com/schoolcore/school-admin-api/internal/service"
	"github.com/schoolcore/school-admin-api/pkg/mailer"
)

type fakeApprovalRepo struct {
	users   []models.User
	applied []models.ApprovalUpdate
}

func (f *fakeApprovalRepo) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	var matched []models.User
	for _, user := range f.users {
		for _, id := range ids {
			if user.ID == id {
				matched = append(matched, user)
			}
		}
	}
	return matched, nil
}

func (f *fakeApprovalRepo) ListPending(context.Context) ([]models.User, error) {
	return f.users, nil
}

func (f *fakeApprovalRepo) ApplyApprovalBatch(_ context.Context, updates []models.ApprovalUpdate) error {
	f.applied = append(f.applied, updates...)
	return nil
}

func (f *fakeApprovalRepo) CreateAuditLog(context.Context, *models.AuditLog) error {
	return nil
}

type fakeNotifier struct{}

func (fakeNotifier) Send(context.Context, ...mailer.Message) error { return nil }

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func processRequest(t *testing.T, payload interface{}) *http.Request {
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/registrations/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func newRegistrationHandler(repo *fakeApprovalRepo) *RegistrationHandler {
	svc := service.NewApprovalService(repo, fakeNotifier{}, nil, nil)
	return NewRegistrationHandler(svc)
}

func TestRegistrationHandlerProcessRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRegistrationHandler(&fakeApprovalRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = processRequest(t, service.ProcessRegistrationsRequest{Action: "approve"})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	handler.Process(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "admin access required", result["message"])
}

func TestRegistrationHandlerProcessRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRegistrationHandler(&fakeApprovalRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/registrations/process", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Process(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "error", result["status"])
}

func TestRegistrationHandlerProcessApprove(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeApprovalRepo{users: []models.User{
		{ID: "u1", Username: "alice", Email: "alice@school.local", Status: models.ApprovalPending, CreatedAt: time.Now()},
	}}
	handler := newRegistrationHandler(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = processRequest(t, service.ProcessRegistrationsRequest{
		Action: "approve",
		Users:  []service.ApprovalItem{{ID: "u1", Role: "student"}},
	})
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Process(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, float64(1), result["count"])
	require.Len(t, repo.applied, 1)
	assert.Equal(t, models.ApprovalApproved, repo.applied[0].Status)
}

func TestRegistrationHandlerProcessValidationErrorStaysFlat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRegistrationHandler(&fakeApprovalRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = processRequest(t, service.ProcessRegistrationsRequest{
		Action: "archive",
		Users:  []service.ApprovalItem{{ID: "u1"}},
	})
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Process(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "error", result["status"])
	assert.NotEmpty(t, result["message"])
}
