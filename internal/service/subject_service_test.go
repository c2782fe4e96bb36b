package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
)

type mockSubjectRepo struct {
	subjects  map[string]*models.Subject
	codeTaken bool
	created   *models.Subject
	deleted   []string
}

func (m *mockSubjectRepo) List(_ context.Context, _ models.SubjectFilter) ([]models.SubjectDetail, int, error) {
	return nil, 0, nil
}

func (m *mockSubjectRepo) FindByID(_ context.Context, id string) (*models.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *subject
	return &copied, nil
}

func (m *mockSubjectRepo) ExistsByCode(_ context.Context, _, _ string) (bool, error) {
	return m.codeTaken, nil
}

func (m *mockSubjectRepo) Create(_ context.Context, subject *models.Subject) error {
	subject.ID = "s-new"
	m.created = subject
	return nil
}

func (m *mockSubjectRepo) Update(_ context.Context, subject *models.Subject) error {
	m.subjects[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func newSubjectService(repo *mockSubjectRepo) *SubjectService {
	departments := &mockDepartmentReader{departments: map[string]*models.Department{
		"d1": {ID: "d1", Name: "Science", Code: "SCI"},
	}}
	return NewSubjectService(repo, departments, validator.New(), zap.NewNop())
}

func TestSubjectServiceCreate(t *testing.T) {
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{}}
	svc := newSubjectService(repo)

	dept := "d1"
	subject, err := svc.Create(context.Background(), SubjectRequest{Name: "Mathematics", Code: "MATH01", DepartmentID: &dept})
	require.NoError(t, err)
	assert.Equal(t, "s-new", subject.ID)
	assert.Equal(t, "MATH01", repo.created.Code)
}

func TestSubjectServiceCreateRejectsDuplicateCode(t *testing.T) {
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{}, codeTaken: true}
	svc := newSubjectService(repo)

	_, err := svc.Create(context.Background(), SubjectRequest{Name: "Mathematics", Code: "MATH01"})
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.Nil(t, repo.created)
}

func TestSubjectServiceCreateRejectsUnknownDepartment(t *testing.T) {
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{}}
	svc := newSubjectService(repo)

	ghost := "ghost"
	_, err := svc.Create(context.Background(), SubjectRequest{Name: "Mathematics", Code: "MATH01", DepartmentID: &ghost})
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestSubjectServiceCreateRejectsBadCode(t *testing.T) {
	svc := newSubjectService(&mockSubjectRepo{subjects: map[string]*models.Subject{}})

	_, err := svc.Create(context.Background(), SubjectRequest{Name: "Mathematics", Code: "MATH-01"})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestSubjectServiceUpdate(t *testing.T) {
	repo := &mockSubjectRepo{subjects: map[string]*models.Subject{
		"s1": {ID: "s1", Name: "Math", Code: "MATH01"},
	}}
	svc := newSubjectService(repo)

	subject, err := svc.Update(context.Background(), "s1", SubjectRequest{Name: "Mathematics", Code: "MATH01"})
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", subject.Name)
	assert.Equal(t, "Mathematics", repo.subjects["s1"].Name)
}

func TestSubjectServiceDeleteUnknown(t *testing.T) {
	svc := newSubjectService(&mockSubjectRepo{subjects: map[string]*models.Subject{}})

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}
