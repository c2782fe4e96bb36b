package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
)

type mockClassRepo struct {
	classes       map[string]*models.Class
	nameTaken     bool
	enrollments   int
	created       *models.Class
	deleted       []string
	replacedWith  []string
	replacedClass string
	subjectRows   []models.ClassSubjectDetail
}

func (m *mockClassRepo) List(_ context.Context, _ models.ClassFilter) ([]models.ClassDetail, int, error) {
	return nil, 0, nil
}

func (m *mockClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *class
	return &copied, nil
}

func (m *mockClassRepo) FindDetailByID(_ context.Context, id string) (*models.ClassDetail, error) {
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ClassDetail{Class: *class}, nil
}

func (m *mockClassRepo) ExistsByYearAndName(_ context.Context, _, _, _ string) (bool, error) {
	return m.nameTaken, nil
}

func (m *mockClassRepo) Create(_ context.Context, class *models.Class) error {
	class.ID = "c-new"
	m.created = class
	return nil
}

func (m *mockClassRepo) Update(_ context.Context, class *models.Class) error {
	m.classes[class.ID] = class
	return nil
}

func (m *mockClassRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockClassRepo) CountEnrollments(_ context.Context, _ string) (int, error) {
	return m.enrollments, nil
}

func (m *mockClassRepo) ListSubjects(_ context.Context, _ string) ([]models.ClassSubjectDetail, error) {
	return m.subjectRows, nil
}

func (m *mockClassRepo) ReplaceSubjects(_ context.Context, classID string, subjectIDs []string) error {
	m.replacedClass = classID
	m.replacedWith = subjectIDs
	return nil
}

type mockDepartmentReader struct {
	departments map[string]*models.Department
}

func (m *mockDepartmentReader) FindByID(_ context.Context, id string) (*models.Department, error) {
	dept, ok := m.departments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return dept, nil
}

type mockSubjectReader struct {
	subjects map[string]*models.Subject
}

func (m *mockSubjectReader) FindByID(_ context.Context, id string) (*models.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

func classTestYears() *mockYearReader {
	return &mockYearReader{years: map[string]*models.AcademicYear{
		"y1": {
			ID:        "y1",
			Name:      "2026/2027",
			StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
		},
	}}
}

func newClassService(repo *mockClassRepo, subjects *mockSubjectReader) *ClassService {
	departments := &mockDepartmentReader{departments: map[string]*models.Department{
		"d1": {ID: "d1", Name: "Science"},
	}}
	if subjects == nil {
		subjects = &mockSubjectReader{}
	}
	return NewClassService(repo, classTestYears(), departments, subjects, validator.New(), zap.NewNop())
}

func TestClassServiceCreateDefaultsCapacity(t *testing.T) {
	repo := &mockClassRepo{classes: map[string]*models.Class{}}
	svc := newClassService(repo, nil)

	class, err := svc.Create(context.Background(), ClassRequest{AcademicYearID: "y1", Name: "10-A"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultClassCapacity, class.Capacity)
	require.NotNil(t, repo.created)
	assert.Equal(t, "10-A", repo.created.Name)
}

func TestClassServiceCreateKeepsExplicitCapacity(t *testing.T) {
	repo := &mockClassRepo{classes: map[string]*models.Class{}}
	svc := newClassService(repo, nil)

	class, err := svc.Create(context.Background(), ClassRequest{AcademicYearID: "y1", Name: "10-A", Capacity: 25})
	require.NoError(t, err)
	assert.Equal(t, 25, class.Capacity)
}

func TestClassServiceCreateRejectsDuplicateName(t *testing.T) {
	repo := &mockClassRepo{classes: map[string]*models.Class{}, nameTaken: true}
	svc := newClassService(repo, nil)

	_, err := svc.Create(context.Background(), ClassRequest{AcademicYearID: "y1", Name: "10-A"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 409, appErr.Status)
	assert.Nil(t, repo.created)
}

func TestClassServiceCreateRejectsUnknownYear(t *testing.T) {
	repo := &mockClassRepo{classes: map[string]*models.Class{}}
	svc := newClassService(repo, nil)

	_, err := svc.Create(context.Background(), ClassRequest{AcademicYearID: "ghost", Name: "10-A"})
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestClassServiceCreateRejectsUnknownDepartment(t *testing.T) {
	repo := &mockClassRepo{classes: map[string]*models.Class{}}
	svc := newClassService(repo, nil)

	ghost := "ghost"
	_, err := svc.Create(context.Background(), ClassRequest{AcademicYearID: "y1", Name: "10-A", DepartmentID: &ghost})
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestClassServiceDeleteBlockedByEnrollments(t *testing.T) {
	repo := &mockClassRepo{
		classes:     map[string]*models.Class{"c1": {ID: "c1", AcademicYearID: "y1", Name: "10-A", Capacity: 30}},
		enrollments: 3,
	}
	svc := newClassService(repo, nil)

	err := svc.Delete(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, 412, appErrors.FromError(err).Status)
	assert.Empty(t, repo.deleted)
}

func TestClassServiceDelete(t *testing.T) {
	repo := &mockClassRepo{
		classes: map[string]*models.Class{"c1": {ID: "c1", AcademicYearID: "y1", Name: "10-A", Capacity: 30}},
	}
	svc := newClassService(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), "c1"))
	assert.Equal(t, []string{"c1"}, repo.deleted)
}

func TestClassServiceAssignSubjects(t *testing.T) {
	repo := &mockClassRepo{
		classes: map[string]*models.Class{"c1": {ID: "c1", AcademicYearID: "y1", Name: "10-A", Capacity: 30}},
		subjectRows: []models.ClassSubjectDetail{
			{ClassSubject: models.ClassSubject{SubjectID: "s1"}, SubjectName: "Mathematics"},
			{ClassSubject: models.ClassSubject{SubjectID: "s2"}, SubjectName: "Physics"},
		},
	}
	subjects := &mockSubjectReader{subjects: map[string]*models.Subject{
		"s1": {ID: "s1", Name: "Mathematics"},
		"s2": {ID: "s2", Name: "Physics"},
	}}
	svc := newClassService(repo, subjects)

	rows, err := svc.AssignSubjects(context.Background(), "c1", ClassSubjectsRequest{SubjectIDs: []string{"s1", "s2"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "c1", repo.replacedClass)
	assert.Equal(t, []string{"s1", "s2"}, repo.replacedWith)
}

func TestClassServiceAssignSubjectsRejectsDuplicates(t *testing.T) {
	repo := &mockClassRepo{
		classes: map[string]*models.Class{"c1": {ID: "c1", AcademicYearID: "y1", Name: "10-A", Capacity: 30}},
	}
	subjects := &mockSubjectReader{subjects: map[string]*models.Subject{
		"s1": {ID: "s1", Name: "Mathematics"},
	}}
	svc := newClassService(repo, subjects)

	_, err := svc.AssignSubjects(context.Background(), "c1", ClassSubjectsRequest{SubjectIDs: []string{"s1", "s1"}})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
	assert.Empty(t, repo.replacedWith)
}

func TestClassServiceAssignSubjectsRejectsUnknownSubject(t *testing.T) {
	repo := &mockClassRepo{
		classes: map[string]*models.Class{"c1": {ID: "c1", AcademicYearID: "y1", Name: "10-A", Capacity: 30}},
	}
	svc := newClassService(repo, &mockSubjectReader{})

	_, err := svc.AssignSubjects(context.Background(), "c1", ClassSubjectsRequest{SubjectIDs: []string{"ghost"}})
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}
