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

type mockTermRepo struct {
	terms     map[string]models.Term
	nameTaken bool
	created   *models.Term
}

func (m *mockTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.TermDetail, int, error) {
	return nil, 0, nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if term, ok := m.terms[id]; ok {
		return &term, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) ExistsByYearAndName(ctx context.Context, academicYearID, name, excludeID string) (bool, error) {
	return m.nameTaken, nil
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = "new-term"
	}
	if m.terms == nil {
		m.terms = make(map[string]models.Term)
	}
	m.terms[term.ID] = *term
	m.created = term
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) Delete(ctx context.Context, id string) error {
	delete(m.terms, id)
	return nil
}

type mockYearReader struct {
	years map[string]*models.AcademicYear
}

func (m *mockYearReader) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	if y, ok := m.years[id]; ok {
		return y, nil
	}
	return nil, sql.ErrNoRows
}

func termTestYear() *mockYearReader {
	return &mockYearReader{years: map[string]*models.AcademicYear{
		"y1": {
			ID:        "y1",
			Name:      "2026/2027",
			StartDate: time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC),
		},
	}}
}

func TestTermServiceCreate(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, termTestYear(), validator.New(), zap.NewNop())

	term, err := svc.Create(context.Background(), TermRequest{
		AcademicYearID: "y1",
		Name:           "Fall Term",
		StartDate:      time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, time.December, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "Fall Term", term.Name)
	require.NotNil(t, repo.created)
}

func TestTermServiceCreateRejectsDatesOutsideYear(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, termTestYear(), validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), TermRequest{
		AcademicYearID: "y1",
		Name:           "Summer Term",
		StartDate:      time.Date(2027, time.July, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2027, time.August, 20, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "start_date", appErr.Field)
	assert.Equal(t, "term dates must fall within the academic year", appErr.Message)
}

func TestTermServiceCreateRejectsInvertedDates(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, termTestYear(), validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), TermRequest{
		AcademicYearID: "y1",
		Name:           "Fall Term",
		StartDate:      time.Date(2026, time.December, 20, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, "end_date", appErrors.FromError(err).Field)
}

func TestTermServiceCreateRejectsDuplicateName(t *testing.T) {
	svc := NewTermService(&mockTermRepo{nameTaken: true}, termTestYear(), validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), TermRequest{
		AcademicYearID: "y1",
		Name:           "Fall Term",
		StartDate:      time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, time.December, 20, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
}

func TestTermServiceCreateUnknownYear(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, &mockYearReader{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), TermRequest{
		AcademicYearID: "missing",
		Name:           "Fall Term",
		StartDate:      time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, time.December, 20, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestTermServiceUpdate(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{
		"t1": {ID: "t1", AcademicYearID: "y1", Name: "Fall Term"},
	}}
	svc := NewTermService(repo, termTestYear(), validator.New(), zap.NewNop())

	term, err := svc.Update(context.Background(), "t1", TermRequest{
		AcademicYearID: "y1",
		Name:           "Autumn Term",
		StartDate:      time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, time.December, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "Autumn Term", term.Name)
}
