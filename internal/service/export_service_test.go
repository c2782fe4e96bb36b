package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
	"github.com/schoolcore/school-admin-api/pkg/export"
)

type mockRosterRepo struct {
	roster []models.EnrollmentDetail
}

func (m *mockRosterRepo) ListRoster(_ context.Context, _ string) ([]models.EnrollmentDetail, error) {
	return m.roster, nil
}

type mockClassDetailReader struct {
	detail *models.ClassDetail
}

func (m *mockClassDetailReader) FindDetailByID(_ context.Context, _ string) (*models.ClassDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

type mockPDFRenderer struct {
	title string
}

func (m *mockPDFRenderer) Render(_ export.Dataset, title string) ([]byte, error) {
	m.title = title
	return []byte("%PDF-1.4"), nil
}

func rosterFixture() []models.EnrollmentDetail {
	enrolled := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	return []models.EnrollmentDetail{
		{
			Enrollment: models.Enrollment{
				ID:             "enr-1",
				Status:         models.EnrollmentStatusActive,
				EnrollmentDate: enrolled,
			},
			StudentUsername: "alice",
			StudentEmail:    "alice@school.local",
		},
	}
}

func exportClassDetail() *mockClassDetailReader {
	return &mockClassDetailReader{detail: &models.ClassDetail{
		Class:            models.Class{ID: "c1", Name: "10-A", Capacity: 30},
		AcademicYearName: "2026/2027",
	}}
}

func TestExportServiceRosterCSV(t *testing.T) {
	svc := NewExportService(&mockRosterRepo{roster: rosterFixture()}, exportClassDetail(), nil, nil, zap.NewNop())

	file, err := svc.Roster(context.Background(), "c1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "roster-10-A.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	body := string(file.Data)
	assert.True(t, strings.HasPrefix(body, "Username,Email,Status,Enrolled At"))
	assert.Contains(t, body, "alice,alice@school.local,ACTIVE,2026-09-05")
}

func TestExportServiceRosterPDF(t *testing.T) {
	pdf := &mockPDFRenderer{}
	svc := NewExportService(&mockRosterRepo{roster: rosterFixture()}, exportClassDetail(), nil, pdf, zap.NewNop())

	file, err := svc.Roster(context.Background(), "c1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "roster-10-A.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "Class roster: 10-A (2026/2027)", pdf.title)
}

func TestExportServiceRosterRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&mockRosterRepo{}, exportClassDetail(), nil, nil, zap.NewNop())

	_, err := svc.Roster(context.Background(), "c1", "xlsx")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "format", appErr.Field)
	assert.Equal(t, 400, appErr.Status)
}

func TestExportServiceRosterUnknownClass(t *testing.T) {
	svc := NewExportService(&mockRosterRepo{}, &mockClassDetailReader{}, nil, nil, zap.NewNop())

	_, err := svc.Roster(context.Background(), "ghost", "csv")
	require.Error(t, err)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}
