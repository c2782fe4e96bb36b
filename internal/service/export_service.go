package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
	"github.com/schoolcore/school-admin-api/pkg/export"
)

type rosterRepository interface {
	ListRoster(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
}

type classDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered roster document.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders class rosters as CSV or PDF documents.
type ExportService struct {
	enrollments rosterRepository
	classes     classDetailReader
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments rosterRepository, classes classDetailReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{enrollments: enrollments, classes: classes, csv: csv, pdf: pdf, logger: logger}
}

// Roster renders the active roster of a class in the requested format
// ("csv" or "pdf").
func (s *ExportService) Roster(ctx context.Context, classID, format string) (*ExportFile, error) {
	class, err := s.classes.FindDetailByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	roster, err := s.enrollments.ListRoster(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{
		Headers: []string{"Username", "Email", "Status", "Enrolled At"},
	}
	for _, entry := range roster {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Username":    entry.StudentUsername,
			"Email":       entry.StudentEmail,
			"Status":      string(entry.Status),
			"Enrolled At": entry.EnrollmentDate.Format("2006-01-02"),
		})
	}

	switch format {
	case "csv":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv roster")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("roster-%s.csv", class.Name),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case "pdf":
		title := fmt.Sprintf("Class roster: %s (%s)", class.Name, class.AcademicYearName)
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf roster")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("roster-%s.pdf", class.Name),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.FieldError("format", "format must be csv or pdf")
	}
}
