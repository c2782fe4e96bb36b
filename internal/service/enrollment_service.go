package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	"github.com/schoolcore/school-admin-api/internal/repository"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByStudentAndYear(ctx context.Context, studentID, academicYearID, excludeID string) (*models.Enrollment, error)
	CountActive(ctx context.Context, classID, academicYearID, excludeID string) (int, error)
	CreateEnforcingCapacity(ctx context.Context, enrollment *models.Enrollment) error
	UpdateEnforcingCapacity(ctx context.Context, enrollment *models.Enrollment) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// CreateEnrollmentRequest describes enrollment creation payloads.
type CreateEnrollmentRequest struct {
	StudentID      string     `json:"student_id" validate:"required"`
	ClassID        string     `json:"class_id" validate:"required"`
	AcademicYearID string     `json:"academic_year_id" validate:"required"`
	EnrollmentDate *time.Time `json:"enrollment_date"`
}

// UpdateEnrollmentRequest describes enrollment update payloads.
type UpdateEnrollmentRequest struct {
	ClassID        string `json:"class_id" validate:"required"`
	AcademicYearID string `json:"academic_year_id" validate:"required"`
}

// UpdateEnrollmentStatusRequest carries a status transition.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required"`
}

// EnrollmentService validates and persists enrollments. Every persist
// runs the same ordered checks; the first failure stops the chain and
// nothing is written.
type EnrollmentService struct {
	repo      enrollmentRepository
	users     userReader
	classes   classReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, users userReader, classes classReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, users: users, classes: classes, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one enrollment with student and class details.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Create enrolls a student into a class for an academic year.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	enrollment := &models.Enrollment{
		StudentID:      req.StudentID,
		ClassID:        req.ClassID,
		AcademicYearID: req.AcademicYearID,
		Status:         models.EnrollmentStatusActive,
	}
	if req.EnrollmentDate != nil {
		enrollment.EnrollmentDate = *req.EnrollmentDate
	}

	class, err := s.validate(ctx, enrollment, "")
	if err != nil {
		return nil, err
	}
	if err := s.ensureSingleEnrollment(ctx, req.StudentID, req.AcademicYearID, ""); err != nil {
		return nil, err
	}

	if err := s.repo.CreateEnforcingCapacity(ctx, enrollment); err != nil {
		return nil, s.persistError(err, class)
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Update moves an enrollment to another class or year. The full check
// chain runs again; the record itself is excluded from the capacity
// count.
func (s *EnrollmentService) Update(ctx context.Context, id string, req UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	enrollment.ClassID = req.ClassID
	enrollment.AcademicYearID = req.AcademicYearID

	class, err := s.validate(ctx, enrollment, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSingleEnrollment(ctx, enrollment.StudentID, req.AcademicYearID, id); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateEnforcingCapacity(ctx, enrollment); err != nil {
		return nil, s.persistError(err, class)
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// UpdateStatus transitions an enrollment between active, withdrawn and
// graduated. Re-activating a withdrawn record runs the capacity check
// again; leaving the class never does.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidEnrollmentStatus(req.Status) {
		return nil, appErrors.FieldError("status", "unknown enrollment status")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	enrollment.Status = req.Status

	class, err := s.validate(ctx, enrollment, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateEnforcingCapacity(ctx, enrollment); err != nil {
		return nil, s.persistError(err, class)
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// validate runs the ordered enrollment checks. excludeID removes the
// record under update from the capacity count. Returns the loaded class
// for capacity error messages.
func (s *EnrollmentService) validate(ctx context.Context, enrollment *models.Enrollment, excludeID string) (*models.Class, error) {
	student, err := s.users.FindByID(ctx, enrollment.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.IsStudent() {
		return nil, appErrors.FieldError("student", "selected user is not a student")
	}
	if student.Status != models.ApprovalApproved {
		return nil, appErrors.FieldError("student", "student must be approved before enrollment")
	}
	if !student.Member {
		return nil, appErrors.FieldError("student", "student must be a member of this school")
	}

	class, err := s.classes.FindByID(ctx, enrollment.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.AcademicYearID != enrollment.AcademicYearID {
		return nil, appErrors.FieldError("academic_year", "class academic year must match enrollment academic year")
	}

	if enrollment.Status == models.EnrollmentStatusActive {
		active, err := s.repo.CountActive(ctx, enrollment.ClassID, enrollment.AcademicYearID, excludeID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		if active >= class.Capacity {
			return nil, s.capacityError(class)
		}
	}

	return class, nil
}

// ensureSingleEnrollment enforces one enrollment per student per year.
func (s *EnrollmentService) ensureSingleEnrollment(ctx context.Context, studentID, academicYearID, excludeID string) error {
	existing, err := s.repo.FindByStudentAndYear(ctx, studentID, academicYearID, excludeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if existing != nil {
		return appErrors.Clone(appErrors.ErrConflict, "student already has an enrollment for this academic year")
	}
	return nil
}

// persistError maps the repository capacity signal to the field-tagged
// validation error; everything else is internal.
func (s *EnrollmentService) persistError(err error, class *models.Class) error {
	if errors.Is(err, repository.ErrCapacityReached) {
		return s.capacityError(class)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist enrollment")
}

func (s *EnrollmentService) capacityError(class *models.Class) *appErrors.Error {
	e := appErrors.Clone(appErrors.ErrCapacityReached, fmt.Sprintf("class capacity (%d) has been reached", class.Capacity))
	e.Field = "class"
	return e
}
