package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolcore/school-admin-api/internal/models"
)

// ErrCapacityReached signals that an enrollment could not be persisted
// because the class is full. Detected under a row lock on the class so
// concurrent writers cannot both slip under the limit.
var ErrCapacityReached = errors.New("class capacity reached")

const enrollmentDetailColumns = `e.id, e.student_id, e.class_id, e.academic_year_id, e.status, e.enrollment_date, e.created_at, e.updated_at,
       u.username AS student_username, u.email AS student_email,
       c.name AS class_name,
       ay.name AS academic_year_name`

// EnrollmentRepository handles persistence for enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository instantiates an enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments matching provided filters.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN classes c ON c.id = e.class_id
JOIN academic_years ay ON ay.id = e.academic_year_id
WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("e.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"enrollment_date": "e.enrollment_date",
		"created_at":      "e.created_at",
		"student":         "u.username",
		"class":           "c.name",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "e.created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", enrollmentDetailColumns, base, sortColumn, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	return enrollments, total, nil
}

// FindByID loads an enrollment by identifier.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, academic_year_id, status, enrollment_date, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID loads an enrollment with student, class and year names.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s
FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN classes c ON c.id = e.class_id
JOIN academic_years ay ON ay.id = e.academic_year_id
WHERE e.id = $1`, enrollmentDetailColumns)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByStudentAndYear returns the student's enrollment for the year,
// excluding one record when updating.
func (r *EnrollmentRepository) FindByStudentAndYear(ctx context.Context, studentID, academicYearID, excludeID string) (*models.Enrollment, error) {
	base := `SELECT id, student_id, class_id, academic_year_id, status, enrollment_date, created_at, updated_at FROM enrollments WHERE student_id = $1 AND academic_year_id = $2`
	args := []interface{}{studentID, academicYearID}
	if excludeID != "" {
		base += " AND id <> $3"
		args = append(args, excludeID)
	}
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, base+" LIMIT 1", args...); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CountActive returns the number of active enrollments in a class for
// one academic year, optionally excluding a record under update.
func (r *EnrollmentRepository) CountActive(ctx context.Context, classID, academicYearID, excludeID string) (int, error) {
	base := `SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND academic_year_id = $2 AND status = $3`
	args := []interface{}{classID, academicYearID, models.EnrollmentStatusActive}
	if excludeID != "" {
		base += " AND id <> $4"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, base, args...); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// CreateEnforcingCapacity inserts an enrollment while holding a row lock
// on the class. For an active enrollment the insert only happens when
// the recount under the lock stays below capacity; otherwise the tx is
// rolled back and ErrCapacityReached returned.
func (r *EnrollmentRepository) CreateEnforcingCapacity(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}

	const insert = `INSERT INTO enrollments (id, student_id, class_id, academic_year_id, status, enrollment_date, created_at, updated_at)
VALUES (:id, :student_id, :class_id, :academic_year_id, :status, :enrollment_date, :created_at, :updated_at)`
	return r.withCapacityLock(ctx, enrollment, "", func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
		return nil
	})
}

// UpdateEnforcingCapacity updates an enrollment under the same class row
// lock, excluding the record itself from the recount.
func (r *EnrollmentRepository) UpdateEnforcingCapacity(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()

	const update = `UPDATE enrollments SET student_id = :student_id, class_id = :class_id, academic_year_id = :academic_year_id, status = :status, enrollment_date = :enrollment_date, updated_at = :updated_at WHERE id = :id`
	return r.withCapacityLock(ctx, enrollment, enrollment.ID, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, update, enrollment); err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}
		return nil
	})
}

// withCapacityLock runs the write inside a transaction that locks the
// class row. The capacity recount only applies to active enrollments;
// withdrawn and graduated transitions always go through.
func (r *EnrollmentRepository) withCapacityLock(ctx context.Context, enrollment *models.Enrollment, excludeID string, write func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment write: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	if err = tx.GetContext(ctx, &capacity, `SELECT capacity FROM classes WHERE id = $1 FOR UPDATE`, enrollment.ClassID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock class row: %w", err)
	}

	if enrollment.Status == models.EnrollmentStatusActive {
		countQuery := `SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND academic_year_id = $2 AND status = $3`
		args := []interface{}{enrollment.ClassID, enrollment.AcademicYearID, models.EnrollmentStatusActive}
		if excludeID != "" {
			countQuery += " AND id <> $4"
			args = append(args, excludeID)
		}
		var active int
		if err = tx.GetContext(ctx, &active, countQuery, args...); err != nil {
			return fmt.Errorf("recount active enrollments: %w", err)
		}
		if active >= capacity {
			err = ErrCapacityReached
			return err
		}
	}

	if err = write(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment write: %w", err)
	}
	return nil
}

// ListRoster returns the active enrollments of a class with student
// details, ordered by username.
func (r *EnrollmentRepository) ListRoster(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s
FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN classes c ON c.id = e.class_id
JOIN academic_years ay ON ay.id = e.academic_year_id
WHERE e.class_id = $1 AND e.status = $2
ORDER BY u.username ASC`, enrollmentDetailColumns)
	var roster []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &roster, query, classID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return roster, nil
}
