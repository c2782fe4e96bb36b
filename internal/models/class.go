package models

import "time"

// DefaultClassCapacity is applied when a class is created without an
// explicit capacity.
const DefaultClassCapacity = 30

// Class is a named group of students within one academic year. The name
// is unique per year; capacity bounds the number of active enrollments.
type Class struct {
	ID             string    `db:"id" json:"id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	Name           string    `db:"name" json:"name"`
	DepartmentID   *string   `db:"department_id" json:"department_id,omitempty"`
	Capacity       int       `db:"capacity" json:"capacity"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with year/department names and the current
// active enrollment count.
type ClassDetail struct {
	Class
	AcademicYearName string  `db:"academic_year_name" json:"academic_year_name"`
	DepartmentName   *string `db:"department_name" json:"department_name,omitempty"`
	EnrolledCount    int     `db:"enrolled_count" json:"enrolled_count"`
}

// ClassSubject links a subject to a class.
type ClassSubject struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassSubjectDetail extends ClassSubject with subject attributes.
type ClassSubjectDetail struct {
	ClassSubject
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	AcademicYearID string
	DepartmentID   string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
