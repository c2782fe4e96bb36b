package models

import "time"

// Subject represents a course taught in the school. Some subjects are
// cross-departmental, so the department reference is optional.
type Subject struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Description  *string   `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectDetail extends Subject with the department code when streamed.
type SubjectDetail struct {
	Subject
	DepartmentCode *string `db:"department_code" json:"department_code,omitempty"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
