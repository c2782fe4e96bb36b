package models

import "time"

// Term models a subdivision of an academic year (e.g. Fall Term). The
// name is unique within its year and the date range nests inside the
// parent year's range.
type Term struct {
	ID             string    `db:"id" json:"id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	Name           string    `db:"name" json:"name"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TermDetail enriches Term with the parent year name.
type TermDetail struct {
	Term
	AcademicYearName string `db:"academic_year_name" json:"academic_year_name"`
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	AcademicYearID string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
