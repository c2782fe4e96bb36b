package models

import "time"

// AcademicYear is the yearly operating period that owns terms and classes.
// At most one year is current at a time; switching is done atomically by
// the repository.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AcademicYearFilter defines filters supported by list endpoints.
type AcademicYearFilter struct {
	IsCurrent *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
