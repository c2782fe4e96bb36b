package models

// SchoolStats carries the public landing-page counters.
type SchoolStats struct {
	TotalStudents int `json:"total_students"`
	TotalTeachers int `json:"total_teachers"`
}

// AdminStats extends SchoolStats with registration review counters.
type AdminStats struct {
	SchoolStats
	PendingTotal    int `json:"pending_total"`
	PendingStudents int `json:"pending_students"`
	PendingTeachers int `json:"pending_teachers"`
}
