package models

import "time"

// UserRole is the single business role carried by an account. Accounts
// start with no role; one is assigned on approval.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleTeacher UserRole = "TEACHER"
	RoleParent  UserRole = "PARENT"
	RoleAdmin   UserRole = "ADMIN"
	RoleNone    UserRole = "NONE"
)

// ParseRole maps the wire representation to a UserRole.
func ParseRole(raw string) (UserRole, bool) {
	switch raw {
	case "student":
		return RoleStudent, true
	case "teacher":
		return RoleTeacher, true
	case "parent":
		return RoleParent, true
	case "admin":
		return RoleAdmin, true
	}
	return RoleNone, false
}

// ApprovalStatus tracks the registration review state of an account.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// User represents an application account stored in the users table.
type User struct {
	ID              string         `db:"id" json:"id"`
	Username        string         `db:"username" json:"username"`
	Email           string         `db:"email" json:"email"`
	PhoneNumber     string         `db:"phone_number" json:"phone_number"`
	NationalID      string         `db:"national_id" json:"national_id"`
	PasswordHash    string         `db:"password_hash" json:"-"`
	Role            UserRole       `db:"role" json:"role"`
	Status          ApprovalStatus `db:"status" json:"status"`
	Member          bool           `db:"member" json:"member"`
	Active          bool           `db:"active" json:"active"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	NationalIDImage *string        `db:"national_id_image" json:"national_id_image,omitempty"`
	ProfileImage    *string        `db:"profile_image" json:"profile_image,omitempty"`
	LastLogin       *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// IsStudent reports whether the account carries the student role.
func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Status    *ApprovalStatus
	Member    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
