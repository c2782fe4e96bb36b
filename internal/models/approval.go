package models

import "time"

// ApprovalAction distinguishes the two batch transitions.
type ApprovalAction string

const (
	ApprovalActionApprove ApprovalAction = "approve"
	ApprovalActionReject  ApprovalAction = "reject"
)

// ApprovalUpdate is one precomputed user-state mutation inside a batch.
// All updates of a batch are applied in a single transaction.
type ApprovalUpdate struct {
	UserID          string         `db:"user_id"`
	Role            UserRole       `db:"role"`
	Status          ApprovalStatus `db:"status"`
	Member          bool           `db:"member"`
	Active          bool           `db:"active"`
	RejectionReason *string        `db:"rejection_reason"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// ApprovalOutcome summarises one processed batch.
type ApprovalOutcome struct {
	Processed int
	Skipped   []string
	// Notified users whose state changed and who have an email address.
	Notified []NotificationTarget
	// MailFailed marks that at least one notification could not be sent
	// after the state changes were committed.
	MailFailed bool
}

// NotificationTarget identifies a user to email after commit.
type NotificationTarget struct {
	UserID   string
	Username string
	Email    string
	Role     UserRole
}
