package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
	"github.com/schoolcore/school-admin-api/pkg/mailer"
)

type approvalUserRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListPending(ctx context.Context) ([]models.User, error)
	ApplyApprovalBatch(ctx context.Context, updates []models.ApprovalUpdate) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ApprovalItem is one user entry in a registration batch.
type ApprovalItem struct {
	ID   string `json:"id" validate:"required"`
	Role string `json:"role"`
}

// ProcessRegistrationsRequest carries a batch approve/reject decision.
type ProcessRegistrationsRequest struct {
	Action string         `json:"action" validate:"required,oneof=approve reject"`
	Users  []ApprovalItem `json:"users" validate:"required,min=1,dive"`
	Reason string         `json:"reason"`
}

// ApprovalService transitions pending registrations in batches. State
// changes for a batch land in one transaction; notification emails go
// out after commit and never roll the batch back.
type ApprovalService struct {
	users     approvalUserRepository
	mail      mailer.Mailer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApprovalService constructs ApprovalService.
func NewApprovalService(users approvalUserRepository, mail mailer.Mailer, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{users: users, mail: mail, validator: validate, logger: logger}
}

// ListPending returns accounts awaiting review, oldest first.
func (s *ApprovalService) ListPending(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending registrations")
	}
	return users, nil
}

// Process applies a batch approve or reject decision. Unknown user IDs
// and users already in the target state are skipped, not fatal. Returns
// the outcome including the processed count.
func (s *ApprovalService) Process(ctx context.Context, actorID string, req ProcessRegistrationsRequest) (*models.ApprovalOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration batch payload")
	}

	action := models.ApprovalAction(req.Action)

	// Payload-level validation happens before any user is touched so a
	// malformed batch never mutates state.
	roles := make(map[string]models.UserRole, len(req.Users))
	if action == models.ApprovalActionApprove {
		for _, item := range req.Users {
			role, ok := models.ParseRole(item.Role)
			if !ok {
				return nil, appErrors.FieldError("role", fmt.Sprintf("missing or invalid role for user %s", item.ID))
			}
			roles[item.ID] = role
		}
	} else if req.Reason == "" {
		return nil, appErrors.FieldError("reason", "a rejection reason is required")
	}

	ids := make([]string, 0, len(req.Users))
	for _, item := range req.Users {
		ids = append(ids, item.ID)
	}
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve users")
	}
	byID := make(map[string]models.User, len(found))
	for _, user := range found {
		byID[user.ID] = user
	}

	outcome := &models.ApprovalOutcome{}
	var updates []models.ApprovalUpdate
	now := time.Now().UTC()

	for _, item := range req.Users {
		user, ok := byID[item.ID]
		if !ok {
			s.logger.Warn("skipping unknown user in registration batch", zap.String("user_id", item.ID))
			outcome.Skipped = append(outcome.Skipped, item.ID)
			continue
		}

		var update models.ApprovalUpdate
		switch action {
		case models.ApprovalActionApprove:
			if user.Status == models.ApprovalApproved {
				outcome.Skipped = append(outcome.Skipped, user.ID)
				continue
			}
			update = models.ApprovalUpdate{
				UserID:    user.ID,
				Role:      roles[user.ID],
				Status:    models.ApprovalApproved,
				Member:    true,
				Active:    true,
				UpdatedAt: now,
			}
		case models.ApprovalActionReject:
			if user.Status == models.ApprovalRejected {
				outcome.Skipped = append(outcome.Skipped, user.ID)
				continue
			}
			reason := req.Reason
			update = models.ApprovalUpdate{
				UserID:          user.ID,
				Role:            models.RoleNone,
				Status:          models.ApprovalRejected,
				Member:          false,
				Active:          false,
				RejectionReason: &reason,
				UpdatedAt:       now,
			}
		}

		updates = append(updates, update)
		if user.Email != "" {
			outcome.Notified = append(outcome.Notified, models.NotificationTarget{
				UserID:   user.ID,
				Username: user.Username,
				Email:    user.Email,
				Role:     update.Role,
			})
		}
	}

	if len(updates) == 0 {
		return outcome, nil
	}

	if err := s.users.ApplyApprovalBatch(ctx, updates); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply registration batch")
	}
	outcome.Processed = len(updates)

	s.audit(ctx, actorID, action, updates)
	s.notify(ctx, action, req.Reason, outcome)

	return outcome, nil
}

func (s *ApprovalService) audit(ctx context.Context, actorID string, action models.ApprovalAction, updates []models.ApprovalUpdate) {
	auditAction := models.AuditActionApprove
	if action == models.ApprovalActionReject {
		auditAction = models.AuditActionReject
	}
	for _, update := range updates {
		resourceID := update.UserID
		log := &models.AuditLog{
			Action:     auditAction,
			Resource:   "registration",
			ResourceID: &resourceID,
		}
		if actorID != "" {
			actor := actorID
			log.UserID = &actor
		}
		if err := s.users.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to write approval audit log", zap.String("user_id", update.UserID), zap.Error(err))
		}
	}
}

// notify emails every affected user after the batch has committed. A
// delivery failure flips the outcome to partial success only.
func (s *ApprovalService) notify(ctx context.Context, action models.ApprovalAction, reason string, outcome *models.ApprovalOutcome) {
	if s.mail == nil || len(outcome.Notified) == 0 {
		return
	}
	messages := make([]mailer.Message, 0, len(outcome.Notified))
	for _, target := range outcome.Notified {
		var subject, body string
		if action == models.ApprovalActionApprove {
			subject = "Registration approved"
			body = fmt.Sprintf("Hello %s,\n\nYour registration has been approved. You can now sign in to your account.\n", target.Username)
		} else {
			subject = "Registration rejected"
			body = fmt.Sprintf("Hello %s,\n\nYour registration has been rejected.\n\nReason: %s\n", target.Username, reason)
		}
		messages = append(messages, mailer.Message{
			ToName:    target.Username,
			ToAddress: target.Email,
			Subject:   subject,
			Body:      body,
		})
	}
	if err := s.mail.Send(ctx, messages...); err != nil {
		s.logger.Error("failed to send registration notifications", zap.Error(err))
		outcome.MailFailed = true
	}
}
