package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindConflicts(ctx context.Context, username, email, phone, nationalID, excludeID string) (map[string]bool, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpdateProfileRequest carries self-service profile changes.
type UpdateProfileRequest struct {
	Email       string `form:"email" json:"email" validate:"required,email"`
	PhoneNumber string `form:"phone_number" json:"phone_number" validate:"required,min=7,max=20"`
}

// UserService handles account profiles and the admin user directory.
type UserService struct {
	repo      userRepository
	files     fileStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(repo userRepository, files fileStore, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, files: files, validator: validate, logger: logger}
}

// Get loads one account.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// List returns users with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateProfile changes the caller's contact details and, optionally,
// the profile image.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest, image *FileUpload) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	conflicts, err := s.repo.FindConflicts(ctx, user.Username, req.Email, req.PhoneNumber, user.NationalID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate profile")
	}
	for _, field := range []string{"email", "phone_number"} {
		if conflicts[field] {
			return nil, appErrors.FieldError(field, fmt.Sprintf("%s is already taken", field))
		}
	}

	user.Email = req.Email
	user.PhoneNumber = req.PhoneNumber

	if image != nil && s.files != nil {
		filename := fmt.Sprintf("profile-%s%s", user.ID, filepath.Ext(image.Filename))
		stored, err := s.files.SaveStream(filename, image.Reader)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store profile image")
		}
		user.ProfileImage = &stored
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionProfileUpdate,
		Resource:   "profile",
		ResourceID: &user.ID,
	}); err != nil {
		s.logger.Warn("failed to record profile audit log", zap.Error(err))
	}

	return user, nil
}
