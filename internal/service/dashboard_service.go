package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
)

type statsUserRepository interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	CountPending(ctx context.Context, role models.UserRole) (int, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const (
	schoolStatsKey = "stats:school"
	adminStatsKey  = "stats:admin"
)

// DashboardService serves the landing and admin counters. Counts are
// cached for a short TTL; the numbers tolerate slight staleness.
type DashboardService struct {
	users    statsUserRepository
	cache    statsCache
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(users statsUserRepository, cache statsCache, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{users: users, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// SchoolStats returns the public member counters.
func (s *DashboardService) SchoolStats(ctx context.Context) (*models.SchoolStats, error) {
	var cached models.SchoolStats
	if s.cache != nil {
		if err := s.cache.Get(ctx, schoolStatsKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("failed to read school stats cache", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	stats, err := s.loadSchoolStats(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, schoolStatsKey, stats)
	return stats, nil
}

// AdminStats returns member counters plus pending registration counts.
func (s *DashboardService) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	var cached models.AdminStats
	if s.cache != nil {
		if err := s.cache.Get(ctx, adminStatsKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("failed to read admin stats cache", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	school, err := s.loadSchoolStats(ctx)
	if err != nil {
		return nil, err
	}
	pendingTotal, err := s.users.CountPending(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending registrations")
	}
	pendingStudents, err := s.users.CountPending(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending students")
	}
	pendingTeachers, err := s.users.CountPending(ctx, models.RoleTeacher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending teachers")
	}

	stats := &models.AdminStats{
		SchoolStats:     *school,
		PendingTotal:    pendingTotal,
		PendingStudents: pendingStudents,
		PendingTeachers: pendingTeachers,
	}
	s.store(ctx, adminStatsKey, stats)
	return stats, nil
}

func (s *DashboardService) loadSchoolStats(ctx context.Context) (*models.SchoolStats, error) {
	students, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	teachers, err := s.users.CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	return &models.SchoolStats{TotalStudents: students, TotalTeachers: teachers}, nil
}

func (s *DashboardService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("failed to write stats cache", zap.String("key", key), zap.Error(err))
	}
}
