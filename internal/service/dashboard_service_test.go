package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/school-admin-api/internal/models"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
)

type mockStatsRepo struct {
	byRole      map[models.UserRole]int
	pending     map[models.UserRole]int
	byRoleCalls int
}

func (m *mockStatsRepo) CountByRole(_ context.Context, role models.UserRole) (int, error) {
	m.byRoleCalls++
	return m.byRole[role], nil
}

func (m *mockStatsRepo) CountPending(_ context.Context, role models.UserRole) (int, error) {
	return m.pending[role], nil
}

type mockStatsCache struct {
	entries map[string][]byte
	sets    []string
}

func (m *mockStatsCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockStatsCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	m.entries[key] = raw
	m.sets = append(m.sets, key)
	return nil
}

func newStatsRepo() *mockStatsRepo {
	return &mockStatsRepo{
		byRole: map[models.UserRole]int{
			models.RoleStudent: 120,
			models.RoleTeacher: 14,
		},
		pending: map[models.UserRole]int{
			"":                 9,
			models.RoleStudent: 7,
			models.RoleTeacher: 2,
		},
	}
}

func TestDashboardServiceSchoolStatsComputesAndCaches(t *testing.T) {
	repo := newStatsRepo()
	cache := &mockStatsCache{}
	svc := NewDashboardService(repo, cache, nil, time.Minute, zap.NewNop())

	stats, err := svc.SchoolStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, stats.TotalStudents)
	assert.Equal(t, 14, stats.TotalTeachers)
	assert.Equal(t, []string{"stats:school"}, cache.sets)
}

func TestDashboardServiceSchoolStatsServedFromCache(t *testing.T) {
	repo := newStatsRepo()
	cache := &mockStatsCache{}
	svc := NewDashboardService(repo, cache, nil, time.Minute, zap.NewNop())

	_, err := svc.SchoolStats(context.Background())
	require.NoError(t, err)
	repo.byRoleCalls = 0

	stats, err := svc.SchoolStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, stats.TotalStudents)
	assert.Zero(t, repo.byRoleCalls)
}

func TestDashboardServiceAdminStats(t *testing.T) {
	repo := newStatsRepo()
	cache := &mockStatsCache{}
	svc := NewDashboardService(repo, cache, nil, time.Minute, zap.NewNop())

	stats, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, stats.TotalStudents)
	assert.Equal(t, 9, stats.PendingTotal)
	assert.Equal(t, 7, stats.PendingStudents)
	assert.Equal(t, 2, stats.PendingTeachers)
	assert.Equal(t, []string{"stats:admin"}, cache.sets)
}

func TestDashboardServiceWorksWithoutCache(t *testing.T) {
	repo := newStatsRepo()
	svc := NewDashboardService(repo, nil, nil, time.Minute, zap.NewNop())

	stats, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 14, stats.TotalTeachers)
	assert.Equal(t, 9, stats.PendingTotal)
}
