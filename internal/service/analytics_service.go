package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/repository"
	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

const (
	recentWindow     = 7 * 24 * time.Hour
	defaultTrendDays = 30
	maxTrendDays     = 365
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	Totals(ctx context.Context, since time.Time) (repository.ComplaintTotals, error)
	CountBy(ctx context.Context, column string) ([]models.CountByKey, error)
	DepartmentWorkloads(ctx context.Context) ([]models.DepartmentWorkload, error)
	Trend(ctx context.Context, days int) ([]models.TrendPoint, error)
}

// AnalyticsService provides read-optimised access to analytics datasets with cache integration.
type AnalyticsService struct {
	repo   AnalyticsRepository
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Dashboard returns the admin overview. The boolean indicates whether data originated from cache.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*models.DashboardStats, bool, error) {
	cacheKey := makeAnalyticsCacheKey("dashboard")
	var cached models.DashboardStats
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get dashboard cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	now := s.now().UTC()
	stats := &models.DashboardStats{GeneratedAt: now}
	var totals repository.ComplaintTotals

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.repo.Totals(gctx, now.Add(-recentWindow))
		return err
	})
	g.Go(func() (err error) {
		stats.ByCategory, err = s.repo.CountBy(gctx, "category")
		return err
	})
	g.Go(func() (err error) {
		stats.ByPriority, err = s.repo.CountBy(gctx, "priority")
		return err
	})
	g.Go(func() (err error) {
		stats.ByStatus, err = s.repo.CountBy(gctx, "status")
		return err
	})
	g.Go(func() (err error) {
		stats.Departments, err = s.repo.DepartmentWorkloads(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch analytics")
	}
	stats.Total, stats.Recent, stats.Unresolved = totals.Total, totals.Recent, totals.Unresolved
	stats.ByCategory = countsOrEmpty(stats.ByCategory)
	stats.ByPriority = countsOrEmpty(stats.ByPriority)
	stats.ByStatus = countsOrEmpty(stats.ByStatus)
	if stats.Departments == nil {
		stats.Departments = []models.DepartmentWorkload{}
	}

	s.store(ctx, cacheKey, stats)
	return stats, false, nil
}

// Trend returns daily created and resolved counts over the last days days.
func (s *AnalyticsService) Trend(ctx context.Context, days int) (*models.Trend, bool, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("days must be at most %d", maxTrendDays))
	}

	cacheKey := makeAnalyticsCacheKey("trend", strconv.Itoa(days))
	var cached models.Trend
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get trend cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	points, err := s.repo.Trend(ctx, days)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch trend")
	}
	if points == nil {
		points = []models.TrendPoint{}
	}
	trend := &models.Trend{Days: days, Points: points, GeneratedAt: s.now().UTC()}
	s.store(ctx, cacheKey, trend)
	return trend, false, nil
}

// Departments returns the workload of every department.
func (s *AnalyticsService) Departments(ctx context.Context) ([]models.DepartmentWorkload, error) {
	workloads, err := s.repo.DepartmentWorkloads(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department workloads")
	}
	if workloads == nil {
		workloads = []models.DepartmentWorkload{}
	}
	return workloads, nil
}

func (s *AnalyticsService) store(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		s.logger.Warn("cache analytics", zap.String("key", key), zap.Error(err))
	}
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func countsOrEmpty(counts []models.CountByKey) []models.CountByKey {
	if counts == nil {
		return []models.CountByKey{}
	}
	return counts
}
