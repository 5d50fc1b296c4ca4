// File: internal/analytics/service.go
package analytics

import (
	"context"
	"fmt"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/report"
	"waste_portal_backend/internal/schedule"
	"waste_portal_backend/internal/user"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TrendDays is the length of the reports-per-day series.
const TrendDays = 30

// ReportCounter is the read side of the report store used for the dashboard.
type ReportCounter interface {
	CountByStatus(ctx context.Context) ([]report.StatusCount, error)
	CountByCategory(ctx context.Context) ([]report.CategoryCount, error)
	CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type ScheduleCounter interface {
	CountByStatus(ctx context.Context) ([]schedule.StatusCount, error)
}

type ProfileCounter interface {
	CountByRole(ctx context.Context) ([]user.RoleCount, error)
}

// DayCount is one bucket of the reports-per-day series, keyed by local date.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Summary is the staff dashboard payload.
type Summary struct {
	ReportsByStatus   []report.StatusCount   `json:"reports_by_status"`
	ReportsByCategory []report.CategoryCount `json:"reports_by_category"`
	ReportsPerDay     []DayCount             `json:"reports_per_day"`
	SchedulesByStatus []schedule.StatusCount `json:"schedules_by_status"`
	ProfilesByRole    []user.RoleCount       `json:"profiles_by_role"`
	GeneratedAt       time.Time              `json:"generated_at"`
}

type Service interface {
	Summary(ctx context.Context, actor common.Actor) (*Summary, error)
}

type ServiceImplementation struct {
	reports   ReportCounter
	schedules ScheduleCounter
	profiles  ProfileCounter
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

var _ Service = (*ServiceImplementation)(nil)

func NewService(reports ReportCounter, schedules ScheduleCounter, profiles ProfileCounter, cfg *config.Config, logger *zap.Logger) *ServiceImplementation {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &ServiceImplementation{
		reports:   reports,
		schedules: schedules,
		profiles:  profiles,
		loc:       loc,
		logger:    logger.Named("AnalyticsService"),
		now:       time.Now,
	}
}

// Summary runs the aggregate queries concurrently. Staff only.
func (s *ServiceImplementation) Summary(ctx context.Context, actor common.Actor) (*Summary, error) {
	if !actor.IsStaff() {
		return nil, common.ErrForbidden.WithDetails("Only officials can view analytics.")
	}

	now := s.now().In(s.loc)
	out := &Summary{GeneratedAt: now.UTC()}
	start := startOfTrend(now, s.loc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.ReportsByStatus, err = s.reports.CountByStatus(gctx)
		return wrap("reports by status", err)
	})
	g.Go(func() (err error) {
		out.ReportsByCategory, err = s.reports.CountByCategory(gctx)
		return wrap("reports by category", err)
	})
	g.Go(func() error {
		times, err := s.reports.CreatedSince(gctx, start)
		if err != nil {
			return wrap("reports per day", err)
		}
		out.ReportsPerDay = BucketByDay(times, start, TrendDays, s.loc)
		return nil
	})
	g.Go(func() (err error) {
		out.SchedulesByStatus, err = s.schedules.CountByStatus(gctx)
		return wrap("schedules by status", err)
	})
	g.Go(func() (err error) {
		out.ProfilesByRole, err = s.profiles.CountByRole(gctx)
		return wrap("profiles by role", err)
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to build analytics summary", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	return out, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("counting %s: %w", what, err)
	}
	return nil
}

// startOfTrend is local midnight TrendDays-1 days before now.
func startOfTrend(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d-(TrendDays-1), 0, 0, 0, 0, loc)
}

// BucketByDay counts times per local calendar day, emitting every day from start
// so the series has no gaps. Times outside the window are ignored.
func BucketByDay(times []time.Time, start time.Time, days int, loc *time.Location) []DayCount {
	series := make([]DayCount, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format(time.DateOnly)
		series[i] = DayCount{Date: key}
		index[key] = i
	}
	for _, t := range times {
		if i, ok := index[t.In(loc).Format(time.DateOnly)]; ok {
			series[i].Count++
		}
	}
	return series
}
