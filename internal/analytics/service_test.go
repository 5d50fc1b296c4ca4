package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/report"
	"waste_portal_backend/internal/schedule"
	"waste_portal_backend/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReports struct {
	created []time.Time
	since   time.Time
	err     error
}

func (f *fakeReports) CountByStatus(context.Context) ([]report.StatusCount, error) {
	return []report.StatusCount{{Status: report.StatusPending, Count: 3}}, f.err
}

func (f *fakeReports) CountByCategory(context.Context) ([]report.CategoryCount, error) {
	return []report.CategoryCount{{Category: "overflow", Count: 2}}, nil
}

func (f *fakeReports) CreatedSince(_ context.Context, since time.Time) ([]time.Time, error) {
	f.since = since
	return f.created, nil
}

type fakeSchedules struct{}

func (fakeSchedules) CountByStatus(context.Context) ([]schedule.StatusCount, error) {
	return []schedule.StatusCount{{Status: schedule.StatusScheduled, Count: 1}}, nil
}

type fakeProfiles struct{}

func (fakeProfiles) CountByRole(context.Context) ([]user.RoleCount, error) {
	return []user.RoleCount{{Role: common.RoleResident, Count: 5}}, nil
}

var wat = time.FixedZone("WAT", 3600)

func newTestService(reports *fakeReports) *ServiceImplementation {
	svc := NewService(reports, fakeSchedules{}, fakeProfiles{}, &config.Config{Location: wat}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 5, 30, 23, 30, 0, 0, time.UTC) }
	return svc
}

func staff() common.Actor {
	return common.Actor{ID: uuid.New(), Role: common.RoleOfficial}
}

func TestBucketByDay_FillsGapsInLocalTime(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, wat)
	times := []time.Time{
		time.Date(2026, 4, 30, 23, 30, 0, 0, time.UTC), // 00:30 on May 1 local
		time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 3, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}

	series := BucketByDay(times, start, 3, wat)
	assert.Equal(t, []DayCount{
		{Date: "2026-05-01", Count: 2},
		{Date: "2026-05-02", Count: 0},
		{Date: "2026-05-03", Count: 1},
	}, series)
}

func TestSummary_Staff(t *testing.T) {
	reports := &fakeReports{created: []time.Time{time.Date(2026, 5, 30, 23, 10, 0, 0, time.UTC)}}
	svc := newTestService(reports)

	sum, err := svc.Summary(context.Background(), staff())
	require.NoError(t, err)

	require.Len(t, sum.ReportsPerDay, TrendDays)
	// 23:30 UTC is already May 31 in WAT.
	last := sum.ReportsPerDay[TrendDays-1]
	assert.Equal(t, "2026-05-31", last.Date)
	assert.EqualValues(t, 1, last.Count)
	assert.Equal(t, "2026-05-02", sum.ReportsPerDay[0].Date)
	assert.True(t, reports.since.Equal(time.Date(2026, 5, 2, 0, 0, 0, 0, wat)))

	assert.EqualValues(t, 3, sum.ReportsByStatus[0].Count)
	assert.Equal(t, "overflow", sum.ReportsByCategory[0].Category)
	assert.EqualValues(t, 1, sum.SchedulesByStatus[0].Count)
	assert.EqualValues(t, 5, sum.ProfilesByRole[0].Count)
}

func TestSummary_ResidentForbidden(t *testing.T) {
	svc := newTestService(&fakeReports{})
	_, err := svc.Summary(context.Background(), common.Actor{ID: uuid.New(), Role: common.RoleResident})
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestSummary_QueryFailure(t *testing.T) {
	svc := newTestService(&fakeReports{err: errors.New("db down")})
	_, err := svc.Summary(context.Background(), staff())
	assert.ErrorIs(t, err, common.ErrInternalServer)
}

func TestHandler_Summary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	actor := staff()
	setActor := func(c *gin.Context) {
		c.Set(common.ActorKey, actor)
		c.Next()
	}
	NewHandler(newTestService(&fakeReports{}), zap.NewNop()).
		RegisterRoutes(router.Group("/api/v1"), setActor, func(c *gin.Context) { c.Next() })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/summary", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reports_per_day"`)
}
