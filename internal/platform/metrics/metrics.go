// File: internal/platform/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReportsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "waste_reports_created_total", Help: "Total reports filed"},
	)
	ReportStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waste_report_status_changes_total", Help: "Report status changes by target status"},
		[]string{"status"},
	)
	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waste_notifications_created_total", Help: "Notifications created by type"},
		[]string{"type"},
	)
	RemindersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "waste_collection_reminders_created_total", Help: "Collection reminders created"},
	)
	SignupsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waste_signups_started_total", Help: "Pending registrations opened by channel"},
		[]string{"channel"},
	)
	SignupsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waste_signups_completed_total", Help: "Registrations finalized into profiles by channel"},
		[]string{"channel"},
	)
	LoginFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waste_login_failures_total", Help: "Failed sign-in attempts by reason"},
		[]string{"reason"},
	)
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waste_job_runs_total", Help: "Cron job runs by job and outcome"},
		[]string{"job", "outcome"},
	)
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ReportsCreated,
			ReportStatusChanges,
			NotificationsCreated,
			RemindersCreated,
			SignupsStarted,
			SignupsCompleted,
			LoginFailures,
			JobRuns,
		)
	})
}
