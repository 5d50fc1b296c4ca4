// File: internal/jobs/collection_reminder.go
package jobs

import (
	"context"
	"time"

	"waste_portal_backend/internal/config"

	"go.uber.org/zap"
)

// ReminderGenerator creates collection reminders for every area with an upcoming pickup.
type ReminderGenerator interface {
	GenerateAreaReminders(ctx context.Context, now time.Time) (int, error)
}

// CollectionReminderJob is the periodic fallback that creates reminders for users
// who have not opened the app since a pickup was scheduled.
type CollectionReminderJob struct {
	*scheduledJob
}

// NewCollectionReminderJob creates a new CollectionReminderJob.
func NewCollectionReminderJob(generator ReminderGenerator, cfg *config.Config, logger *zap.Logger) *CollectionReminderJob {
	log := logger.Named("CollectionReminderJob")
	run := func(ctx context.Context) error {
		created, err := generator.GenerateAreaReminders(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		if created > 0 {
			log.Info("Collection reminders created", zap.Int("count", created))
		}
		return nil
	}
	return &CollectionReminderJob{newScheduledJob("collection_reminders", cfg.ReminderJobSchedule, 2*time.Minute, log, run)}
}
