// File: internal/jobs/registration_reconcile.go
package jobs

import (
	"context"
	"time"

	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/registration"

	"go.uber.org/zap"
)

// Reconciler repairs pending registrations.
type Reconciler interface {
	Reconcile(ctx context.Context) (registration.ReconcileResult, error)
}

// RegistrationReconcileJob finalizes, fails or expires registrations left mid-saga.
type RegistrationReconcileJob struct {
	*scheduledJob
}

func NewRegistrationReconcileJob(reconciler Reconciler, cfg *config.Config, logger *zap.Logger) *RegistrationReconcileJob {
	log := logger.Named("RegistrationReconcileJob")
	run := func(ctx context.Context) error {
		res, err := reconciler.Reconcile(ctx)
		if err != nil {
			return err
		}
		if res != (registration.ReconcileResult{}) {
			log.Info("Pending registrations reconciled",
				zap.Int("finalized", res.Finalized),
				zap.Int("failed", res.Failed),
				zap.Int("expired", res.Expired),
				zap.Int("reset", res.Reset))
		}
		return nil
	}
	return &RegistrationReconcileJob{newScheduledJob("registration_reconcile", cfg.RegistrationReconcileJobSchedule, 5*time.Minute, log, run)}
}
