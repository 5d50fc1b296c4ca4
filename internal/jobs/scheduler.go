// File: internal/jobs/scheduler.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"waste_portal_backend/internal/platform/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// scheduledJob owns one cron scheduler running a single bounded task.
type scheduledJob struct {
	name    string
	spec    string
	timeout time.Duration
	run     func(ctx context.Context) error
	logger  *zap.Logger
	cron    *cron.Cron
}

func newScheduledJob(name, spec string, timeout time.Duration, logger *zap.Logger, run func(ctx context.Context) error) *scheduledJob {
	cronLog := NewCronLogger(logger.Named("cron"))
	return &scheduledJob{
		name:    name,
		spec:    spec,
		timeout: timeout,
		run:     run,
		logger:  logger,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

// SetupAndStart schedules the job and starts the scheduler. An empty spec disables the job.
func (j *scheduledJob) SetupAndStart() error {
	if j.spec == "" {
		j.logger.Warn("Job schedule not defined. Job will not run.", zap.String("job", j.name))
		return nil
	}
	jobID, err := j.cron.AddFunc(j.spec, j.tick)
	if err != nil {
		j.logger.Error("Failed to schedule job", zap.String("job", j.name), zap.String("spec", j.spec), zap.Error(err))
		return fmt.Errorf("scheduling %s: %w", j.name, err)
	}
	j.logger.Info("Job scheduled", zap.String("job", j.name), zap.String("spec", j.spec), zap.Any("jobID", jobID))
	j.cron.Start()
	return nil
}

// tick runs once with a bounded context and records the outcome.
func (j *scheduledJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("Job run failed", zap.String("job", j.name), zap.Error(err))
	}
}

// RunOnce executes the job body directly. Used by tick and by tests.
func (j *scheduledJob) RunOnce(ctx context.Context) error {
	start := time.Now()
	err := j.run(ctx)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.JobRuns.WithLabelValues(j.name, outcome).Inc()
	j.logger.Debug("Job run finished", zap.String("job", j.name), zap.String("outcome", outcome), zap.Duration("took", time.Since(start)))
	return err
}

// Stop waits up to 10 seconds for a running tick to finish.
func (j *scheduledJob) Stop() {
	stopCtx := j.cron.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Job scheduler stopped", zap.String("job", j.name))
	case <-time.After(10 * time.Second):
		j.logger.Warn("Job scheduler stop timed out", zap.String("job", j.name))
	}
}

// cronLogger adapts zap.Logger to the cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine cron messages at debug; cron emits one per tick.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Debug(msg, cl.fields(keysAndValues...)...)
}

func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(cl.fields(keysAndValues...), zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func (cl *cronLogger) fields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, "MISSING_VALUE"))
		}
	}
	return fields
}
