package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/platform/metrics"
	"waste_portal_backend/internal/registration"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingGenerator struct {
	calls atomic.Int32
	err   error
}

func (g *countingGenerator) GenerateAreaReminders(context.Context, time.Time) (int, error) {
	g.calls.Add(1)
	return 1, g.err
}

type stubReconciler struct {
	result registration.ReconcileResult
	err    error
}

func (s stubReconciler) Reconcile(context.Context) (registration.ReconcileResult, error) {
	return s.result, s.err
}

func runs(t *testing.T, job, outcome string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.JobRuns.WithLabelValues(job, outcome).Write(&m))
	return m.GetCounter().GetValue()
}

func TestCollectionReminderJob_RunOnceRecordsOutcome(t *testing.T) {
	gen := &countingGenerator{}
	job := NewCollectionReminderJob(gen, &config.Config{ReminderJobSchedule: "@every 5m"}, zap.NewNop())

	before := runs(t, "collection_reminders", "success")
	require.NoError(t, job.RunOnce(context.Background()))
	assert.EqualValues(t, 1, gen.calls.Load())
	assert.Equal(t, before+1, runs(t, "collection_reminders", "success"))

	gen.err = errors.New("db down")
	failuresBefore := runs(t, "collection_reminders", "failure")
	assert.Error(t, job.RunOnce(context.Background()))
	assert.Equal(t, failuresBefore+1, runs(t, "collection_reminders", "failure"))
}

func TestCollectionReminderJob_TicksOnSchedule(t *testing.T) {
	gen := &countingGenerator{}
	job := NewCollectionReminderJob(gen, &config.Config{ReminderJobSchedule: "@every 1s"}, zap.NewNop())
	require.NoError(t, job.SetupAndStart())
	defer job.Stop()

	assert.Eventually(t, func() bool { return gen.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduledJob_EmptySpecDisables(t *testing.T) {
	gen := &countingGenerator{}
	job := NewCollectionReminderJob(gen, &config.Config{}, zap.NewNop())
	require.NoError(t, job.SetupAndStart())
	job.Stop()
	assert.Zero(t, gen.calls.Load())
}

func TestScheduledJob_InvalidSpec(t *testing.T) {
	job := NewRegistrationReconcileJob(stubReconciler{}, &config.Config{RegistrationReconcileJobSchedule: "every tuesday"}, zap.NewNop())
	assert.Error(t, job.SetupAndStart())
}

func TestRegistrationReconcileJob_RunOnce(t *testing.T) {
	job := NewRegistrationReconcileJob(stubReconciler{result: registration.ReconcileResult{Expired: 2}}, &config.Config{}, zap.NewNop())
	require.NoError(t, job.RunOnce(context.Background()))

	failing := NewRegistrationReconcileJob(stubReconciler{err: errors.New("boom")}, &config.Config{}, zap.NewNop())
	assert.Error(t, failing.RunOnce(context.Background()))
}
