package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// TaskMetricsMeterName is the name used for the task metrics meter
	TaskMetricsMeterName = "github.com/crpaas/repo-custodian/tasks"

	// ControllerMetricsMeterName is the name used for the controller metrics meter
	ControllerMetricsMeterName = "github.com/crpaas/repo-custodian/controller"
)

// TaskMetrics holds the OpenTelemetry instruments for backend task metrics
type TaskMetrics struct {
	dispatchesTotal metric.Int64Counter
	taskDuration    metric.Float64Histogram
}

// NewTaskMetrics creates a new TaskMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewTaskMetrics(provider metric.MeterProvider) (*TaskMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(TaskMetricsMeterName)

	dispatchesTotal, err := meter.Int64Counter(
		"crpaas_mgr_task_dispatches_total",
		metric.WithDescription("Total number of clone and cleanup tasks dispatched"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	taskDuration, err := meter.Float64Histogram(
		"crpaas_mgr_task_duration_seconds",
		metric.WithDescription("Duration of synchronously executed tasks in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	return &TaskMetrics{
		dispatchesTotal: dispatchesTotal,
		taskDuration:    taskDuration,
	}, nil
}

// RecordDispatch records one dispatched task of the given kind (clone or cleanup)
func (m *TaskMetrics) RecordDispatch(ctx context.Context, kind string) {
	if m == nil || m.dispatchesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
	}

	m.dispatchesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTaskDuration records how long a synchronously executed task took
func (m *TaskMetrics) RecordTaskDuration(ctx context.Context, kind string, duration time.Duration, success bool) {
	if m == nil || m.taskDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	}

	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// ControllerMetrics holds the OpenTelemetry instruments for reconciliation metrics
type ControllerMetrics struct {
	watcherTransitions metric.Int64Counter
	expiredTotal       metric.Int64Counter
	autoSyncTriggers   metric.Int64Counter
}

// NewControllerMetrics creates a new ControllerMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewControllerMetrics(provider metric.MeterProvider) (*ControllerMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ControllerMetricsMeterName)

	watcherTransitions, err := meter.Int64Counter(
		"crpaas_mgr_watcher_transitions_total",
		metric.WithDescription("Status transitions applied by the reconciliation watcher"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	expiredTotal, err := meter.Int64Counter(
		"crpaas_mgr_expired_repositories_total",
		metric.WithDescription("Repositories retired by the expiration sweeper"),
		metric.WithUnit("{repository}"),
	)
	if err != nil {
		return nil, err
	}

	autoSyncTriggers, err := meter.Int64Counter(
		"crpaas_mgr_autosync_triggers_total",
		metric.WithDescription("Synchronizations triggered by the auto-sync scheduler"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		return nil, err
	}

	return &ControllerMetrics{
		watcherTransitions: watcherTransitions,
		expiredTotal:       expiredTotal,
		autoSyncTriggers:   autoSyncTriggers,
	}, nil
}

// RecordWatcherTransition records one watcher-applied status transition
func (m *ControllerMetrics) RecordWatcherTransition(ctx context.Context, toStatus string) {
	if m == nil || m.watcherTransitions == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("to_status", toStatus),
	}

	m.watcherTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordExpired records repositories picked up by one sweeper tick
func (m *ControllerMetrics) RecordExpired(ctx context.Context, count int64) {
	if m == nil || m.expiredTotal == nil {
		return
	}

	m.expiredTotal.Add(ctx, count)
}

// RecordAutoSyncTrigger records one scheduler-triggered synchronization
func (m *ControllerMetrics) RecordAutoSyncTrigger(ctx context.Context) {
	if m == nil || m.autoSyncTriggers == nil {
		return
	}

	m.autoSyncTriggers.Add(ctx, 1)
}
