// Package controller runs the background half of the repository
// lifecycle: a bounded dispatcher that executes clone and cleanup tasks,
// a watcher that reconciles asynchronous backend work, a daily auto-sync
// scheduler and an expiration sweeper.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crpaas/repo-custodian/internal/backend"
	"github.com/crpaas/repo-custodian/internal/model"
	"github.com/crpaas/repo-custodian/internal/reindex"
	"github.com/crpaas/repo-custodian/internal/service"
	"github.com/crpaas/repo-custodian/internal/store"
	"github.com/crpaas/repo-custodian/internal/telemetry"
)

// Task kinds for logs and metrics.
const (
	taskKindClone   = "clone"
	taskKindCleanup = "cleanup"
)

// defaultMaxConcurrentTasks bounds parallel backend calls when no limit
// is configured.
const defaultMaxConcurrentTasks = 4

// cloneStates are the statuses a record can be observed in while clone
// work is outstanding. Terminal clone writes are guarded on them so a
// concurrent delete is never overwritten.
var cloneStates = []model.Status{
	model.StatusPending,
	model.StatusPodCreating,
	model.StatusCloning,
}

// Dispatcher executes clone and cleanup tasks on a bounded worker pool.
// Backend failures are recorded on the repository record and never
// surface to the caller; commands stay decoupled from execution.
type Dispatcher struct {
	store    store.Store
	backend  backend.Backend
	notifier reindex.Notifier
	metrics  *telemetry.TaskMetrics

	// async is true when the backend reports on submitted work later
	// instead of finishing it inline.
	async bool

	// group bounds parallel backend calls; wg counts every task from
	// dispatch to completion, including ones still waiting for a slot.
	group  *errgroup.Group
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

var _ service.Dispatcher = (*Dispatcher)(nil)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTaskMetrics records dispatch counts and task durations.
func WithTaskMetrics(metrics *telemetry.TaskMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// WithMaxConcurrentTasks bounds how many backend calls run in parallel.
func WithMaxConcurrentTasks(limit int) DispatcherOption {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.group.SetLimit(limit)
		}
	}
}

// NewDispatcher builds the task dispatcher. The notifier must not be
// nil; pass reindex.NopNotifier when no reindex endpoint is configured.
func NewDispatcher(st store.Store, be backend.Backend, notifier reindex.Notifier, opts ...DispatcherOption) (*Dispatcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if be == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}

	_, async := be.(backend.StatusQuerier)

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:    st,
		backend:  be,
		notifier: notifier,
		async:    async,
		group:    &errgroup.Group{},
		ctx:      ctx,
		cancel:   cancel,
	}
	d.group.SetLimit(defaultMaxConcurrentTasks)

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// DispatchClone queues a clone or update task for the repository. The
// call returns immediately; the pool limit applies to execution, not to
// queueing.
func (d *Dispatcher) DispatchClone(ctx context.Context, repo *model.Repository) {
	if d.ctx.Err() != nil {
		slog.WarnContext(ctx, "Dispatcher stopped; dropping clone task", "repository_id", repo.ID)
		return
	}
	d.metrics.RecordDispatch(ctx, taskKindClone)

	task := *repo
	d.wg.Add(1)
	// Go blocks while the pool is full; the extra goroutine keeps
	// dispatch itself non-blocking.
	go d.group.Go(func() error {
		defer d.wg.Done()
		d.runClone(&task)
		return nil
	})

	slog.DebugContext(ctx, "Queued clone task",
		"repository_id", repo.ID,
		"repo_url", repo.RepoURL)
}

// DispatchCleanup queues removal of the repository's working tree. The
// record is expected to already be DELETING.
func (d *Dispatcher) DispatchCleanup(ctx context.Context, repo *model.Repository) {
	if d.ctx.Err() != nil {
		slog.WarnContext(ctx, "Dispatcher stopped; dropping cleanup task", "repository_id", repo.ID)
		return
	}
	d.metrics.RecordDispatch(ctx, taskKindCleanup)

	task := *repo
	d.wg.Add(1)
	go d.group.Go(func() error {
		defer d.wg.Done()
		d.runCleanup(&task)
		return nil
	})

	slog.DebugContext(ctx, "Queued cleanup task",
		"repository_id", repo.ID,
		"pvc_path", repo.PVCPath)
}

// Drain waits for queued and in-flight tasks to finish. When the
// context expires first, outstanding work is cancelled and awaited
// before returning.
func (d *Dispatcher) Drain(ctx context.Context) error {
	defer d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	d.cancel()
	<-done
	return fmt.Errorf("dispatcher drained after forced cancellation: %w", ctx.Err())
}

func (d *Dispatcher) runClone(repo *model.Repository) {
	ctx := d.ctx
	start := time.Now()

	if !d.async {
		// The work runs inline, so the record shows CLONING while it
		// does. Asynchronous submission keeps PENDING; the watcher
		// advances the status once the backend reports progress.
		if _, err := d.store.UpdateStatus(ctx, repo.ID, []model.Status{model.StatusPending}, model.StatusCloning); err != nil {
			slog.ErrorContext(ctx, "Failed to mark repository cloning",
				"repository_id", repo.ID,
				"error", err)
		}
	}

	result, err := d.backend.CloneOrUpdate(ctx, backend.Task{
		RepoURL:      repo.RepoURL,
		CommitID:     repo.CommitID,
		TargetPath:   repo.PVCPath,
		SingleBranch: repo.CloneSingleBranch,
		Recursive:    repo.CloneRecursive,
	})
	if err != nil {
		d.metrics.RecordTaskDuration(ctx, taskKindClone, time.Since(start), false)
		slog.ErrorContext(ctx, "Clone task failed",
			"repository_id", repo.ID,
			"repo_url", repo.RepoURL,
			"error", err)
		d.finish(ctx, repo.ID, cloneStates, model.StatusFailed, err.Error())
		return
	}

	if !result.Done {
		// Stamp the work identifier so the watcher can correlate the
		// record with the submitted job.
		if _, err := d.store.SetJobName(ctx, repo.ID, result.CorrelationKey, cloneStates); err != nil {
			slog.ErrorContext(ctx, "Failed to stamp job name",
				"repository_id", repo.ID,
				"job", result.CorrelationKey,
				"error", err)
		}
		return
	}

	d.metrics.RecordTaskDuration(ctx, taskKindClone, time.Since(start), true)
	if d.finish(ctx, repo.ID, cloneStates, model.StatusCompleted, result.Output) {
		slog.InfoContext(ctx, "Clone task completed",
			"repository_id", repo.ID,
			"repo_url", repo.RepoURL,
			"duration", time.Since(start).Round(time.Millisecond))
		d.notifyReindex(ctx, "clone "+repo.PVCPath)
	}
}

func (d *Dispatcher) runCleanup(repo *model.Repository) {
	ctx := d.ctx
	start := time.Now()
	deleting := []model.Status{model.StatusDeleting}

	result, err := d.backend.Remove(ctx, repo.PVCPath)
	if err != nil {
		d.metrics.RecordTaskDuration(ctx, taskKindCleanup, time.Since(start), false)
		slog.ErrorContext(ctx, "Cleanup task failed",
			"repository_id", repo.ID,
			"pvc_path", repo.PVCPath,
			"error", err)
		d.finish(ctx, repo.ID, deleting, model.StatusDeletionFailed, err.Error())
		return
	}

	if !result.Done {
		if _, err := d.store.SetJobName(ctx, repo.ID, result.CorrelationKey, deleting); err != nil {
			slog.ErrorContext(ctx, "Failed to stamp job name",
				"repository_id", repo.ID,
				"job", result.CorrelationKey,
				"error", err)
		}
		return
	}

	d.metrics.RecordTaskDuration(ctx, taskKindCleanup, time.Since(start), true)

	// The working tree is gone; the record follows it.
	if err := d.store.Delete(ctx, repo.ID); err != nil {
		// Already removed by a concurrent cleanup is the expected
		// benign race.
		if !errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "Failed to delete repository record",
				"repository_id", repo.ID,
				"error", err)
		}
		return
	}

	slog.InfoContext(ctx, "Cleanup task completed",
		"repository_id", repo.ID,
		"pvc_path", repo.PVCPath)
	d.notifyReindex(ctx, "cleanup "+repo.PVCPath)
}

// finish applies a guarded terminal transition and reports whether it
// took effect.
func (d *Dispatcher) finish(ctx context.Context, id uuid.UUID, from []model.Status, to model.Status, taskLog string) bool {
	ok, err := d.store.FinishTask(ctx, id, from, to, taskLog)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to record task outcome",
			"repository_id", id,
			"status", to,
			"error", err)
		return false
	}
	if !ok {
		slog.DebugContext(ctx, "Task outcome superseded by a newer transition",
			"repository_id", id,
			"status", to)
	}
	return ok
}

func (d *Dispatcher) notifyReindex(ctx context.Context, reason string) {
	if err := d.notifier.Notify(ctx, reason); err != nil {
		slog.WarnContext(ctx, "Reindex notification failed",
			"reason", reason,
			"error", err)
	}
}
