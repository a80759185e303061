package controller

import (
	"context"
	"errors"
	"log/slog"

	"github.com/crpaas/repo-custodian/internal/backend"
	"github.com/crpaas/repo-custodian/internal/model"
	"github.com/crpaas/repo-custodian/internal/store"
)

// watchTick reconciles every record with outstanding background work
// against what the backend reports for its job. Records carrying a job
// marker instead of a real job name belong to the dispatcher and are
// skipped.
func (c *Controller) watchTick(ctx context.Context) {
	if c.querier == nil {
		return
	}

	repos, err := c.store.ListByStatus(ctx,
		model.StatusPending,
		model.StatusPodCreating,
		model.StatusCloning,
		model.StatusDeleting,
	)
	if err != nil {
		slog.ErrorContext(ctx, "Watcher failed to list in-progress repositories", "error", err)
		return
	}

	for _, repo := range repos {
		if ctx.Err() != nil {
			return
		}
		if model.IsJobMarker(repo.JobName) {
			continue
		}
		c.reconcile(ctx, repo)
	}
}

// reconcile applies the transition the backend report calls for. Every
// write is guarded on the status the record was listed in, so a command
// that raced the watcher wins.
func (c *Controller) reconcile(ctx context.Context, repo *model.Repository) {
	ws, err := c.querier.QueryWork(ctx, repo.JobName)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to query background work",
			"repository_id", repo.ID,
			"job", repo.JobName,
			"error", err)
		return
	}

	deleting := repo.Status == model.StatusDeleting

	switch ws.State {
	case backend.StateSucceeded:
		if deleting {
			c.finishCleanup(ctx, repo)
			return
		}
		ok, err := c.store.FinishTask(ctx, repo.ID, cloneStates, model.StatusCompleted, ws.Output)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to complete repository",
				"repository_id", repo.ID,
				"error", err)
			return
		}
		if ok {
			slog.InfoContext(ctx, "Repository clone completed",
				"repository_id", repo.ID,
				"pvc_path", repo.PVCPath)
			c.metrics.RecordWatcherTransition(ctx, model.StatusCompleted.String())
			c.notifyReindex(ctx, "clone "+repo.PVCPath)
		}

	case backend.StateFailed:
		from, to := cloneStates, model.StatusFailed
		if deleting {
			from, to = []model.Status{model.StatusDeleting}, model.StatusDeletionFailed
		}
		ok, err := c.store.FinishTask(ctx, repo.ID, from, to, ws.Output)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to record task failure",
				"repository_id", repo.ID,
				"error", err)
			return
		}
		if ok {
			slog.WarnContext(ctx, "Background task failed",
				"repository_id", repo.ID,
				"job", repo.JobName,
				"status", to)
			c.metrics.RecordWatcherTransition(ctx, to.String())
		}

	case backend.StateNotFound:
		// The backend lost the job, so nothing will ever report a
		// terminal state for this record.
		ok, err := c.store.UpdateStatus(ctx, repo.ID, []model.Status{repo.Status}, model.StatusUnknownCleanup)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to mark repository unknown",
				"repository_id", repo.ID,
				"error", err)
			return
		}
		if ok {
			slog.WarnContext(ctx, "Background work disappeared",
				"repository_id", repo.ID,
				"job", repo.JobName)
			c.metrics.RecordWatcherTransition(ctx, model.StatusUnknownCleanup.String())
		}

	case backend.StateRunning:
		if deleting || repo.Status == model.StatusCloning {
			return
		}
		if c.advance(ctx, repo, model.StatusCloning) {
			c.metrics.RecordWatcherTransition(ctx, model.StatusCloning.String())
		}

	case backend.StatePodCreating:
		if repo.Status != model.StatusPending {
			return
		}
		if c.advance(ctx, repo, model.StatusPodCreating) {
			c.metrics.RecordWatcherTransition(ctx, model.StatusPodCreating.String())
		}
	}
}

// finishCleanup removes the record for a repository whose cleanup job
// succeeded.
func (c *Controller) finishCleanup(ctx context.Context, repo *model.Repository) {
	if err := c.store.Delete(ctx, repo.ID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "Failed to delete repository record",
				"repository_id", repo.ID,
				"error", err)
		}
		return
	}
	slog.InfoContext(ctx, "Repository cleanup completed",
		"repository_id", repo.ID,
		"pvc_path", repo.PVCPath)
	c.metrics.RecordWatcherTransition(ctx, "deleted")
	c.notifyReindex(ctx, "cleanup "+repo.PVCPath)
}

// advance moves a clone record forward, guarded on the observed status.
func (c *Controller) advance(ctx context.Context, repo *model.Repository, to model.Status) bool {
	ok, err := c.store.UpdateStatus(ctx, repo.ID, []model.Status{repo.Status}, to)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to advance repository status",
			"repository_id", repo.ID,
			"status", to,
			"error", err)
		return false
	}
	if ok {
		slog.DebugContext(ctx, "Repository status advanced",
			"repository_id", repo.ID,
			"from", repo.Status,
			"to", to)
	}
	return ok
}

func (c *Controller) notifyReindex(ctx context.Context, reason string) {
	if err := c.dispatcher.notifier.Notify(ctx, reason); err != nil {
		slog.WarnContext(ctx, "Reindex notification failed",
			"reason", reason,
			"error", err)
	}
}
