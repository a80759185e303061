package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/crpaas/repo-custodian/internal/model"
	"github.com/crpaas/repo-custodian/internal/service"
)

// sweepTick retires every repository whose expiration time has passed.
// Retirement goes through the service delete path, so the record moves
// to DELETING and cleanup is dispatched like a user-initiated delete.
func (c *Controller) sweepTick(ctx context.Context, now time.Time) {
	repos, err := c.store.ListExpired(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Sweeper failed to list expired repositories", "error", err)
		return
	}
	if len(repos) == 0 {
		return
	}

	slog.InfoContext(ctx, "Retiring expired repositories", "count", len(repos))
	c.metrics.RecordExpired(ctx, int64(len(repos)))

	for _, repo := range repos {
		if ctx.Err() != nil {
			return
		}
		// A cleanup already in flight finishes on its own. Failed
		// cleanups are retried on the next pass through here.
		if repo.Status == model.StatusDeleting {
			continue
		}
		if err := c.service.Delete(ctx, repo.ID); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				continue
			}
			slog.ErrorContext(ctx, "Failed to retire expired repository",
				"repository_id", repo.ID,
				"repo_url", repo.RepoURL,
				"error", err)
			continue
		}
		slog.InfoContext(ctx, "Expired repository retirement initiated",
			"repository_id", repo.ID,
			"repo_url", repo.RepoURL,
			"expired_at", repo.ExpiredAt)
	}
}
