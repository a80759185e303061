package controller

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/crpaas/repo-custodian/internal/model"
)

// autoSyncTick fires a sync for every repository whose daily schedule
// time fell inside (lastCheck, now]. lastCheck only advances after a
// fully processed tick, so a failed listing re-evaluates the same window
// next time instead of silently skipping it.
func (c *Controller) autoSyncTick(ctx context.Context, now time.Time) {
	repos, err := c.store.ListAutoSync(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Auto-sync failed to list repositories", "error", err)
		return
	}

	for _, repo := range repos {
		if ctx.Err() != nil {
			return
		}
		c.maybeAutoSync(ctx, repo, now)
	}

	c.lastCheck = now
}

func (c *Controller) maybeAutoSync(ctx context.Context, repo *model.Repository, now time.Time) {
	if repo.AutoSyncSchedule == nil {
		return
	}
	hour, minute, ok := parseSchedule(*repo.AutoSyncSchedule)
	if !ok {
		slog.WarnContext(ctx, "Skipping repository with malformed auto-sync schedule",
			"repository_id", repo.ID,
			"schedule", *repo.AutoSyncSchedule)
		return
	}

	// Most recent occurrence of the daily schedule time at or before now.
	occurrence := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if occurrence.After(now) {
		occurrence = occurrence.AddDate(0, 0, -1)
	}
	if !occurrence.After(c.lastCheck) {
		return
	}

	// One sync per schedule day, even across restarts.
	if repo.LastSyncedAt != nil && sameUTCDate(*repo.LastSyncedAt, occurrence) {
		slog.DebugContext(ctx, "Repository already synced for this schedule day",
			"repository_id", repo.ID,
			"last_synced_at", repo.LastSyncedAt)
		return
	}
	if repo.Status == model.StatusPending {
		slog.DebugContext(ctx, "Repository already queued; skipping auto-sync",
			"repository_id", repo.ID)
		return
	}

	if err := c.store.MarkPending(ctx, repo.ID, model.JobMarkerSync, now); err != nil {
		slog.ErrorContext(ctx, "Failed to queue auto-sync",
			"repository_id", repo.ID,
			"error", err)
		return
	}

	slog.InfoContext(ctx, "Auto-sync triggered",
		"repository_id", repo.ID,
		"repo_url", repo.RepoURL,
		"schedule", *repo.AutoSyncSchedule)

	queued := *repo
	queued.Status = model.StatusPending
	queued.JobName = model.JobMarkerSync
	queued.LastSyncedAt = &now
	c.dispatcher.DispatchClone(ctx, &queued)
	c.metrics.RecordAutoSyncTrigger(ctx)
}

// parseSchedule splits a daily "HH:MM" schedule into its components.
func parseSchedule(schedule string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(schedule, ":")
	if !found {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func sameUTCDate(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.Month() == bu.Month() && au.Day() == bu.Day()
}
