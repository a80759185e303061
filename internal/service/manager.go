package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/crpaas/repo-custodian/internal/model"
	"github.com/crpaas/repo-custodian/internal/naming"
	"github.com/crpaas/repo-custodian/internal/otel"
	"github.com/crpaas/repo-custodian/internal/store"
)

// options holds configuration for the lifecycle manager.
type options struct {
	store      store.Store
	dispatcher Dispatcher
	workLogger WorkLogger
	tracer     trace.Tracer
}

// Option is a functional option for configuring the lifecycle manager.
type Option func(*options) error

// WithStore sets the record store. Required.
func WithStore(s store.Store) Option {
	return func(o *options) error {
		if s == nil {
			return fmt.Errorf("store is required")
		}
		o.store = s
		return nil
	}
}

// WithDispatcher sets the task dispatcher. Required.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) error {
		if d == nil {
			return fmt.Errorf("dispatcher is required")
		}
		o.dispatcher = d
		return nil
	}
}

// WithWorkLogger enables live transcripts for in-flight work. Optional;
// without it GetLogs falls back to a placeholder while work runs.
func WithWorkLogger(l WorkLogger) Option {
	return func(o *options) error {
		o.workLogger = l
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for lifecycle operations.
// If not set, tracing is disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// manager implements Service on top of a record store and a dispatcher.
type manager struct {
	store      store.Store
	dispatcher Dispatcher
	workLogger WorkLogger
	tracer     trace.Tracer
}

var _ Service = (*manager)(nil)

// New builds the repository lifecycle service.
func New(opts ...Option) (Service, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if o.dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	return &manager{
		store:      o.store,
		dispatcher: o.dispatcher,
		workLogger: o.workLogger,
		tracer:     o.tracer,
	}, nil
}

// CheckReadiness reports whether the backing store is reachable.
func (m *manager) CheckReadiness(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// Create registers a repository at a pinned commit and dispatches the
// initial clone.
func (m *manager) Create(ctx context.Context, req *CreateRequest) (*model.Repository, error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "service.CreateRepository")
	defer span.End()

	if req == nil {
		return nil, invalidInput("Request body is required.")
	}
	if err := validateRepoURL(req.RepoURL); err != nil {
		return nil, err
	}
	if req.CommitID == "" {
		return nil, invalidInput("Invalid 'commit_id'. It must not be empty.")
	}
	if err := validateRetentionDays(req.RetentionDays); err != nil {
		return nil, err
	}
	schedule, err := validateAutoSync(req.AutoSyncEnabled, req.AutoSyncSchedule)
	if err != nil {
		return nil, err
	}

	pvcPath := naming.DerivePVCPath(req.RepoURL, req.CommitID)
	if req.ProjectName != "" {
		if err := validateProjectName(req.ProjectName); err != nil {
			return nil, err
		}
		pvcPath = req.ProjectName
	}
	span.SetAttributes(
		otel.AttrRepositoryName.String(pvcPath),
		otel.AttrCommitID.String(req.CommitID),
	)

	// The same URL and commit pair means the same on-disk content, so a
	// second create hands back the existing record instead of cloning
	// twice.
	existing, err := m.store.GetByRepoAndCommit(ctx, req.RepoURL, req.CommitID)
	if err == nil {
		return existing, ErrAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up repository: %w", err)
	}

	if _, err := m.store.GetByPVCPath(ctx, pvcPath); err == nil {
		return nil, m.pathConflictError(ctx, pvcPath)
	} else if !errors.Is(err, store.ErrNotFound) {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up clone path: %w", err)
	}

	now := time.Now().UTC()
	repo := &model.Repository{
		ID:                uuid.New(),
		RepoURL:           req.RepoURL,
		CommitID:          req.CommitID,
		Status:            model.StatusPending,
		JobName:           model.JobMarkerExec,
		PVCPath:           pvcPath,
		CloneSingleBranch: req.CloneSingleBranch,
		CloneRecursive:    req.CloneRecursive,
		ExpiredAt:         expirationFrom(req.RetentionDays, now),
		LastSyncedAt:      &now,
		AutoSyncEnabled:   req.AutoSyncEnabled,
		AutoSyncSchedule:  schedule,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := m.store.Create(ctx, repo); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateRepo):
			// Lost a race with a concurrent create for the same pair.
			existing, getErr := m.store.GetByRepoAndCommit(ctx, req.RepoURL, req.CommitID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load existing repository: %w", getErr)
			}
			return existing, ErrAlreadyExists
		case errors.Is(err, store.ErrDuplicatePath):
			return nil, m.pathConflictError(ctx, pvcPath)
		default:
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to create repository: %w", err)
		}
	}

	m.dispatcher.DispatchClone(ctx, repo)

	slog.InfoContext(ctx, "Repository registered",
		"repository_id", repo.ID,
		"repo_url", repo.RepoURL,
		"pvc_path", repo.PVCPath)
	span.SetAttributes(otel.AttrRepositoryID.String(repo.ID.String()))
	return repo, nil
}

// List returns all repository records, newest first.
func (m *manager) List(ctx context.Context) ([]*model.Repository, error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "service.ListRepositories")
	defer span.End()

	repos, err := m.store.List(ctx)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(repos)))
	return repos, nil
}

// Sync queues a fresh clone or update for an existing repository.
func (m *manager) Sync(ctx context.Context, id uuid.UUID) (*model.Repository, error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "service.SyncRepository")
	defer span.End()
	span.SetAttributes(otel.AttrRepositoryID.String(id.String()))

	if _, err := m.get(ctx, id); err != nil {
		return nil, err
	}

	if err := m.store.MarkPending(ctx, id, model.JobMarkerSync, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to queue sync: %w", err)
	}

	// Re-read so the dispatched task and the response carry the requeued
	// state.
	repo, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}

	m.dispatcher.DispatchClone(ctx, repo)

	slog.InfoContext(ctx, "Repository sync requested",
		"repository_id", repo.ID,
		"repo_url", repo.RepoURL)
	return repo, nil
}

// UpdateExpiration moves or clears the automatic retirement time.
func (m *manager) UpdateExpiration(ctx context.Context, id uuid.UUID, retentionDays int) (*model.Repository, error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "service.UpdateExpiration")
	defer span.End()
	span.SetAttributes(otel.AttrRepositoryID.String(id.String()))

	if retentionDays < 0 {
		return nil, invalidInput("Invalid 'retention_days'. It must be greater than or equal to 0.")
	}

	var expiredAt *time.Time
	if retentionDays > 0 {
		t := time.Now().UTC().AddDate(0, 0, retentionDays)
		expiredAt = &t
	}

	if err := m.store.SetExpiration(ctx, id, expiredAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to update expiration: %w", err)
	}

	slog.InfoContext(ctx, "Repository expiration updated",
		"repository_id", id,
		"expired_at", expiredAt)
	return m.get(ctx, id)
}

// UpdateAutoSync turns the daily re-sync on or off.
func (m *manager) UpdateAutoSync(ctx context.Context, id uuid.UUID, enabled bool, schedule *string) (*model.Repository, error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "service.UpdateAutoSync")
	defer span.End()
	span.SetAttributes(otel.AttrRepositoryID.String(id.String()))

	sched, err := validateAutoSync(enabled, schedule)
	if err != nil {
		return nil, err
	}

	if err := m.store.SetAutoSync(ctx, id, enabled, sched); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to update auto sync: %w", err)
	}

	slog.InfoContext(ctx, "Repository auto sync updated",
		"repository_id", id,
		"enabled", enabled)
	return m.get(ctx, id)
}

// Delete marks the repository for removal and dispatches the cleanup.
func (m *manager) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.StartSpan(ctx, m.tracer, "service.DeleteRepository")
	defer span.End()
	span.SetAttributes(otel.AttrRepositoryID.String(id.String()))

	repo, err := m.get(ctx, id)
	if err != nil {
		return err
	}

	// Unguarded write: a delete supersedes whatever was in flight.
	if _, err := m.store.UpdateStatus(ctx, id, nil, model.StatusDeleting); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		otel.RecordError(span, err)
		return fmt.Errorf("failed to mark repository for deletion: %w", err)
	}
	repo.Status = model.StatusDeleting

	m.dispatcher.DispatchCleanup(ctx, repo)

	slog.InfoContext(ctx, "Repository deletion initiated",
		"repository_id", repo.ID,
		"pvc_path", repo.PVCPath)
	return nil
}

// GetLogs returns the best available transcript for the repository's last
// task.
func (m *manager) GetLogs(ctx context.Context, id uuid.UUID) (string, error) {
	repo, err := m.get(ctx, id)
	if err != nil {
		return "", err
	}

	if repo.TaskLog != nil && *repo.TaskLog != "" {
		return *repo.TaskLog, nil
	}

	if repo.Status.InProgress() {
		if m.workLogger != nil && !model.IsJobMarker(repo.JobName) {
			if logs, err := m.workLogger.WorkLogs(ctx, repo.JobName); err == nil {
				return logs, nil
			}
		}
		return fmt.Sprintf("Task is currently in progress (Status: %s). Logs are being generated...", repo.Status), nil
	}

	return "No logs available for this repository.", nil
}

// Export returns a portable snapshot of every repository definition.
func (m *manager) Export(ctx context.Context) (*ExportResult, error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "service.ExportRepositories")
	defer span.End()

	repos, err := m.store.List(ctx)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	now := time.Now().UTC()
	out := &ExportResult{
		ExportedAt:   now,
		Repositories: make([]ExportedRepository, 0, len(repos)),
	}
	for _, repo := range repos {
		out.Repositories = append(out.Repositories, ExportedRepository{
			RepoURL:           repo.RepoURL,
			CommitID:          repo.CommitID,
			PVCPath:           repo.PVCPath,
			CloneSingleBranch: repo.CloneSingleBranch,
			CloneRecursive:    repo.CloneRecursive,
			RetentionDays:     retentionDaysUntil(repo.ExpiredAt, now),
			AutoSyncEnabled:   repo.AutoSyncEnabled,
			AutoSyncSchedule:  repo.AutoSyncSchedule,
		})
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(out.Repositories)))
	return out, nil
}

// Import recreates repository definitions from a snapshot.
func (m *manager) Import(ctx context.Context, entries []ExportedRepository) (*ImportResult, error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "service.ImportRepositories")
	defer span.End()

	res := &ImportResult{
		Total:   len(entries),
		Results: make([]ImportOutcome, 0, len(entries)),
	}
	for i := range entries {
		outcome := m.importOne(ctx, &entries[i])
		switch outcome.Status {
		case ImportOutcomeCreated:
			res.Created++
		case ImportOutcomeSkipped:
			res.Skipped++
		default:
			res.Errors++
		}
		res.Results = append(res.Results, outcome)
	}

	slog.InfoContext(ctx, "Repository import finished",
		"total", res.Total,
		"created", res.Created,
		"skipped", res.Skipped,
		"errors", res.Errors)
	span.SetAttributes(otel.AttrResultCount.Int(res.Created))
	return res, nil
}

// importOne restores a single snapshot entry. The clone directory is the
// identity here: an entry whose directory is already owned is skipped
// rather than treated as a conflict.
func (m *manager) importOne(ctx context.Context, entry *ExportedRepository) ImportOutcome {
	existing, err := m.store.GetByPVCPath(ctx, entry.PVCPath)
	if err == nil {
		return ImportOutcome{
			PVCPath: entry.PVCPath,
			Status:  ImportOutcomeSkipped,
			Message: fmt.Sprintf("Already exists (ID: %s, URL: %s)", existing.ID, existing.RepoURL),
		}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return ImportOutcome{
			PVCPath: entry.PVCPath,
			Status:  ImportOutcomeError,
			Message: fmt.Sprintf("Failed to check existing repository: %v", err),
		}
	}

	schedule := entry.AutoSyncSchedule
	if !entry.AutoSyncEnabled {
		schedule = nil
	}

	now := time.Now().UTC()
	repo := &model.Repository{
		ID:                uuid.New(),
		RepoURL:           entry.RepoURL,
		CommitID:          entry.CommitID,
		Status:            model.StatusPending,
		JobName:           model.JobMarkerImport,
		PVCPath:           entry.PVCPath,
		CloneSingleBranch: entry.CloneSingleBranch,
		CloneRecursive:    entry.CloneRecursive,
		ExpiredAt:         expirationFrom(entry.RetentionDays, now),
		LastSyncedAt:      &now,
		AutoSyncEnabled:   entry.AutoSyncEnabled,
		AutoSyncSchedule:  schedule,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.store.Create(ctx, repo); err != nil {
		return ImportOutcome{
			PVCPath: entry.PVCPath,
			Status:  ImportOutcomeError,
			Message: fmt.Sprintf("Failed to import: %v", err),
		}
	}

	m.dispatcher.DispatchClone(ctx, repo)

	return ImportOutcome{
		PVCPath: entry.PVCPath,
		Status:  ImportOutcomeCreated,
		Message: fmt.Sprintf("Import initiated (ID: %s)", repo.ID),
	}
}

// get loads a record, translating the store's not-found error into the
// service sentinel.
func (m *manager) get(ctx context.Context, id uuid.UUID) (*model.Repository, error) {
	repo, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load repository: %w", err)
	}
	return repo, nil
}

// pathConflictError names the current owner of the clone directory when
// it can still be found.
func (m *manager) pathConflictError(ctx context.Context, pvcPath string) error {
	ownerURL := "another repository"
	if owner, err := m.store.GetByPVCPath(ctx, pvcPath); err == nil {
		ownerURL = owner.RepoURL
	}
	return pathConflict(fmt.Sprintf(
		"Project name '%s' is already in use by repository '%s'. Please choose a different name.", pvcPath, ownerURL))
}

// expirationFrom resolves a relative retention into an absolute time.
// Nil or zero days means no expiration.
func expirationFrom(retentionDays *int, now time.Time) *time.Time {
	if retentionDays == nil || *retentionDays <= 0 {
		return nil
	}
	t := now.AddDate(0, 0, *retentionDays)
	return &t
}

// retentionDaysUntil converts an absolute expiration back into whole days
// from now, clamped at zero for records already past due.
func retentionDaysUntil(expiredAt *time.Time, now time.Time) *int {
	if expiredAt == nil {
		return nil
	}
	days := int(expiredAt.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}
