// Package service implements the repository lifecycle commands shared by
// the HTTP API and the background controller loops. Commands validate
// input, write the record, then hand execution work to a Dispatcher;
// they never wait for clone or cleanup work to finish.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crpaas/repo-custodian/internal/model"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service,Dispatcher,WorkLogger

// Service defines the repository lifecycle operations.
type Service interface {
	// CheckReadiness reports whether the backing store is reachable.
	CheckReadiness(ctx context.Context) error

	// Create registers a repository at a pinned commit and dispatches the
	// initial clone. When the URL and commit pair is already managed it
	// returns the existing record together with ErrAlreadyExists.
	Create(ctx context.Context, req *CreateRequest) (*model.Repository, error)

	// List returns all repository records, newest first.
	List(ctx context.Context) ([]*model.Repository, error)

	// Sync queues a fresh clone or update for an existing repository and
	// returns the requeued record.
	Sync(ctx context.Context, id uuid.UUID) (*model.Repository, error)

	// UpdateExpiration moves the automatic retirement time to now plus
	// retentionDays, or clears it when retentionDays is zero.
	UpdateExpiration(ctx context.Context, id uuid.UUID, retentionDays int) (*model.Repository, error)

	// UpdateAutoSync turns the daily re-sync on or off. A schedule is
	// required when enabling and discarded when disabling.
	UpdateAutoSync(ctx context.Context, id uuid.UUID, enabled bool, schedule *string) (*model.Repository, error)

	// Delete marks the repository for removal and dispatches the cleanup
	// of its working tree.
	Delete(ctx context.Context, id uuid.UUID) error

	// GetLogs returns the stored task output, the live transcript for
	// work still in flight, or a placeholder when neither is available.
	GetLogs(ctx context.Context, id uuid.UUID) (string, error)

	// Export returns a portable snapshot of every repository definition.
	Export(ctx context.Context) (*ExportResult, error)

	// Import recreates repository definitions from a snapshot, skipping
	// entries whose clone directory already exists.
	Import(ctx context.Context, entries []ExportedRepository) (*ImportResult, error)
}

// Dispatcher queues accepted commands for the execution backend without
// blocking the caller.
type Dispatcher interface {
	// DispatchClone queues a clone or update task for the repository.
	DispatchClone(ctx context.Context, repo *model.Repository)

	// DispatchCleanup queues removal of the repository's working tree.
	DispatchCleanup(ctx context.Context, repo *model.Repository)
}

// WorkLogger fetches the live transcript of in-flight backend work.
// Backends whose work finishes before dispatch returns have nothing to
// report here and are not wired.
type WorkLogger interface {
	WorkLogs(ctx context.Context, correlationKey string) (string, error)
}

// CreateRequest describes a repository to manage.
type CreateRequest struct {
	RepoURL  string `json:"repo_url"`
	CommitID string `json:"commit_id"`

	// ProjectName overrides the derived clone directory name. Must
	// already be a DNS-safe label when set.
	ProjectName string `json:"project_name,omitempty"`

	CloneSingleBranch bool `json:"clone_single_branch"`
	CloneRecursive    bool `json:"clone_recursive"`

	// RetentionDays schedules automatic retirement that many days out.
	// Zero or absent keeps the clone indefinitely.
	RetentionDays *int `json:"retention_days,omitempty"`

	AutoSyncEnabled  bool    `json:"auto_sync_enabled"`
	AutoSyncSchedule *string `json:"auto_sync_schedule,omitempty"`
}

// ExportedRepository is one repository definition in a portable snapshot.
// RetentionDays is relative: days left until expiration at export time,
// re-anchored to the import time on the way back in.
type ExportedRepository struct {
	RepoURL           string  `json:"repo_url"`
	CommitID          string  `json:"commit_id"`
	PVCPath           string  `json:"pvc_path"`
	CloneSingleBranch bool    `json:"clone_single_branch"`
	CloneRecursive    bool    `json:"clone_recursive"`
	RetentionDays     *int    `json:"retention_days"`
	AutoSyncEnabled   bool    `json:"auto_sync_enabled"`
	AutoSyncSchedule  *string `json:"auto_sync_schedule"`
}

// ExportResult is a portable snapshot of all repository definitions.
type ExportResult struct {
	ExportedAt   time.Time            `json:"exported_at"`
	Repositories []ExportedRepository `json:"repositories"`
}

// Per-entry import outcome statuses.
const (
	ImportOutcomeCreated = "created"
	ImportOutcomeSkipped = "skipped"
	ImportOutcomeError   = "error"
)

// ImportOutcome reports what happened to one snapshot entry.
type ImportOutcome struct {
	PVCPath string `json:"pvc_path"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ImportResult summarizes a snapshot import. Total is always the sum of
// Created, Skipped and Errors.
type ImportResult struct {
	Total   int             `json:"total"`
	Created int             `json:"created"`
	Skipped int             `json:"skipped"`
	Errors  int             `json:"errors"`
	Results []ImportOutcome `json:"results"`
}
