// Package store defines persistence for repository records.
//
// Every mutation is a single statement against the backing store. Writes
// that race with the background loops are guarded by status predicates:
// the store applies the update only when the record is still in one of
// the expected states and reports whether the write took effect.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/crpaas/repo-custodian/internal/model"
)

var (
	// ErrNotFound is returned when no repository record matches the query.
	ErrNotFound = errors.New("repository not found")

	// ErrDuplicateRepo is returned when a record for the same repository
	// URL and commit already exists.
	ErrDuplicateRepo = errors.New("repository already exists for this URL and commit")

	// ErrDuplicatePath is returned when another record already owns the
	// requested clone directory.
	ErrDuplicatePath = errors.New("clone path already in use")
)

// Store persists repository records.
type Store interface {
	// Create inserts a new record. Returns ErrDuplicateRepo or
	// ErrDuplicatePath when a uniqueness constraint rejects the insert.
	Create(ctx context.Context, repo *model.Repository) error

	// Get returns the record with the given ID or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*model.Repository, error)

	// GetByRepoAndCommit returns the record for the URL and commit pair
	// or ErrNotFound.
	GetByRepoAndCommit(ctx context.Context, repoURL, commitID string) (*model.Repository, error)

	// GetByPVCPath returns the record owning the clone directory or
	// ErrNotFound.
	GetByPVCPath(ctx context.Context, pvcPath string) (*model.Repository, error)

	// List returns all records, newest first.
	List(ctx context.Context) ([]*model.Repository, error)

	// ListByStatus returns records whose status is one of the given states.
	ListByStatus(ctx context.Context, statuses ...model.Status) ([]*model.Repository, error)

	// ListAutoSync returns records with auto sync enabled.
	ListAutoSync(ctx context.Context) ([]*model.Repository, error)

	// ListExpired returns records whose expiration time has passed.
	ListExpired(ctx context.Context, now time.Time) ([]*model.Repository, error)

	// UpdateStatus moves the record to the target status if it is still in
	// one of the from states. An empty from list means unconditional.
	// Returns false when the guard did not match.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []model.Status, to model.Status) (bool, error)

	// FinishTask moves the record to a terminal status and records the
	// task output, guarded like UpdateStatus.
	FinishTask(ctx context.Context, id uuid.UUID, from []model.Status, to model.Status, taskLog string) (bool, error)

	// MarkPending queues the record for another task run: status PENDING,
	// a fresh job name and the sync request time.
	MarkPending(ctx context.Context, id uuid.UUID, jobName string, syncedAt time.Time) error

	// SetJobName stamps the backend work identifier on the record,
	// guarded by the onlyIf states when non-empty.
	SetJobName(ctx context.Context, id uuid.UUID, jobName string, onlyIf []model.Status) (bool, error)

	// SetExpiration sets or clears the automatic retirement time.
	SetExpiration(ctx context.Context, id uuid.UUID, expiredAt *time.Time) error

	// SetAutoSync updates the auto sync flag and schedule together.
	SetAutoSync(ctx context.Context, id uuid.UUID, enabled bool, schedule *string) error

	// Delete removes the record. Returns ErrNotFound when already gone.
	Delete(ctx context.Context, id uuid.UUID) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}
