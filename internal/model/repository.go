package model

import (
	"time"

	"github.com/google/uuid"
)

// Job name markers written by the command layer before any backend work
// has been submitted. Asynchronous backends replace them with the real
// work identifier on dispatch; synchronous backends leave them in place.
const (
	// JobMarkerExec marks a freshly created repository awaiting its first clone
	JobMarkerExec = "EXEC"

	// JobMarkerSync marks a manually or automatically requested re-sync
	JobMarkerSync = "SYNC"

	// JobMarkerImport marks a record created through a bulk import
	JobMarkerImport = "IMPORT"
)

// IsJobMarker reports whether the job name is a command marker rather than
// a backend work identifier.
func IsJobMarker(name string) bool {
	return name == JobMarkerExec || name == JobMarkerSync || name == JobMarkerImport
}

// Repository is a managed clone of a Git repository pinned to a commit.
// Exactly one record exists per (RepoURL, CommitID) pair, and each record
// owns one directory (PVCPath) on the shared source volume.
type Repository struct {
	ID       uuid.UUID `json:"id"`
	RepoURL  string    `json:"repo_url"`
	CommitID string    `json:"commit_id"`

	Status Status `json:"status"`

	// JobName correlates the record with in-flight backend work. It holds
	// a command marker until an asynchronous backend stamps the real name.
	JobName string `json:"job_name"`

	// PVCPath is the directory name under the shared source volume that
	// holds the working tree. Unique across all records.
	PVCPath string `json:"pvc_path"`

	CloneSingleBranch bool `json:"clone_single_branch"`
	CloneRecursive    bool `json:"clone_recursive"`

	// ExpiredAt, when set, schedules the record for automatic retirement.
	ExpiredAt *time.Time `json:"expired_at"`

	// LastSyncedAt records the last time a sync was requested, manual or
	// automatic. Used to suppress duplicate auto-sync runs within a day.
	LastSyncedAt *time.Time `json:"last_synced_at"`

	AutoSyncEnabled bool `json:"auto_sync_enabled"`

	// AutoSyncSchedule is the daily trigger time in "HH:MM" UTC.
	// Non-nil exactly when AutoSyncEnabled is true.
	AutoSyncSchedule *string `json:"auto_sync_schedule"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// TaskLog holds the output of the last finished task. Never part of
	// record responses; it is served through the logs endpoint instead.
	TaskLog *string `json:"-"`
}
