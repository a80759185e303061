// Package model defines the repository record and its lifecycle states.
package model

// Status represents the lifecycle state of a managed repository clone.
type Status string

const (
	// StatusPending means the record exists and a task has been queued
	// but no execution work has been observed yet
	StatusPending Status = "PENDING"

	// StatusPodCreating means the execution backend accepted the task and
	// is still bringing up the worker that will run it
	StatusPodCreating Status = "POD_CREATING"

	// StatusCloning means the clone or update is actively running
	StatusCloning Status = "CLONING"

	// StatusCompleted means the working tree exists on shared storage at
	// the pinned commit
	StatusCompleted Status = "COMPLETED"

	// StatusFailed means the last clone or sync attempt failed
	StatusFailed Status = "FAILED"

	// StatusDeleting means removal of the working tree has been requested
	StatusDeleting Status = "DELETING"

	// StatusDeletionFailed means the removal attempt failed and the
	// working tree may still occupy storage
	StatusDeletionFailed Status = "DELETION_FAILED"

	// StatusUnknownCleanup means the backend lost track of an in-flight
	// task and the true state of the working tree is not known
	StatusUnknownCleanup Status = "UNKNOWN_CLEANUP"
)

// InProgress reports whether the status describes work that has been
// requested but has not reached a terminal state.
func (s Status) InProgress() bool {
	switch s {
	case StatusPending, StatusPodCreating, StatusCloning, StatusDeleting:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is a resting state that only a new
// command can move the record out of.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDeletionFailed, StatusUnknownCleanup:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	return s.InProgress() || s.Terminal()
}

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}
