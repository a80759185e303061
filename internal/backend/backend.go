// Package backend defines how clone and removal tasks are executed.
//
// Two implementations exist: a direct backend that runs the work inline
// on a locally mounted volume, and a Kubernetes backend that submits
// batch Jobs and reports on them asynchronously.
package backend

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks -source=backend.go Backend,StatusQuerier

import "context"

// Task describes a clone or update of one repository at a pinned commit.
type Task struct {
	RepoURL  string
	CommitID string

	// TargetPath is the directory name under the shared source volume
	// that receives the working tree.
	TargetPath string

	SingleBranch bool
	Recursive    bool
}

// Result reports what became of a submitted task.
type Result struct {
	// Done is true when the work finished before returning, in which case
	// Output holds the transcript. When false the work continues in the
	// background and CorrelationKey identifies it for status queries.
	Done bool

	// CorrelationKey identifies in-flight background work. For finished
	// work it is informational.
	CorrelationKey string

	// Output is the transcript of finished work.
	Output string
}

// State classifies background work reported by a StatusQuerier.
type State string

const (
	// StateRunning means the work is executing.
	StateRunning State = "running"

	// StatePodCreating means the work was accepted but its worker has not
	// started yet.
	StatePodCreating State = "pod-creating"

	// StateSucceeded means the work finished successfully.
	StateSucceeded State = "succeeded"

	// StateFailed means the work exhausted its attempts and gave up.
	StateFailed State = "failed"

	// StateNotFound means the backend has no record of the work.
	StateNotFound State = "not-found"
)

// WorkStatus is a point-in-time report on background work.
type WorkStatus struct {
	State State

	// Output carries logs for finished work, when available.
	Output string
}

// Backend executes clone and removal tasks.
type Backend interface {
	// CloneOrUpdate materializes the task's target path at the pinned
	// commit, cloning fresh or updating an existing working tree.
	CloneOrUpdate(ctx context.Context, task Task) (*Result, error)

	// Remove deletes the working tree at the target path.
	Remove(ctx context.Context, targetPath string) (*Result, error)
}

// StatusQuerier is implemented by backends whose work continues after
// submission. Backends that finish work inside CloneOrUpdate and Remove
// do not implement it.
type StatusQuerier interface {
	// QueryWork reports on previously submitted work by correlation key.
	QueryWork(ctx context.Context, correlationKey string) (*WorkStatus, error)
}
