// Package direct executes clone and removal tasks inline against a
// locally mounted source volume using go-git.
package direct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/gofrs/flock"

	"github.com/crpaas/repo-custodian/internal/backend"
)

// lockRetryInterval is how often a blocked task retries the per-target
// advisory lock. The caller's context bounds the overall wait.
const lockRetryInterval = 250 * time.Millisecond

// Backend runs tasks synchronously on a local directory tree. It does not
// implement backend.StatusQuerier: every task is finished by the time
// CloneOrUpdate or Remove returns.
type Backend struct {
	root string
}

var _ backend.Backend = (*Backend)(nil)

// New returns a backend rooted at the given directory, creating the
// directory if needed.
func New(root string) (*Backend, error) {
	if root == "" {
		return nil, fmt.Errorf("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root path: %w", err)
	}
	return &Backend{root: root}, nil
}

// CloneOrUpdate materializes the target path at the pinned commit. An
// existing working tree is fetched and reset; a missing one is cloned
// fresh. Concurrent tasks on the same target serialize on an advisory
// file lock next to the working tree.
func (b *Backend) CloneOrUpdate(ctx context.Context, task backend.Task) (*backend.Result, error) {
	target, err := b.resolveTarget(task.TargetPath)
	if err != nil {
		return nil, err
	}

	unlock, err := b.lockTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	defer unlock()

	slog.DebugContext(ctx, "Running clone task",
		"repo_url", task.RepoURL,
		"commit", task.CommitID,
		"target", target)

	var out strings.Builder

	repo, fresh, err := b.ensureRepo(ctx, task, target, &out)
	if err != nil {
		return nil, err
	}

	// An existing clone may be stale; refresh it before resolving the
	// pinned commit.
	if !fresh {
		if err := fetchAll(ctx, repo, &out); err != nil {
			return nil, err
		}
	}

	hash, err := resolveCommit(repo, task.CommitID)
	if err != nil && fresh {
		// A shallow or single-branch clone may not carry the commit yet.
		if ferr := fetchAll(ctx, repo, &out); ferr != nil {
			return nil, ferr
		}
		hash, err = resolveCommit(repo, task.CommitID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve commit %q: %w", task.CommitID, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return nil, fmt.Errorf("failed to checkout %s: %w", hash, err)
	}
	fmt.Fprintf(&out, "Checked out %s\n", hash)

	if task.Recursive {
		if err := updateSubmodules(ctx, wt, &out); err != nil {
			return nil, err
		}
	}

	return &backend.Result{
		Done:           true,
		CorrelationKey: task.TargetPath,
		Output:         out.String(),
	}, nil
}

// Remove deletes the working tree at the target path.
func (b *Backend) Remove(ctx context.Context, targetPath string) (*backend.Result, error) {
	target, err := b.resolveTarget(targetPath)
	if err != nil {
		return nil, err
	}

	unlock, err := b.lockTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	defer unlock()

	slog.DebugContext(ctx, "Removing working tree", "target", target)

	if err := os.RemoveAll(target); err != nil {
		return nil, fmt.Errorf("failed to remove %s: %w", target, err)
	}

	return &backend.Result{
		Done:           true,
		CorrelationKey: targetPath,
		Output:         fmt.Sprintf("Removed %s\n", target),
	}, nil
}

// resolveTarget joins the target with the root. The target must be a
// plain directory name so tasks cannot reach outside the volume.
func (b *Backend) resolveTarget(path string) (string, error) {
	if path == "" || path != filepath.Base(path) || path == "." || path == ".." {
		return "", fmt.Errorf("invalid target path %q", path)
	}
	return filepath.Join(b.root, path), nil
}

// lockTarget takes the advisory lock guarding a working tree and returns
// the release function.
func (b *Backend) lockTarget(ctx context.Context, target string) (func(), error) {
	fl := flock.New(target + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", target, err)
	}
	if !locked {
		return nil, fmt.Errorf("target %s is locked by another task", target)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("Failed to release target lock", "target", target, "error", err)
		}
	}, nil
}

// ensureRepo opens the existing clone at target or creates a fresh one.
func (b *Backend) ensureRepo(ctx context.Context, task backend.Task, target string, out *strings.Builder) (*git.Repository, bool, error) {
	repo, err := git.PlainOpen(target)
	if err == nil {
		fmt.Fprintf(out, "Updating existing clone at %s\n", target)
		return repo, false, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, false, fmt.Errorf("failed to open %s: %w", target, err)
	}

	fmt.Fprintf(out, "Cloning %s into %s\n", task.RepoURL, target)
	cloneOpts := &git.CloneOptions{
		URL:          task.RepoURL,
		SingleBranch: task.SingleBranch,
	}
	if task.Recursive {
		cloneOpts.RecurseSubmodules = git.DefaultSubmoduleRecursionDepth
	}

	repo, err = git.PlainCloneContext(ctx, target, false, cloneOpts)
	if err != nil {
		return nil, false, fmt.Errorf("failed to clone %s: %w", task.RepoURL, err)
	}
	return repo, true, nil
}

// fetchAll fetches every branch and tag from origin so any pinned commit
// becomes resolvable, including in single-branch clones.
func fetchAll(ctx context.Context, repo *git.Repository, out *strings.Builder) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs: []gitconfig.RefSpec{
			"+refs/heads/*:refs/remotes/origin/*",
		},
		Tags:  git.AllTags,
		Force: true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		fmt.Fprintln(out, "Already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch from origin: %w", err)
	}
	fmt.Fprintln(out, "Fetched updates from origin")
	return nil
}

// resolveCommit turns the pinned reference into a commit hash. It accepts
// full hashes, branch names and tag names.
func resolveCommit(repo *git.Repository, commitID string) (*plumbing.Hash, error) {
	revisions := []string{
		commitID,
		"origin/" + commitID,
		"refs/tags/" + commitID,
	}

	var lastErr error
	for _, rev := range revisions {
		hash, err := repo.ResolveRevision(plumbing.Revision(rev))
		if err == nil {
			return hash, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func updateSubmodules(ctx context.Context, wt *git.Worktree, out *strings.Builder) error {
	subs, err := wt.Submodules()
	if err != nil {
		return fmt.Errorf("failed to list submodules: %w", err)
	}
	for _, sub := range subs {
		if err := sub.UpdateContext(ctx, &git.SubmoduleUpdateOptions{
			Init:              true,
			RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		}); err != nil {
			return fmt.Errorf("failed to update submodule %s: %w", sub.Config().Name, err)
		}
	}
	if len(subs) > 0 {
		fmt.Fprintf(out, "Updated %d submodules\n", len(subs))
	}
	return nil
}
