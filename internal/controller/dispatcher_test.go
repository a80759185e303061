package controller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/crpaas/repo-custodian/internal/backend"
	backendmocks "github.com/crpaas/repo-custodian/internal/backend/mocks"
	"github.com/crpaas/repo-custodian/internal/model"
	reindexmocks "github.com/crpaas/repo-custodian/internal/reindex/mocks"
	"github.com/crpaas/repo-custodian/internal/store"
	"github.com/crpaas/repo-custodian/internal/store/memory"
)

// asyncBackend combines the backend mock with the status querier mock so
// the dispatcher detects it as an asynchronous backend.
type asyncBackend struct {
	*backendmocks.MockBackend
	*backendmocks.MockStatusQuerier
}

func newAsyncBackend(ctrl *gomock.Controller) *asyncBackend {
	return &asyncBackend{
		MockBackend:       backendmocks.NewMockBackend(ctrl),
		MockStatusQuerier: backendmocks.NewMockStatusQuerier(ctrl),
	}
}

func seedRepo(t *testing.T, st *memory.Store, mutate func(*model.Repository)) *model.Repository {
	t.Helper()

	repo := &model.Repository{
		RepoURL:  "https://github.com/git/git.git",
		CommitID: "deadbeefcafe0123",
		Status:   model.StatusPending,
		JobName:  model.JobMarkerExec,
		PVCPath:  "git-deadbeefcafe",
	}
	if mutate != nil {
		mutate(repo)
	}
	require.NoError(t, st.Create(context.Background(), repo))
	return repo
}

func TestNewDispatcher(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := backendmocks.NewMockBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	t.Run("requires store", func(t *testing.T) {
		t.Parallel()
		_, err := NewDispatcher(nil, be, notifier)
		require.ErrorContains(t, err, "store is required")
	})

	t.Run("requires backend", func(t *testing.T) {
		t.Parallel()
		_, err := NewDispatcher(st, nil, notifier)
		require.ErrorContains(t, err, "backend is required")
	})

	t.Run("requires notifier", func(t *testing.T) {
		t.Parallel()
		_, err := NewDispatcher(st, be, nil)
		require.ErrorContains(t, err, "notifier is required")
	})

	t.Run("detects synchronous backend", func(t *testing.T) {
		t.Parallel()
		d, err := NewDispatcher(st, be, notifier)
		require.NoError(t, err)
		assert.False(t, d.async)
	})

	t.Run("detects asynchronous backend", func(t *testing.T) {
		t.Parallel()
		d, err := NewDispatcher(st, newAsyncBackend(ctrl), notifier)
		require.NoError(t, err)
		assert.True(t, d.async)
	})
}

func TestDispatcherClone_SynchronousSuccess(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := backendmocks.NewMockBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	repo := seedRepo(t, st, nil)

	be.EXPECT().
		CloneOrUpdate(gomock.Any(), backend.Task{
			RepoURL:    repo.RepoURL,
			CommitID:   repo.CommitID,
			TargetPath: repo.PVCPath,
		}).
		Return(&backend.Result{Done: true, Output: "Cloning into 'git-deadbeefcafe'...\ndone."}, nil)
	notifier.EXPECT().Notify(gomock.Any(), "clone git-deadbeefcafe").Return(nil)

	d, err := NewDispatcher(st, be, notifier)
	require.NoError(t, err)

	d.DispatchClone(context.Background(), repo)
	require.NoError(t, d.Drain(context.Background()))

	got, err := st.Get(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.TaskLog)
	assert.Contains(t, *got.TaskLog, "done.")
}

func TestDispatcherClone_SynchronousFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := backendmocks.NewMockBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	repo := seedRepo(t, st, nil)

	be.EXPECT().
		CloneOrUpdate(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("fatal: could not read from remote repository"))

	d, err := NewDispatcher(st, be, notifier)
	require.NoError(t, err)

	d.DispatchClone(context.Background(), repo)
	require.NoError(t, d.Drain(context.Background()))

	got, err := st.Get(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.TaskLog)
	assert.Contains(t, *got.TaskLog, "could not read from remote repository")
}

func TestDispatcherClone_SupersededByDelete(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := backendmocks.NewMockBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	repo := seedRepo(t, st, nil)

	// A delete lands while the clone is running. The terminal write is
	// guarded, so the clone outcome must not overwrite DELETING and no
	// reindex notification may fire.
	be.EXPECT().
		CloneOrUpdate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ backend.Task) (*backend.Result, error) {
			_, err := st.UpdateStatus(ctx, repo.ID, nil, model.StatusDeleting)
			require.NoError(t, err)
			return &backend.Result{Done: true, Output: "done"}, nil
		})

	d, err := NewDispatcher(st, be, notifier)
	require.NoError(t, err)

	d.DispatchClone(context.Background(), repo)
	require.NoError(t, d.Drain(context.Background()))

	got, err := st.Get(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleting, got.Status)
}

func TestDispatcherClone_AsynchronousStampsJobName(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := newAsyncBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	repo := seedRepo(t, st, nil)

	be.MockBackend.EXPECT().
		CloneOrUpdate(gomock.Any(), gomock.Any()).
		Return(&backend.Result{Done: false, CorrelationKey: "fetch-git-1700000000000-deadbeef"}, nil)

	d, err := NewDispatcher(st, be, notifier)
	require.NoError(t, err)

	d.DispatchClone(context.Background(), repo)
	require.NoError(t, d.Drain(context.Background()))

	got, err := st.Get(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status, "status stays PENDING until the watcher observes the job")
	assert.Equal(t, "fetch-git-1700000000000-deadbeef", got.JobName)
}

func TestDispatcherCleanup_RemovesRecord(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := backendmocks.NewMockBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	repo := seedRepo(t, st, func(r *model.Repository) {
		r.Status = model.StatusDeleting
	})

	be.EXPECT().Remove(gomock.Any(), repo.PVCPath).Return(&backend.Result{Done: true}, nil)
	notifier.EXPECT().Notify(gomock.Any(), "cleanup git-deadbeefcafe").Return(nil)

	d, err := NewDispatcher(st, be, notifier)
	require.NoError(t, err)

	d.DispatchCleanup(context.Background(), repo)
	require.NoError(t, d.Drain(context.Background()))

	_, err = st.Get(context.Background(), repo.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDispatcherCleanup_Failure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := backendmocks.NewMockBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	repo := seedRepo(t, st, func(r *model.Repository) {
		r.Status = model.StatusDeleting
	})

	be.EXPECT().Remove(gomock.Any(), repo.PVCPath).Return(nil, errors.New("permission denied"))

	d, err := NewDispatcher(st, be, notifier)
	require.NoError(t, err)

	d.DispatchCleanup(context.Background(), repo)
	require.NoError(t, d.Drain(context.Background()))

	got, err := st.Get(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeletionFailed, got.Status)
	require.NotNil(t, got.TaskLog)
	assert.Contains(t, *got.TaskLog, "permission denied")
}

func TestDispatcherCleanup_AsynchronousStampsJobName(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := newAsyncBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	repo := seedRepo(t, st, func(r *model.Repository) {
		r.Status = model.StatusDeleting
	})

	be.MockBackend.EXPECT().
		Remove(gomock.Any(), repo.PVCPath).
		Return(&backend.Result{Done: false, CorrelationKey: "cleanup-git-deadbeefcafe-1700000000000"}, nil)

	d, err := NewDispatcher(st, be, notifier)
	require.NoError(t, err)

	d.DispatchCleanup(context.Background(), repo)
	require.NoError(t, d.Drain(context.Background()))

	got, err := st.Get(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleting, got.Status)
	assert.Equal(t, "cleanup-git-deadbeefcafe-1700000000000", got.JobName)
}

func TestDispatcherDrain_DropsLateDispatches(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	// No expectations: any backend call after drain fails the test.
	be := backendmocks.NewMockBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	repo := seedRepo(t, st, nil)

	d, err := NewDispatcher(st, be, notifier)
	require.NoError(t, err)
	require.NoError(t, d.Drain(context.Background()))

	d.DispatchClone(context.Background(), repo)
	d.DispatchCleanup(context.Background(), repo)
	require.NoError(t, d.Drain(context.Background()))
}

func TestDispatcherConcurrencyLimit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := backendmocks.NewMockBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	first := seedRepo(t, st, nil)
	second := seedRepo(t, st, func(r *model.Repository) {
		r.RepoURL = "https://github.com/torvalds/linux.git"
		r.CommitID = "0123456789abcdef"
		r.PVCPath = "linux-0123456789ab"
	})
	third := seedRepo(t, st, func(r *model.Repository) {
		r.RepoURL = "https://github.com/golang/go.git"
		r.CommitID = "fedcba9876543210"
		r.PVCPath = "go-fedcba987654"
	})

	var running, peak atomic.Int32
	be.EXPECT().
		CloneOrUpdate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ backend.Task) (*backend.Result, error) {
			now := running.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return &backend.Result{Done: true, Output: "done"}, nil
		}).
		Times(3)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	d, err := NewDispatcher(st, be, notifier, WithMaxConcurrentTasks(1))
	require.NoError(t, err)

	d.DispatchClone(context.Background(), first)
	d.DispatchClone(context.Background(), second)
	d.DispatchClone(context.Background(), third)
	require.NoError(t, d.Drain(context.Background()))

	assert.Equal(t, int32(1), peak.Load(), "tasks must not overlap with a pool limit of one")
}

func TestDispatcherDrain_ForcedCancellation(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := memory.New()
	be := backendmocks.NewMockBackend(ctrl)
	notifier := reindexmocks.NewMockNotifier(ctrl)

	repo := seedRepo(t, st, nil)

	// The task only returns once its context is cancelled, simulating a
	// hung backend that honors cancellation.
	be.EXPECT().
		CloneOrUpdate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ backend.Task) (*backend.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	d, err := NewDispatcher(st, be, notifier)
	require.NoError(t, err)

	d.DispatchClone(context.Background(), repo)

	drainCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = d.Drain(drainCtx)
	require.ErrorContains(t, err, "forced cancellation")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := st.Get(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
}
