// Package memory provides an in-memory repository store for development
// and tests. It mirrors the guarded-update semantics of the Postgres
// store without external dependencies.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crpaas/repo-custodian/internal/model"
	"github.com/crpaas/repo-custodian/internal/store"
)

// Store is a mutex-guarded map of repository records.
type Store struct {
	mu    sync.RWMutex
	repos map[uuid.UUID]*model.Repository
	seq   map[uuid.UUID]uint64
	next  uint64
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		repos: make(map[uuid.UUID]*model.Repository),
		seq:   make(map[uuid.UUID]uint64),
	}
}

// Create inserts a new record after checking both uniqueness constraints.
func (s *Store) Create(_ context.Context, repo *model.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.repos {
		if existing.RepoURL == repo.RepoURL && existing.CommitID == repo.CommitID {
			return store.ErrDuplicateRepo
		}
		if existing.PVCPath == repo.PVCPath {
			return store.ErrDuplicatePath
		}
	}

	now := time.Now().UTC()
	if repo.ID == uuid.Nil {
		repo.ID = uuid.New()
	}
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	repo.UpdatedAt = now

	s.next++
	s.seq[repo.ID] = s.next
	s.repos[repo.ID] = cloneRepo(repo)
	return nil
}

// Get returns the record with the given ID.
func (s *Store) Get(_ context.Context, id uuid.UUID) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repo, ok := s.repos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneRepo(repo), nil
}

// GetByRepoAndCommit returns the record for the URL and commit pair.
func (s *Store) GetByRepoAndCommit(_ context.Context, repoURL, commitID string) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, repo := range s.repos {
		if repo.RepoURL == repoURL && repo.CommitID == commitID {
			return cloneRepo(repo), nil
		}
	}
	return nil, store.ErrNotFound
}

// GetByPVCPath returns the record owning the clone directory.
func (s *Store) GetByPVCPath(_ context.Context, pvcPath string) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, repo := range s.repos {
		if repo.PVCPath == pvcPath {
			return cloneRepo(repo), nil
		}
	}
	return nil, store.ErrNotFound
}

// List returns all records, newest first.
func (s *Store) List(_ context.Context) ([]*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Repository, 0, len(s.repos))
	for _, repo := range s.repos {
		out = append(out, cloneRepo(repo))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

// ListByStatus returns records whose status is one of the given states.
func (s *Store) ListByStatus(ctx context.Context, statuses ...model.Status) ([]*model.Repository, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Repository, 0, len(all))
	for _, repo := range all {
		if statusIn(repo.Status, statuses) {
			out = append(out, repo)
		}
	}
	return out, nil
}

// ListAutoSync returns records with auto sync enabled.
func (s *Store) ListAutoSync(ctx context.Context) ([]*model.Repository, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Repository, 0, len(all))
	for _, repo := range all {
		if repo.AutoSyncEnabled {
			out = append(out, repo)
		}
	}
	return out, nil
}

// ListExpired returns records whose expiration time has passed.
func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]*model.Repository, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Repository, 0, len(all))
	for _, repo := range all {
		if repo.ExpiredAt != nil && repo.ExpiredAt.Before(now) {
			out = append(out, repo)
		}
	}
	return out, nil
}

// UpdateStatus moves the record to the target status when the guard matches.
func (s *Store) UpdateStatus(_ context.Context, id uuid.UUID, from []model.Status, to model.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !statusIn(repo.Status, from) {
		return false, nil
	}

	repo.Status = to
	repo.UpdatedAt = time.Now().UTC()
	return true, nil
}

// FinishTask moves the record to a terminal status and records the output.
func (s *Store) FinishTask(_ context.Context, id uuid.UUID, from []model.Status, to model.Status, taskLog string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !statusIn(repo.Status, from) {
		return false, nil
	}

	repo.Status = to
	repo.TaskLog = &taskLog
	repo.UpdatedAt = time.Now().UTC()
	return true, nil
}

// MarkPending queues the record for another task run.
func (s *Store) MarkPending(_ context.Context, id uuid.UUID, jobName string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[id]
	if !ok {
		return store.ErrNotFound
	}

	repo.Status = model.StatusPending
	repo.JobName = jobName
	synced := syncedAt
	repo.LastSyncedAt = &synced
	repo.UpdatedAt = time.Now().UTC()
	return nil
}

// SetJobName stamps the backend work identifier on the record.
func (s *Store) SetJobName(_ context.Context, id uuid.UUID, jobName string, onlyIf []model.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !statusIn(repo.Status, onlyIf) {
		return false, nil
	}

	repo.JobName = jobName
	repo.UpdatedAt = time.Now().UTC()
	return true, nil
}

// SetExpiration sets or clears the automatic retirement time.
func (s *Store) SetExpiration(_ context.Context, id uuid.UUID, expiredAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[id]
	if !ok {
		return store.ErrNotFound
	}

	repo.ExpiredAt = cloneTime(expiredAt)
	repo.UpdatedAt = time.Now().UTC()
	return nil
}

// SetAutoSync updates the auto sync flag and schedule together.
func (s *Store) SetAutoSync(_ context.Context, id uuid.UUID, enabled bool, schedule *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[id]
	if !ok {
		return store.ErrNotFound
	}

	repo.AutoSyncEnabled = enabled
	repo.AutoSyncSchedule = cloneString(schedule)
	repo.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the record.
func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repos[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.repos, id)
	delete(s.seq, id)
	return nil
}

// Ping always succeeds.
func (*Store) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (*Store) Close() error {
	return nil
}

// statusIn reports whether the status is in the set. An empty set matches
// everything, which makes guards optional.
func statusIn(s model.Status, set []model.Status) bool {
	if len(set) == 0 {
		return true
	}
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func cloneRepo(repo *model.Repository) *model.Repository {
	out := *repo
	out.ExpiredAt = cloneTime(repo.ExpiredAt)
	out.LastSyncedAt = cloneTime(repo.LastSyncedAt)
	out.AutoSyncSchedule = cloneString(repo.AutoSyncSchedule)
	out.TaskLog = cloneString(repo.TaskLog)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
