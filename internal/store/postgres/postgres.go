// Package postgres implements the repository store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crpaas/repo-custodian/internal/model"
	"github.com/crpaas/repo-custodian/internal/store"
)

// Connection pool tuning defaults.
const (
	defaultMaxConns        = 25
	defaultMinConns        = 2
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// Unique constraint names from the schema, used to map violations to
// typed errors.
const (
	constraintRepoCommit = "repositories_repo_url_commit_id_key"
	constraintPVCPath    = "repositories_pvc_path_key"
)

const repoColumns = `id, repo_url, commit_id, status, job_name, pvc_path,
	clone_single_branch, clone_recursive, expired_at, last_synced_at,
	auto_sync_enabled, auto_sync_schedule, created_at, updated_at, task_log`

// Store is a PostgreSQL-backed repository store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open creates a connection pool with the store's tuning defaults and
// verifies connectivity before returning.
func Open(ctx context.Context, connString string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolCfg.MaxConns = defaultMaxConns
	poolCfg.MinConns = defaultMinConns
	poolCfg.MaxConnLifetime = defaultMaxConnLifetime
	poolCfg.MaxConnIdleTime = defaultMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(pool), nil
}

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, repo *model.Repository) error {
	if repo.ID == uuid.Nil {
		repo.ID = uuid.New()
	}
	if repo.Status == "" {
		repo.Status = model.StatusPending
	}

	const query = `
		INSERT INTO repositories (
			id, repo_url, commit_id, status, job_name, pvc_path,
			clone_single_branch, clone_recursive, expired_at, last_synced_at,
			auto_sync_enabled, auto_sync_schedule, task_log
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		repo.ID, repo.RepoURL, repo.CommitID, string(repo.Status), repo.JobName, repo.PVCPath,
		repo.CloneSingleBranch, repo.CloneRecursive, repo.ExpiredAt, repo.LastSyncedAt,
		repo.AutoSyncEnabled, repo.AutoSyncSchedule, repo.TaskLog,
	).Scan(&repo.CreatedAt, &repo.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == constraintPVCPath {
				return fmt.Errorf("%w: %s", store.ErrDuplicatePath, repo.PVCPath)
			}
			return fmt.Errorf("%w: %s@%s", store.ErrDuplicateRepo, repo.RepoURL, repo.CommitID)
		}
		return fmt.Errorf("failed to insert repository: %w", err)
	}
	return nil
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE id = $1`
	repo, err := scanRepo(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return repo, nil
}

// GetByRepoAndCommit returns the record for the URL and commit pair.
func (s *Store) GetByRepoAndCommit(ctx context.Context, repoURL, commitID string) (*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE repo_url = $1 AND commit_id = $2`
	repo, err := scanRepo(s.pool.QueryRow(ctx, query, repoURL, commitID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s@%s", store.ErrNotFound, repoURL, commitID)
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return repo, nil
}

// GetByPVCPath returns the record owning the clone directory.
func (s *Store) GetByPVCPath(ctx context.Context, pvcPath string) (*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE pvc_path = $1`
	repo, err := scanRepo(s.pool.QueryRow(ctx, query, pvcPath))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, pvcPath)
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return repo, nil
}

// List returns all records, newest first.
func (s *Store) List(ctx context.Context) ([]*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories ORDER BY created_at DESC, id`
	return s.queryRepos(ctx, query)
}

// ListByStatus returns records whose status is one of the given states.
func (s *Store) ListByStatus(ctx context.Context, statuses ...model.Status) ([]*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE status = ANY($1) ORDER BY created_at DESC, id`
	return s.queryRepos(ctx, query, statusStrings(statuses))
}

// ListAutoSync returns records with auto sync enabled.
func (s *Store) ListAutoSync(ctx context.Context) ([]*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE auto_sync_enabled ORDER BY created_at DESC, id`
	return s.queryRepos(ctx, query)
}

// ListExpired returns records whose expiration time has passed.
func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories
		WHERE expired_at IS NOT NULL AND expired_at < $1 ORDER BY created_at DESC, id`
	return s.queryRepos(ctx, query, now)
}

// UpdateStatus moves the record to the target status when the guard matches.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, from []model.Status, to model.Status) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if len(from) == 0 {
		tag, err = s.pool.Exec(ctx,
			`UPDATE repositories SET status = $2, updated_at = now() WHERE id = $1`,
			id, string(to))
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE repositories SET status = $2, updated_at = now() WHERE id = $1 AND status = ANY($3)`,
			id, string(to), statusStrings(from))
	}
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, s.guardMiss(ctx, id)
	}
	return true, nil
}

// FinishTask moves the record to a terminal status and records the output.
func (s *Store) FinishTask(ctx context.Context, id uuid.UUID, from []model.Status, to model.Status, taskLog string) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if len(from) == 0 {
		tag, err = s.pool.Exec(ctx,
			`UPDATE repositories SET status = $2, task_log = $3, updated_at = now() WHERE id = $1`,
			id, string(to), taskLog)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE repositories SET status = $2, task_log = $3, updated_at = now()
				WHERE id = $1 AND status = ANY($4)`,
			id, string(to), taskLog, statusStrings(from))
	}
	if err != nil {
		return false, fmt.Errorf("failed to finish task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, s.guardMiss(ctx, id)
	}
	return true, nil
}

// MarkPending queues the record for another task run.
func (s *Store) MarkPending(ctx context.Context, id uuid.UUID, jobName string, syncedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE repositories SET status = $2, job_name = $3, last_synced_at = $4, updated_at = now()
			WHERE id = $1`,
		id, string(model.StatusPending), jobName, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to mark pending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

// SetJobName stamps the backend work identifier on the record.
func (s *Store) SetJobName(ctx context.Context, id uuid.UUID, jobName string, onlyIf []model.Status) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if len(onlyIf) == 0 {
		tag, err = s.pool.Exec(ctx,
			`UPDATE repositories SET job_name = $2, updated_at = now() WHERE id = $1`,
			id, jobName)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE repositories SET job_name = $2, updated_at = now() WHERE id = $1 AND status = ANY($3)`,
			id, jobName, statusStrings(onlyIf))
	}
	if err != nil {
		return false, fmt.Errorf("failed to set job name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, s.guardMiss(ctx, id)
	}
	return true, nil
}

// SetExpiration sets or clears the automatic retirement time.
func (s *Store) SetExpiration(ctx context.Context, id uuid.UUID, expiredAt *time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE repositories SET expired_at = $2, updated_at = now() WHERE id = $1`,
		id, expiredAt)
	if err != nil {
		return fmt.Errorf("failed to set expiration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

// SetAutoSync updates the auto sync flag and schedule together.
func (s *Store) SetAutoSync(ctx context.Context, id uuid.UUID, enabled bool, schedule *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE repositories SET auto_sync_enabled = $2, auto_sync_schedule = $3, updated_at = now()
			WHERE id = $1`,
		id, enabled, schedule)
	if err != nil {
		return fmt.Errorf("failed to set auto sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// guardMiss distinguishes a failed status guard from a missing record
// after an update affected zero rows.
func (s *Store) guardMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM repositories WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check repository existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func (s *Store) queryRepos(ctx context.Context, query string, args ...any) ([]*model.Repository, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories: %w", err)
	}
	defer rows.Close()

	var out []*model.Repository
	for rows.Next() {
		repo, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		out = append(out, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read repositories: %w", err)
	}
	return out, nil
}

func scanRepo(row pgx.Row) (*model.Repository, error) {
	var (
		r      model.Repository
		status string
	)
	err := row.Scan(
		&r.ID, &r.RepoURL, &r.CommitID, &status, &r.JobName, &r.PVCPath,
		&r.CloneSingleBranch, &r.CloneRecursive, &r.ExpiredAt, &r.LastSyncedAt,
		&r.AutoSyncEnabled, &r.AutoSyncSchedule, &r.CreatedAt, &r.UpdatedAt, &r.TaskLog,
	)
	if err != nil {
		return nil, err
	}
	r.Status = model.Status(status)
	return &r, nil
}

func statusStrings(statuses []model.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
