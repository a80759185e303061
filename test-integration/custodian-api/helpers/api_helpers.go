package helpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/onsi/gomega"
)

// Repository mirrors the record shape served by the API.
type Repository struct {
	ID                string     `json:"id"`
	RepoURL           string     `json:"repo_url"`
	CommitID          string     `json:"commit_id"`
	Status            string     `json:"status"`
	JobName           string     `json:"job_name"`
	PVCPath           string     `json:"pvc_path"`
	CloneSingleBranch bool       `json:"clone_single_branch"`
	CloneRecursive    bool       `json:"clone_recursive"`
	ExpiredAt         *time.Time `json:"expired_at"`
	LastSyncedAt      *time.Time `json:"last_synced_at"`
	AutoSyncEnabled   bool       `json:"auto_sync_enabled"`
	AutoSyncSchedule  *string    `json:"auto_sync_schedule"`
}

// CreateRepositoryRequest is the registration payload.
type CreateRepositoryRequest struct {
	RepoURL           string  `json:"repo_url"`
	CommitID          string  `json:"commit_id"`
	ProjectName       string  `json:"project_name,omitempty"`
	CloneSingleBranch bool    `json:"clone_single_branch"`
	CloneRecursive    bool    `json:"clone_recursive"`
	RetentionDays     *int    `json:"retention_days,omitempty"`
	AutoSyncEnabled   bool    `json:"auto_sync_enabled"`
	AutoSyncSchedule  *string `json:"auto_sync_schedule,omitempty"`
}

// ExportedRepository is one entry of an exported snapshot.
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

// ExportSnapshot is the export endpoint response.
type ExportSnapshot struct {
	ExportedAt   time.Time            `json:"exported_at"`
	Repositories []ExportedRepository `json:"repositories"`
}

// ImportOutcome reports what happened to a single snapshot entry.
type ImportOutcome struct {
	PVCPath string `json:"pvc_path"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ImportSummary is the import endpoint response.
type ImportSummary struct {
	Total   int             `json:"total"`
	Created int             `json:"created"`
	Skipped int             `json:"skipped"`
	Errors  int             `json:"errors"`
	Results []ImportOutcome `json:"results"`
}

// APIClient drives the lifecycle API over HTTP. Transport failures fail
// the test immediately; status codes are handed back for the caller to
// assert.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client for the given server base URL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Get performs a plain GET and returns the status code and raw body.
func (c *APIClient) Get(path string) (int, []byte) {
	return c.request(http.MethodGet, path, nil)
}

// CreateRepository registers a repository.
func (c *APIClient) CreateRepository(req CreateRepositoryRequest) (int, Repository) {
	status, body := c.request(http.MethodPost, "/api/v1/repository", req)
	return status, decodeRepository(status, body)
}

// ListRepositories returns all records, asserting a 200 answer.
func (c *APIClient) ListRepositories() []Repository {
	status, body := c.request(http.MethodGet, "/api/v1/repositories", nil)
	gomega.Expect(status).To(gomega.Equal(http.StatusOK))

	var repos []Repository
	gomega.Expect(json.Unmarshal(body, &repos)).To(gomega.Succeed())
	return repos
}

// FindRepository looks a record up by ID through the list endpoint.
func (c *APIClient) FindRepository(id string) (Repository, bool) {
	for _, repo := range c.ListRepositories() {
		if repo.ID == id {
			return repo, true
		}
	}
	return Repository{}, false
}

// FindRepositoryByPath looks a record up by its clone directory.
func (c *APIClient) FindRepositoryByPath(pvcPath string) (Repository, bool) {
	for _, repo := range c.ListRepositories() {
		if repo.PVCPath == pvcPath {
			return repo, true
		}
	}
	return Repository{}, false
}

// SyncRepository requests a re-sync.
func (c *APIClient) SyncRepository(id string) (int, Repository) {
	status, body := c.request(http.MethodPost, "/api/v1/repository/"+id+"/sync", nil)
	return status, decodeRepository(status, body)
}

// UpdateExpiration moves the retirement time retentionDays out, or
// clears it when retentionDays is zero.
func (c *APIClient) UpdateExpiration(id string, retentionDays int) (int, Repository) {
	payload := map[string]int{"retention_days": retentionDays}
	status, body := c.request(http.MethodPut, "/api/v1/repository/"+id+"/expiration", payload)
	return status, decodeRepository(status, body)
}

// UpdateAutoSync turns the daily re-sync on or off.
func (c *APIClient) UpdateAutoSync(id string, enabled bool, schedule *string) (int, Repository) {
	payload := map[string]any{
		"auto_sync_enabled":  enabled,
		"auto_sync_schedule": schedule,
	}
	status, body := c.request(http.MethodPut, "/api/v1/repository/"+id+"/autosync", payload)
	return status, decodeRepository(status, body)
}

// DeleteRepository requests retirement of a repository.
func (c *APIClient) DeleteRepository(id string) int {
	status, _ := c.request(http.MethodDelete, "/api/v1/repository/"+id+"/", nil)
	return status
}

// RepositoryLogs fetches the task transcript.
func (c *APIClient) RepositoryLogs(id string) (int, string) {
	status, body := c.request(http.MethodGet, "/api/v1/repository/"+id+"/logs", nil)
	if status != http.StatusOK {
		return status, ""
	}

	var logs struct {
		Logs string `json:"logs"`
	}
	gomega.Expect(json.Unmarshal(body, &logs)).To(gomega.Succeed())
	return status, logs.Logs
}

// ExportRepositories fetches a snapshot, asserting a 200 answer.
func (c *APIClient) ExportRepositories() ExportSnapshot {
	status, body := c.request(http.MethodGet, "/api/v1/repositories/export", nil)
	gomega.Expect(status).To(gomega.Equal(http.StatusOK))

	var snapshot ExportSnapshot
	gomega.Expect(json.Unmarshal(body, &snapshot)).To(gomega.Succeed())
	return snapshot
}

// ImportRepositories replays snapshot entries.
func (c *APIClient) ImportRepositories(entries []ExportedRepository) (int, ImportSummary) {
	payload := map[string]any{"repositories": entries}
	status, body := c.request(http.MethodPost, "/api/v1/repositories/import", payload)

	var summary ImportSummary
	if status == http.StatusOK {
		gomega.Expect(json.Unmarshal(body, &summary)).To(gomega.Succeed())
	}
	return status, summary
}

func (c *APIClient) request(method, path string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return resp.StatusCode, data
}

func decodeRepository(status int, body []byte) Repository {
	var repo Repository
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		gomega.Expect(json.Unmarshal(body, &repo)).To(gomega.Succeed())
	}
	return repo
}

// ReindexRecorder is a stand-in search indexer endpoint counting how
// often a reindex was triggered.
type ReindexRecorder struct {
	server *httptest.Server
	hits   atomic.Int64
}

// NewReindexRecorder starts the recorder.
func NewReindexRecorder() *ReindexRecorder {
	r := &ReindexRecorder{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		r.hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	return r
}

// URL returns the recorder endpoint.
func (r *ReindexRecorder) URL() string {
	return r.server.URL
}

// Hits returns how many reindex requests arrived so far.
func (r *ReindexRecorder) Hits() int64 {
	return r.hits.Load()
}

// Close stops the recorder.
func (r *ReindexRecorder) Close() {
	r.server.Close()
}
