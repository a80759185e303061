package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"k8s.io/utils/ptr"

	"github.com/crpaas/repo-custodian/internal/indexer"
	indexermocks "github.com/crpaas/repo-custodian/internal/indexer/mocks"
	"github.com/crpaas/repo-custodian/internal/model"
	"github.com/crpaas/repo-custodian/internal/service"
	"github.com/crpaas/repo-custodian/internal/service/mocks"
)

func testRepository(id uuid.UUID) *model.Repository {
	now := time.Date(2024, 11, 15, 10, 0, 0, 0, time.UTC)
	return &model.Repository{
		ID:       id,
		RepoURL:  "https://github.com/git/git.git",
		CommitID: "deadbeefcafe0123",
		Status:   model.StatusPending,
		JobName:  model.JobMarkerExec,
		PVCPath:  "git-deadbeefcafe",

		CreatedAt: now,
		UpdatedAt: now,
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestGetConfig(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockSvc := mocks.NewMockService(ctrl)

	t.Run("with base url", func(t *testing.T) {
		router := Router(mockSvc, WithOpenGrokBaseURL("https://opengrok.example.com"))
		rr := doRequest(t, router, http.MethodGet, "/config", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "https://opengrok.example.com", body["opengrok_base_url"])
	})

	t.Run("without base url", func(t *testing.T) {
		router := Router(mockSvc)
		rr := doRequest(t, router, http.MethodGet, "/config", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "", body["opengrok_base_url"])
	})
}

func TestCreateRepository(t *testing.T) {
	t.Parallel()

	validBody := `{"repo_url": "https://github.com/git/git.git", "commit_id": "deadbeefcafe0123"}`
	repoID := uuid.New()

	tests := []struct {
		name        string
		body        string
		setupMocks  func(*mocks.MockService)
		wantStatus  int
		wantError   string
		wantRepoURL string
	}{
		{
			name: "accepted",
			body: validBody,
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).Return(testRepository(repoID), nil)
			},
			wantStatus:  http.StatusAccepted,
			wantRepoURL: "https://github.com/git/git.git",
		},
		{
			name: "duplicate returns existing record",
			body: validBody,
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).
					Return(testRepository(repoID), service.ErrAlreadyExists)
			},
			wantStatus:  http.StatusOK,
			wantRepoURL: "https://github.com/git/git.git",
		},
		{
			name: "project name conflict",
			body: validBody,
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("naming clash: %w", service.ErrPathConflict))
			},
			wantStatus: http.StatusConflict,
			wantError:  "naming clash",
		},
		{
			name: "invalid input",
			body: `{"repo_url": "not-a-git-url", "commit_id": "deadbeef"}`,
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("Invalid 'repo_url': %w", service.ErrInvalidInput))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Invalid 'repo_url'",
		},
		{
			name: "internal error is masked",
			body: validBody,
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("pgx: connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
		{
			name:       "malformed body",
			body:       `{"repo_url": `,
			setupMocks: func(*mocks.MockService) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockSvc := mocks.NewMockService(ctrl)
			tt.setupMocks(mockSvc)

			rr := doRequest(t, Router(mockSvc), http.MethodPost, "/repository", tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decodeBody(t, rr)
			if tt.wantError != "" {
				assert.Contains(t, body["error"], tt.wantError)
			}
			if tt.wantRepoURL != "" {
				assert.Equal(t, tt.wantRepoURL, body["repo_url"])
				assert.Equal(t, string(model.StatusPending), body["status"])
			}
		})
	}
}

func TestCreateRepository_PassesRequestThrough(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockSvc := mocks.NewMockService(ctrl)

	mockSvc.EXPECT().
		Create(gomock.Any(), &service.CreateRequest{
			RepoURL:           "https://github.com/git/git.git",
			CommitID:          "deadbeefcafe0123",
			ProjectName:       "git-stable",
			CloneSingleBranch: true,
			RetentionDays:     ptr.To(30),
			AutoSyncEnabled:   true,
			AutoSyncSchedule:  ptr.To("03:30"),
		}).
		Return(testRepository(uuid.New()), nil)

	body := `{
		"repo_url": "https://github.com/git/git.git",
		"commit_id": "deadbeefcafe0123",
		"project_name": "git-stable",
		"clone_single_branch": true,
		"retention_days": 30,
		"auto_sync_enabled": true,
		"auto_sync_schedule": "03:30"
	}`
	rr := doRequest(t, Router(mockSvc), http.MethodPost, "/repository", body)
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestListRepositories(t *testing.T) {
	t.Parallel()

	t.Run("records", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)
		mockSvc.EXPECT().List(gomock.Any()).
			Return([]*model.Repository{testRepository(uuid.New()), testRepository(uuid.New())}, nil)

		rr := doRequest(t, Router(mockSvc), http.MethodGet, "/repositories", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		var repos []map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &repos))
		assert.Len(t, repos, 2)
	})

	t.Run("empty list serializes as array", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)
		mockSvc.EXPECT().List(gomock.Any()).Return(nil, nil)

		rr := doRequest(t, Router(mockSvc), http.MethodGet, "/repositories", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)
		mockSvc.EXPECT().List(gomock.Any()).Return(nil, fmt.Errorf("pgx: connection refused"))

		rr := doRequest(t, Router(mockSvc), http.MethodGet, "/repositories", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Internal server error", decodeBody(t, rr)["error"])
	})
}

func TestSyncRepository(t *testing.T) {
	t.Parallel()
	repoID := uuid.New()

	tests := []struct {
		name       string
		path       string
		setupMocks func(*mocks.MockService)
		wantStatus int
	}{
		{
			name: "accepted",
			path: "/repository/" + repoID.String() + "/sync",
			setupMocks: func(m *mocks.MockService) {
				requeued := testRepository(repoID)
				requeued.JobName = model.JobMarkerSync
				m.EXPECT().Sync(gomock.Any(), repoID).Return(requeued, nil)
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "unknown repository",
			path: "/repository/" + repoID.String() + "/sync",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Sync(gomock.Any(), repoID).Return(nil, service.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed id",
			path:       "/repository/42/sync",
			setupMocks: func(*mocks.MockService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockSvc := mocks.NewMockService(ctrl)
			tt.setupMocks(mockSvc)

			rr := doRequest(t, Router(mockSvc), http.MethodPost, tt.path, "")
			assert.Equal(t, tt.wantStatus, rr.Code)

			if tt.wantStatus == http.StatusAccepted {
				body := decodeBody(t, rr)
				assert.Equal(t, model.JobMarkerSync, body["job_name"])
			}
		})
	}
}

func TestUpdateExpiration(t *testing.T) {
	t.Parallel()
	repoID := uuid.New()

	tests := []struct {
		name       string
		body       string
		setupMocks func(*mocks.MockService)
		wantStatus int
		wantError  string
	}{
		{
			name: "retention extended",
			body: `{"retention_days": 30}`,
			setupMocks: func(m *mocks.MockService) {
				updated := testRepository(repoID)
				updated.ExpiredAt = ptr.To(time.Date(2024, 12, 15, 10, 0, 0, 0, time.UTC))
				m.EXPECT().UpdateExpiration(gomock.Any(), repoID, 30).Return(updated, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "zero clears expiration",
			body: `{"retention_days": 0}`,
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().UpdateExpiration(gomock.Any(), repoID, 0).Return(testRepository(repoID), nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "negative rejected",
			body: `{"retention_days": -1}`,
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().UpdateExpiration(gomock.Any(), repoID, -1).
					Return(nil, fmt.Errorf("Invalid 'retention_days': %w", service.ErrInvalidInput))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Invalid 'retention_days'",
		},
		{
			name: "unknown repository",
			body: `{"retention_days": 30}`,
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().UpdateExpiration(gomock.Any(), repoID, 30).Return(nil, service.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed body",
			body:       `{"retention_days": "a lot"}`,
			setupMocks: func(*mocks.MockService) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockSvc := mocks.NewMockService(ctrl)
			tt.setupMocks(mockSvc)

			rr := doRequest(t, Router(mockSvc), http.MethodPut, "/repository/"+repoID.String()+"/expiration", tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Contains(t, decodeBody(t, rr)["error"], tt.wantError)
			}
		})
	}
}

func TestUpdateAutoSync(t *testing.T) {
	t.Parallel()
	repoID := uuid.New()

	t.Run("enable with schedule", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)

		updated := testRepository(repoID)
		updated.AutoSyncEnabled = true
		updated.AutoSyncSchedule = ptr.To("03:30")
		mockSvc.EXPECT().
			UpdateAutoSync(gomock.Any(), repoID, true, ptr.To("03:30")).
			Return(updated, nil)

		body := `{"auto_sync_enabled": true, "auto_sync_schedule": "03:30"}`
		rr := doRequest(t, Router(mockSvc), http.MethodPut, "/repository/"+repoID.String()+"/autosync", body)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeBody(t, rr)
		assert.Equal(t, true, resp["auto_sync_enabled"])
		assert.Equal(t, "03:30", resp["auto_sync_schedule"])
	})

	t.Run("disable discards schedule", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)

		mockSvc.EXPECT().
			UpdateAutoSync(gomock.Any(), repoID, false, nil).
			Return(testRepository(repoID), nil)

		body := `{"auto_sync_enabled": false}`
		rr := doRequest(t, Router(mockSvc), http.MethodPut, "/repository/"+repoID.String()+"/autosync", body)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("enable without schedule rejected", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)

		mockSvc.EXPECT().
			UpdateAutoSync(gomock.Any(), repoID, true, nil).
			Return(nil, fmt.Errorf("'auto_sync_schedule' is required: %w", service.ErrInvalidInput))

		body := `{"auto_sync_enabled": true}`
		rr := doRequest(t, Router(mockSvc), http.MethodPut, "/repository/"+repoID.String()+"/autosync", body)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, decodeBody(t, rr)["error"], "auto_sync_schedule")
	})
}

func TestDeleteRepository(t *testing.T) {
	t.Parallel()
	repoID := uuid.New()

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)
		mockSvc.EXPECT().Delete(gomock.Any(), repoID).Return(nil)

		rr := doRequest(t, Router(mockSvc), http.MethodDelete, "/repository/"+repoID.String(), "")

		assert.Equal(t, http.StatusAccepted, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, fmt.Sprintf("Deletion initiated for repository ID %s.", repoID), body["message"])
	})

	t.Run("unknown repository", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)
		mockSvc.EXPECT().Delete(gomock.Any(), repoID).Return(service.ErrNotFound)

		rr := doRequest(t, Router(mockSvc), http.MethodDelete, "/repository/"+repoID.String(), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGetRepositoryLogs(t *testing.T) {
	t.Parallel()
	repoID := uuid.New()

	t.Run("logs returned", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)
		mockSvc.EXPECT().GetLogs(gomock.Any(), repoID).Return("cloning...\ndone.", nil)

		rr := doRequest(t, Router(mockSvc), http.MethodGet, "/repository/"+repoID.String()+"/logs", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "cloning...\ndone.", decodeBody(t, rr)["logs"])
	})

	t.Run("unknown repository", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)
		mockSvc.EXPECT().GetLogs(gomock.Any(), repoID).Return("", service.ErrNotFound)

		rr := doRequest(t, Router(mockSvc), http.MethodGet, "/repository/"+repoID.String()+"/logs", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestExportRepositories(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockSvc := mocks.NewMockService(ctrl)

	mockSvc.EXPECT().Export(gomock.Any()).Return(&service.ExportResult{
		ExportedAt: time.Date(2024, 11, 15, 10, 0, 0, 0, time.UTC),
		Repositories: []service.ExportedRepository{
			{
				RepoURL:       "https://github.com/git/git.git",
				CommitID:      "deadbeefcafe0123",
				PVCPath:       "git-deadbeefcafe",
				RetentionDays: ptr.To(12),
			},
		},
	}, nil)

	rr := doRequest(t, Router(mockSvc), http.MethodGet, "/repositories/export", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "2024-11-15T10:00:00Z", body["exported_at"])
	repos, ok := body["repositories"].([]any)
	require.True(t, ok)
	require.Len(t, repos, 1)
	entry := repos[0].(map[string]any)
	assert.Equal(t, "git-deadbeefcafe", entry["pvc_path"])
	assert.Equal(t, float64(12), entry["retention_days"])
}

func TestImportRepositories(t *testing.T) {
	t.Parallel()

	t.Run("snapshot imported", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)

		mockSvc.EXPECT().
			Import(gomock.Any(), []service.ExportedRepository{
				{RepoURL: "https://github.com/git/git.git", CommitID: "deadbeefcafe0123", PVCPath: "git-deadbeefcafe"},
				{RepoURL: "https://github.com/golang/go.git", CommitID: "cafebabe12345678", PVCPath: "go-cafebabe1234"},
			}).
			Return(&service.ImportResult{
				Total:   2,
				Created: 1,
				Skipped: 1,
				Results: []service.ImportOutcome{
					{PVCPath: "git-deadbeefcafe", Status: service.ImportOutcomeSkipped, Message: "Already exists"},
					{PVCPath: "go-cafebabe1234", Status: service.ImportOutcomeCreated, Message: "Import initiated"},
				},
			}, nil)

		body := `{"repositories": [
			{"repo_url": "https://github.com/git/git.git", "commit_id": "deadbeefcafe0123", "pvc_path": "git-deadbeefcafe"},
			{"repo_url": "https://github.com/golang/go.git", "commit_id": "cafebabe12345678", "pvc_path": "go-cafebabe1234"}
		]}`
		rr := doRequest(t, Router(mockSvc), http.MethodPost, "/repositories/import", body)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeBody(t, rr)
		assert.Equal(t, float64(2), resp["total"])
		assert.Equal(t, float64(1), resp["created"])
		assert.Equal(t, float64(1), resp["skipped"])
		assert.Equal(t, float64(0), resp["errors"])
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)

		rr := doRequest(t, Router(mockSvc), http.MethodPost, "/repositories/import", `{"repositories": 7}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestOpenGrokStatus(t *testing.T) {
	t.Parallel()

	t.Run("inspector not wired", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)

		rr := doRequest(t, Router(mockSvc), http.MethodGet, "/opengrok/status", "")

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, decodeBody(t, rr)["error"], "kubernetes backend")
	})

	t.Run("report returned", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)
		mockInsp := indexermocks.NewMockInspector(ctrl)

		mockInsp.EXPECT().Status(gomock.Any()).Return(&indexer.StatusReport{
			DeploymentStatus: &indexer.DeploymentStatus{Name: "opengrok", Replicas: 2, ReadyReplicas: 2},
			PodStatuses: []indexer.PodStatus{
				{PodName: "opengrok-0", PodStatus: "Running", PodIP: "10.0.0.7", NodeName: "node-a"},
			},
		}, nil)

		rr := doRequest(t, Router(mockSvc, WithInspector(mockInsp)), http.MethodGet, "/opengrok/status", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		deployment := body["deployment_status"].(map[string]any)
		assert.Equal(t, "opengrok", deployment["name"])
		assert.Equal(t, float64(2), deployment["ready_replicas"])
		pods := body["pod_statuses"].([]any)
		require.Len(t, pods, 1)
		assert.Equal(t, "opengrok-0", pods[0].(map[string]any)["pod_name"])
	})

	t.Run("inspection failure", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		mockSvc := mocks.NewMockService(ctrl)
		mockInsp := indexermocks.NewMockInspector(ctrl)

		mockInsp.EXPECT().Status(gomock.Any()).Return(nil, fmt.Errorf("connection to API server lost"))

		rr := doRequest(t, Router(mockSvc, WithInspector(mockInsp)), http.MethodGet, "/opengrok/status", "")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestOpenGrokLogs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		inspector  bool
		setupMocks func(*indexermocks.MockInspector)
		wantStatus int
		wantLogs   string
		wantError  string
	}{
		{
			name:       "inspector not wired",
			path:       "/opengrok/logs?pod_name=opengrok-0",
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "kubernetes backend",
		},
		{
			name:       "missing pod name",
			path:       "/opengrok/logs",
			inspector:  true,
			setupMocks: func(*indexermocks.MockInspector) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "pod_name query parameter is required",
		},
		{
			name:       "malformed tail_lines",
			path:       "/opengrok/logs?pod_name=opengrok-0&tail_lines=many",
			inspector:  true,
			setupMocks: func(*indexermocks.MockInspector) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "tail_lines",
		},
		{
			name:      "default tail",
			path:      "/opengrok/logs?pod_name=opengrok-0",
			inspector: true,
			setupMocks: func(m *indexermocks.MockInspector) {
				m.EXPECT().PodLogs(gomock.Any(), "opengrok-0", int64(500)).Return("indexing...", nil)
			},
			wantStatus: http.StatusOK,
			wantLogs:   "indexing...",
		},
		{
			name:      "custom tail",
			path:      "/opengrok/logs?pod_name=opengrok-0&tail_lines=50",
			inspector: true,
			setupMocks: func(m *indexermocks.MockInspector) {
				m.EXPECT().PodLogs(gomock.Any(), "opengrok-0", int64(50)).Return("indexing...", nil)
			},
			wantStatus: http.StatusOK,
			wantLogs:   "indexing...",
		},
		{
			name:      "fetch failure",
			path:      "/opengrok/logs?pod_name=opengrok-0",
			inspector: true,
			setupMocks: func(m *indexermocks.MockInspector) {
				m.EXPECT().PodLogs(gomock.Any(), "opengrok-0", int64(500)).
					Return("", fmt.Errorf("pods \"opengrok-0\" not found"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockSvc := mocks.NewMockService(ctrl)

			var opts []RoutesOption
			if tt.inspector {
				mockInsp := indexermocks.NewMockInspector(ctrl)
				tt.setupMocks(mockInsp)
				opts = append(opts, WithInspector(mockInsp))
			}

			rr := doRequest(t, Router(mockSvc, opts...), http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decodeBody(t, rr)
			if tt.wantLogs != "" {
				assert.Equal(t, tt.wantLogs, body["logs"])
			}
			if tt.wantError != "" {
				assert.Contains(t, body["error"], tt.wantError)
			}
		})
	}
}
