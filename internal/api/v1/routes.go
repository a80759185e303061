// Package v1 provides the REST API handlers for the repository lifecycle.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crpaas/repo-custodian/internal/api/common"
	"github.com/crpaas/repo-custodian/internal/indexer"
	"github.com/crpaas/repo-custodian/internal/model"
	"github.com/crpaas/repo-custodian/internal/service"
)

// defaultLogTailLines is how much pod output /opengrok/logs returns when
// the caller does not say otherwise.
const defaultLogTailLines = int64(500)

// AppConfig is the subset of server configuration exposed to clients.
type AppConfig struct {
	OpenGrokBaseURL string `json:"opengrok_base_url"`
}

// JobLogs carries the transcript of a repository's last or current task.
type JobLogs struct {
	Logs string `json:"logs"`
}

// UpdateExpirationRequest adjusts automatic retirement. Zero retention
// days keeps the repository indefinitely.
type UpdateExpirationRequest struct {
	RetentionDays int `json:"retention_days"`
}

// UpdateAutoSyncRequest turns the daily re-sync on or off.
type UpdateAutoSyncRequest struct {
	AutoSyncEnabled  bool    `json:"auto_sync_enabled"`
	AutoSyncSchedule *string `json:"auto_sync_schedule"`
}

// ImportRequest is a snapshot of repository definitions to recreate.
type ImportRequest struct {
	Repositories []service.ExportedRepository `json:"repositories"`
}

// RoutesOption configures optional dependencies of the route handlers.
type RoutesOption func(*Routes)

// WithInspector wires the OpenGrok deployment inspector. The /opengrok
// endpoints answer 503 without it.
func WithInspector(insp indexer.Inspector) RoutesOption {
	return func(routes *Routes) {
		routes.inspector = insp
	}
}

// WithOpenGrokBaseURL sets the browse URL handed out through /config.
func WithOpenGrokBaseURL(baseURL string) RoutesOption {
	return func(routes *Routes) {
		routes.opengrokBaseURL = baseURL
	}
}

// Routes handles HTTP requests for the repository lifecycle API.
type Routes struct {
	service         service.Service
	inspector       indexer.Inspector
	opengrokBaseURL string
}

// NewRoutes creates a new Routes instance with the given service.
func NewRoutes(svc service.Service, opts ...RoutesOption) *Routes {
	routes := &Routes{
		service: svc,
	}
	for _, opt := range opts {
		opt(routes)
	}
	return routes
}

// Router creates and configures the HTTP router for the lifecycle API.
func Router(svc service.Service, opts ...RoutesOption) http.Handler {
	routes := NewRoutes(svc, opts...)

	r := chi.NewRouter()

	r.Get("/config", routes.getConfig)

	r.Post("/repository", routes.createRepository)
	r.Route("/repository/{id}", func(r chi.Router) {
		r.Post("/sync", routes.syncRepository)
		r.Put("/expiration", routes.updateExpiration)
		r.Put("/autosync", routes.updateAutoSync)
		r.Delete("/", routes.deleteRepository)
		r.Get("/logs", routes.getRepositoryLogs)
	})

	r.Get("/repositories", routes.listRepositories)
	r.Get("/repositories/export", routes.exportRepositories)
	r.Post("/repositories/import", routes.importRepositories)

	r.Get("/opengrok/status", routes.getOpenGrokStatus)
	r.Get("/opengrok/logs", routes.getOpenGrokLogs)

	return r
}

// getConfig handles GET /api/v1/config
func (routes *Routes) getConfig(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, AppConfig{OpenGrokBaseURL: routes.opengrokBaseURL}, http.StatusOK)
}

// createRepository handles POST /api/v1/repository
//
// A duplicate URL and commit pair answers 200 with the record that
// already manages it; a clone directory name owned by another record
// answers 409.
func (routes *Routes) createRepository(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	repo, err := routes.service.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyExists) {
			common.WriteJSONResponse(w, repo, http.StatusOK)
			return
		}
		writeServiceError(w, err)
		return
	}

	common.WriteJSONResponse(w, repo, http.StatusAccepted)
}

// listRepositories handles GET /api/v1/repositories
func (routes *Routes) listRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := routes.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if repos == nil {
		repos = []*model.Repository{}
	}
	common.WriteJSONResponse(w, repos, http.StatusOK)
}

// syncRepository handles POST /api/v1/repository/{id}/sync
func (routes *Routes) syncRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := repositoryID(w, r)
	if !ok {
		return
	}

	repo, err := routes.service.Sync(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	common.WriteJSONResponse(w, repo, http.StatusAccepted)
}

// updateExpiration handles PUT /api/v1/repository/{id}/expiration
func (routes *Routes) updateExpiration(w http.ResponseWriter, r *http.Request) {
	id, ok := repositoryID(w, r)
	if !ok {
		return
	}

	var req UpdateExpirationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	repo, err := routes.service.UpdateExpiration(r.Context(), id, req.RetentionDays)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	common.WriteJSONResponse(w, repo, http.StatusOK)
}

// updateAutoSync handles PUT /api/v1/repository/{id}/autosync
func (routes *Routes) updateAutoSync(w http.ResponseWriter, r *http.Request) {
	id, ok := repositoryID(w, r)
	if !ok {
		return
	}

	var req UpdateAutoSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	repo, err := routes.service.UpdateAutoSync(r.Context(), id, req.AutoSyncEnabled, req.AutoSyncSchedule)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	common.WriteJSONResponse(w, repo, http.StatusOK)
}

// deleteRepository handles DELETE /api/v1/repository/{id}
func (routes *Routes) deleteRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := repositoryID(w, r)
	if !ok {
		return
	}

	if err := routes.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	ack := map[string]string{
		"message": fmt.Sprintf("Deletion initiated for repository ID %s.", id),
	}
	common.WriteJSONResponse(w, ack, http.StatusAccepted)
}

// getRepositoryLogs handles GET /api/v1/repository/{id}/logs
func (routes *Routes) getRepositoryLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := repositoryID(w, r)
	if !ok {
		return
	}

	logs, err := routes.service.GetLogs(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	common.WriteJSONResponse(w, JobLogs{Logs: logs}, http.StatusOK)
}

// exportRepositories handles GET /api/v1/repositories/export
func (routes *Routes) exportRepositories(w http.ResponseWriter, r *http.Request) {
	result, err := routes.service.Export(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	common.WriteJSONResponse(w, result, http.StatusOK)
}

// importRepositories handles POST /api/v1/repositories/import
func (routes *Routes) importRepositories(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := routes.service.Import(r.Context(), req.Repositories)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	common.WriteJSONResponse(w, result, http.StatusOK)
}

// getOpenGrokStatus handles GET /api/v1/opengrok/status
func (routes *Routes) getOpenGrokStatus(w http.ResponseWriter, r *http.Request) {
	if routes.inspector == nil {
		common.WriteErrorResponse(w, "OpenGrok inspection requires the kubernetes backend", http.StatusServiceUnavailable)
		return
	}

	report, err := routes.inspector.Status(r.Context())
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, report, http.StatusOK)
}

// getOpenGrokLogs handles GET /api/v1/opengrok/logs
func (routes *Routes) getOpenGrokLogs(w http.ResponseWriter, r *http.Request) {
	if routes.inspector == nil {
		common.WriteErrorResponse(w, "OpenGrok inspection requires the kubernetes backend", http.StatusServiceUnavailable)
		return
	}

	podName := r.URL.Query().Get("pod_name")
	if strings.TrimSpace(podName) == "" {
		common.WriteErrorResponse(w, "pod_name query parameter is required", http.StatusBadRequest)
		return
	}

	tailLines := defaultLogTailLines
	if raw := r.URL.Query().Get("tail_lines"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			common.WriteErrorResponse(w, "Invalid tail_lines parameter: must be a positive integer", http.StatusBadRequest)
			return
		}
		tailLines = parsed
	}

	logs, err := routes.inspector.PodLogs(r.Context(), podName, tailLines)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, JobLogs{Logs: logs}, http.StatusOK)
}

// repositoryID parses the {id} route parameter, answering 400 itself when
// the value is not a UUID.
func repositoryID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		common.WriteErrorResponse(w, "Invalid repository ID: must be a UUID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps the service error taxonomy onto status codes.
// Sentinel errors carry user-facing text; anything else is masked.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidInput):
		common.WriteErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrPathConflict):
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
	default:
		common.WriteErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}
