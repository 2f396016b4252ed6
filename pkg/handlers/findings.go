package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/apperrors"
	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/services"
	"github.com/sentra-security/sentra-engine/pkg/tabulate"
)

// Default page size when the request names none. Mirrors the table UI.
const defaultPageSize = 10

// UpdateFindingStatusRequest for PATCH status body.
type UpdateFindingStatusRequest struct {
	Status string `json:"status"`
}

// FindingsHandler handles finding-related HTTP requests.
type FindingsHandler struct {
	findingService services.FindingService
	logger         *zap.Logger
}

// NewFindingsHandler creates a new findings handler.
func NewFindingsHandler(findingService services.FindingService, logger *zap.Logger) *FindingsHandler {
	return &FindingsHandler{
		findingService: findingService,
		logger:         logger,
	}
}

// RegisterRoutes registers the findings handler's routes on the given mux.
func (h *FindingsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/findings",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.List)))
	mux.HandleFunc("GET /api/projects/{pid}/findings/distinct",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Distinct)))
	mux.HandleFunc("GET /api/projects/{pid}/findings/{fid}",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Get)))
	mux.HandleFunc("PATCH /api/projects/{pid}/findings/{fid}/status",
		authMiddleware.RequireAuthWithPathValidation("pid")(
			auth.RequireRole(models.RoleAdmin, models.RoleAnalyst)(tenantMiddleware(h.UpdateStatus))))
}

// queryFromRequest builds the table query from URL parameters.
// Filter parameters use the field names the table schema exposes; absent
// parameters leave the corresponding stage of the pipeline inactive.
func queryFromRequest(r *http.Request) tabulate.Query {
	params := r.URL.Query()

	filters := tabulate.FilterSpec{}
	for _, field := range tabulate.FilterableFields() {
		if v := params.Get(field); v != "" {
			filters[field] = v
		}
	}

	sort := tabulate.DefaultSort
	if key := params.Get("sort"); key != "" {
		sort.Key = key
		sort.Direction = tabulate.Descending
		if params.Get("dir") == string(tabulate.Ascending) {
			sort.Direction = tabulate.Ascending
		}
	}

	page := tabulate.PageSpec{Number: 1, Size: defaultPageSize}
	if n, err := strconv.Atoi(params.Get("page")); err == nil && n > 0 {
		page.Number = n
	}
	if s, err := strconv.Atoi(params.Get("page_size")); err == nil && s > 0 {
		page.Size = s
	}

	return tabulate.Query{
		Filters: filters,
		Search:  params.Get("q"),
		Sort:    sort,
		Page:    page,
	}
}

// List handles GET /api/projects/{pid}/findings
// Runs the filter/search/sort/paginate pipeline and returns one table view.
func (h *FindingsHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	view, err := h.findingService.ListView(r.Context(), projectID, queryFromRequest(r))
	if err != nil {
		h.logger.Error("Failed to list findings",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list findings"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: view}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/projects/{pid}/findings/{fid}
// Returns a single finding by ID.
func (h *FindingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	findingID, ok := ParseFindingID(w, r, h.logger)
	if !ok {
		return
	}

	finding, err := h.findingService.Get(r.Context(), projectID, findingID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Finding not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get finding",
			zap.String("project_id", projectID.String()),
			zap.String("finding_id", findingID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get finding"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: finding}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Distinct handles GET /api/projects/{pid}/findings/distinct
// Returns the filter dropdown options for the project.
func (h *FindingsHandler) Distinct(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	distinct, err := h.findingService.DistinctValues(r.Context(), projectID)
	if err != nil {
		h.logger.Error("Failed to compute distinct values",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to compute distinct values"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: distinct}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateStatus handles PATCH /api/projects/{pid}/findings/{fid}/status
// Changes the triage status of a finding.
func (h *FindingsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	findingID, ok := ParseFindingID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateFindingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.Status == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_status", "Finding status is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	updatedBy := auth.GetUserIDFromContext(r.Context())

	if err := h.findingService.UpdateStatus(r.Context(), projectID, findingID, req.Status, updatedBy); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Finding not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to update finding status",
			zap.String("project_id", projectID.String()),
			zap.String("finding_id", findingID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "update_failed", "Failed to update finding status"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: map[string]string{
		"finding_id": findingID.String(),
		"status":     req.Status,
	}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
