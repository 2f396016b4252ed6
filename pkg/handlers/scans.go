package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/apperrors"
	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/services"
)

// TriggerScanRequest for POST body.
type TriggerScanRequest struct {
	DatasourceID string `json:"datasource_id"`
}

// ScansHandler handles scan-related HTTP requests.
type ScansHandler struct {
	scanService services.ScanService
	logger      *zap.Logger
}

// NewScansHandler creates a new scans handler.
func NewScansHandler(scanService services.ScanService, logger *zap.Logger) *ScansHandler {
	return &ScansHandler{
		scanService: scanService,
		logger:      logger,
	}
}

// RegisterRoutes registers the scans handler's routes on the given mux.
func (h *ScansHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST /api/projects/{pid}/scans",
		authMiddleware.RequireAuthWithPathValidation("pid")(
			auth.RequireRole(models.RoleAdmin, models.RoleAnalyst)(tenantMiddleware(h.Trigger))))
	mux.HandleFunc("GET /api/projects/{pid}/scans",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.List)))
	mux.HandleFunc("GET /api/projects/{pid}/scans/{sid}",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Get)))
}

// Trigger handles POST /api/projects/{pid}/scans
// Queues a scan against a datasource. At most one scan per datasource may
// be in flight; a second trigger returns 409.
func (h *ScansHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req TriggerScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	datasourceID, err := uuid.Parse(req.DatasourceID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_datasource_id", "Invalid datasource ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	job, err := h.scanService.Trigger(r.Context(), projectID, datasourceID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Datasource not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if errors.Is(err, apperrors.ErrScanInProgress) {
			if err := ErrorResponse(w, http.StatusConflict, "scan_in_progress", "A scan is already running for this datasource"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to trigger scan",
			zap.String("project_id", projectID.String()),
			zap.String("datasource_id", datasourceID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "trigger_failed", "Failed to trigger scan"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: job}
	if err := WriteJSON(w, http.StatusAccepted, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/projects/{pid}/scans
// Returns recent scans for the project, newest first. The optional limit
// query parameter caps the result count.
func (h *ScansHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	limit := 0
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}

	jobs, err := h.scanService.List(r.Context(), projectID, limit)
	if err != nil {
		h.logger.Error("Failed to list scans",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list scans"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: map[string]any{"scans": jobs}}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/projects/{pid}/scans/{sid}
// Returns a single scan job by ID.
func (h *ScansHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	scanID, ok := ParseScanID(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.scanService.Get(r.Context(), projectID, scanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Scan not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get scan",
			zap.String("project_id", projectID.String()),
			zap.String("scan_id", scanID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get scan"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: job}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
