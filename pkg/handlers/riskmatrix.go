package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/config"
	"github.com/sentra-security/sentra-engine/pkg/services"
)

// RiskMatrixHandler serves the laid-out risk matrix, hit-tests and the
// PDF report.
type RiskMatrixHandler struct {
	matrixService services.RiskMatrixService
	cfg           config.MatrixConfig
	logger        *zap.Logger
}

// NewRiskMatrixHandler creates a new risk matrix handler.
func NewRiskMatrixHandler(matrixService services.RiskMatrixService, cfg config.MatrixConfig, logger *zap.Logger) *RiskMatrixHandler {
	return &RiskMatrixHandler{
		matrixService: matrixService,
		cfg:           cfg,
		logger:        logger,
	}
}

// RegisterRoutes registers the risk matrix handler's routes on the given mux.
func (h *RiskMatrixHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/risk-matrix",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Matrix)))
	mux.HandleFunc("GET /api/projects/{pid}/risk-matrix/hit",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Hit)))
	mux.HandleFunc("GET /api/projects/{pid}/risk-matrix/report",
		authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(h.Report)))
}

// dimensions reads width/height overrides from the query, falling back to
// the configured defaults. Non-positive or unparseable values are ignored.
func (h *RiskMatrixHandler) dimensions(r *http.Request) (width, height float64) {
	width = h.cfg.Width
	height = h.cfg.Height
	if v, err := strconv.ParseFloat(r.URL.Query().Get("width"), 64); err == nil && v > 0 {
		width = v
	}
	if v, err := strconv.ParseFloat(r.URL.Query().Get("height"), 64); err == nil && v > 0 {
		height = v
	}
	return width, height
}

// Matrix handles GET /api/projects/{pid}/risk-matrix
// Returns the laid-out entities for the project's current findings.
func (h *RiskMatrixHandler) Matrix(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	width, height := h.dimensions(r)
	view, err := h.matrixService.Matrix(r.Context(), projectID, width, height)
	if err != nil {
		h.logger.Error("Failed to build risk matrix",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to build risk matrix"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := ApiResponse{Success: true, Data: view}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Hit handles GET /api/projects/{pid}/risk-matrix/hit?x=&y=
// Returns the entity whose marker contains the point, or null.
func (h *RiskMatrixHandler) Hit(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	params := r.URL.Query()
	x, errX := strconv.ParseFloat(params.Get("x"), 64)
	y, errY := strconv.ParseFloat(params.Get("y"), 64)
	if errX != nil || errY != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_coordinates", "Query parameters x and y must be numbers"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	width, height := h.dimensions(r)
	entity, err := h.matrixService.Locate(r.Context(), projectID, x, y, width, height)
	if err != nil {
		h.logger.Error("Failed to hit-test risk matrix",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to hit-test risk matrix"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	// entity is nil on a miss; the envelope still reports success
	response := ApiResponse{Success: true, Data: entity}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Report handles GET /api/projects/{pid}/risk-matrix/report
// Streams a PDF rendering of the matrix.
func (h *RiskMatrixHandler) Report(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	title := r.URL.Query().Get("title")
	if title == "" {
		title = "Data Risk Matrix"
	}

	width, height := h.dimensions(r)

	// Render to a buffer first so failures can still produce an error response
	var buf bytes.Buffer
	if err := h.matrixService.Report(r.Context(), &buf, projectID, title, width, height); err != nil {
		h.logger.Error("Failed to render risk matrix report",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "report_failed", "Failed to render risk matrix report"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="risk-matrix.pdf"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("Failed to write risk matrix report", zap.Error(err))
	}
}
