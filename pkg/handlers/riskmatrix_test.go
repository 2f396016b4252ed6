package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/config"
	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/services"
)

func testMatrixConfig() config.MatrixConfig {
	return config.MatrixConfig{Width: 420, Height: 360, Padding: 40}
}

func TestRiskMatrixHandler_Matrix_Success(t *testing.T) {
	service := &mockRiskMatrixService{
		view: &services.MatrixView{
			Width:  420,
			Height: 360,
			Entities: []*models.MatrixEntity{
				{Name: "analytics-db", Likelihood: models.LikelihoodHigh, Impact: models.ImpactHigh, X: 100, Y: 50, Radius: 8},
			},
		},
	}
	handler := NewRiskMatrixHandler(service, testMatrixConfig(), zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/risk-matrix", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Matrix(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Success bool                `json:"success"`
		Data    services.MatrixView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Data.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(resp.Data.Entities))
	}
	if resp.Data.Entities[0].Name != "analytics-db" {
		t.Errorf("expected analytics-db, got %q", resp.Data.Entities[0].Name)
	}
}

func TestRiskMatrixHandler_Matrix_DefaultDimensions(t *testing.T) {
	service := &mockRiskMatrixService{}
	handler := NewRiskMatrixHandler(service, testMatrixConfig(), zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/risk-matrix", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Matrix(rec, req)

	if service.capturedWidth != 420 || service.capturedHeight != 360 {
		t.Errorf("expected configured dimensions 420x360, got %.0fx%.0f",
			service.capturedWidth, service.capturedHeight)
	}
}

func TestRiskMatrixHandler_Matrix_DimensionOverride(t *testing.T) {
	service := &mockRiskMatrixService{}
	handler := NewRiskMatrixHandler(service, testMatrixConfig(), zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/projects/"+projectID.String()+"/risk-matrix?width=800&height=600", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Matrix(rec, req)

	if service.capturedWidth != 800 || service.capturedHeight != 600 {
		t.Errorf("expected 800x600, got %.0fx%.0f", service.capturedWidth, service.capturedHeight)
	}
}

func TestRiskMatrixHandler_Matrix_ServiceError(t *testing.T) {
	service := &mockRiskMatrixService{err: errors.New("database error")}
	handler := NewRiskMatrixHandler(service, testMatrixConfig(), zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/risk-matrix", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Matrix(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}

func TestRiskMatrixHandler_Hit_Found(t *testing.T) {
	service := &mockRiskMatrixService{
		entity: &models.MatrixEntity{Name: "analytics-db", X: 100, Y: 50, Radius: 8},
	}
	handler := NewRiskMatrixHandler(service, testMatrixConfig(), zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/projects/"+projectID.String()+"/risk-matrix/hit?x=101&y=52", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Hit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if service.capturedX != 101 || service.capturedY != 52 {
		t.Errorf("expected coordinates (101, 52), got (%.0f, %.0f)", service.capturedX, service.capturedY)
	}

	var resp struct {
		Data *models.MatrixEntity `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Data == nil || resp.Data.Name != "analytics-db" {
		t.Errorf("expected analytics-db hit, got %+v", resp.Data)
	}
}

func TestRiskMatrixHandler_Hit_Miss(t *testing.T) {
	service := &mockRiskMatrixService{}
	handler := NewRiskMatrixHandler(service, testMatrixConfig(), zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/projects/"+projectID.String()+"/risk-matrix/hit?x=0&y=0", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Hit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Success bool                 `json:"success"`
		Data    *models.MatrixEntity `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success=true on a miss")
	}
	if resp.Data != nil {
		t.Errorf("expected null data on a miss, got %+v", resp.Data)
	}
}

func TestRiskMatrixHandler_Hit_InvalidCoordinates(t *testing.T) {
	handler := NewRiskMatrixHandler(&mockRiskMatrixService{}, testMatrixConfig(), zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/projects/"+projectID.String()+"/risk-matrix/hit?x=abc&y=0", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Hit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestRiskMatrixHandler_Report_Success(t *testing.T) {
	service := &mockRiskMatrixService{pdf: []byte("%PDF-1.3 fake report")}
	handler := NewRiskMatrixHandler(service, testMatrixConfig(), zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/projects/"+projectID.String()+"/risk-matrix/report", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Report(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("expected PDF body")
	}
}

func TestRiskMatrixHandler_Report_ServiceError(t *testing.T) {
	service := &mockRiskMatrixService{err: errors.New("database error")}
	handler := NewRiskMatrixHandler(service, testMatrixConfig(), zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/projects/"+projectID.String()+"/risk-matrix/report", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Report(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct == "application/pdf" {
		t.Error("error response should not claim to be a PDF")
	}
}
