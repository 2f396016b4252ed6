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

	"github.com/sentra-security/sentra-engine/pkg/apperrors"
	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/tabulate"
)

func TestFindingsHandler_List_Success(t *testing.T) {
	projectID := uuid.New()
	service := &mockFindingService{
		view: &tabulate.View{
			Slice:      []*models.Finding{{ID: uuid.New(), RiskLevel: models.RiskHigh}},
			Total:      1,
			Filtered:   1,
			TotalPages: 1,
			Distinct:   map[string][]string{"risk_level": {"High"}},
		},
	}
	handler := NewFindingsHandler(service, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/findings", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Success bool          `json:"success"`
		Data    tabulate.View `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Data.Total != 1 {
		t.Errorf("expected total 1, got %d", resp.Data.Total)
	}
	if len(resp.Data.Slice) != 1 {
		t.Errorf("expected 1 finding, got %d", len(resp.Data.Slice))
	}
}

func TestFindingsHandler_List_QueryParams(t *testing.T) {
	service := &mockFindingService{}
	handler := NewFindingsHandler(service, zap.NewNop())

	projectID := uuid.New()
	url := "/api/projects/" + projectID.String() +
		"/findings?risk_level=High&data_store=analytics-db&q=email&sort=confidence&dir=asc&page=3&page_size=25"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	q := service.capturedQuery
	if q.Filters[tabulate.FieldRiskLevel] != "High" {
		t.Errorf("expected risk_level filter High, got %q", q.Filters[tabulate.FieldRiskLevel])
	}
	if q.Filters[tabulate.FieldDataStore] != "analytics-db" {
		t.Errorf("expected data_store filter, got %q", q.Filters[tabulate.FieldDataStore])
	}
	if q.Search != "email" {
		t.Errorf("expected search 'email', got %q", q.Search)
	}
	if q.Sort.Key != "confidence" || q.Sort.Direction != tabulate.Ascending {
		t.Errorf("expected confidence asc, got %s %s", q.Sort.Key, q.Sort.Direction)
	}
	if q.Page.Number != 3 || q.Page.Size != 25 {
		t.Errorf("expected page 3 size 25, got %d %d", q.Page.Number, q.Page.Size)
	}
}

func TestFindingsHandler_List_Defaults(t *testing.T) {
	service := &mockFindingService{}
	handler := NewFindingsHandler(service, zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/findings", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.List(rec, req)

	q := service.capturedQuery
	if q.Sort != tabulate.DefaultSort {
		t.Errorf("expected default sort, got %+v", q.Sort)
	}
	if q.Page.Number != 1 || q.Page.Size != defaultPageSize {
		t.Errorf("expected page 1 size %d, got %d %d", defaultPageSize, q.Page.Number, q.Page.Size)
	}
	if len(q.Filters) != 0 {
		t.Errorf("expected no filters, got %v", q.Filters)
	}
}

func TestFindingsHandler_List_InvalidProjectID(t *testing.T) {
	handler := NewFindingsHandler(&mockFindingService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/projects/not-a-uuid/findings", nil)
	req.SetPathValue("pid", "not-a-uuid")

	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestFindingsHandler_List_ServiceError(t *testing.T) {
	service := &mockFindingService{err: errors.New("database error")}
	handler := NewFindingsHandler(service, zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/findings", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}

func TestFindingsHandler_Get_NotFound(t *testing.T) {
	service := &mockFindingService{err: apperrors.ErrNotFound}
	handler := NewFindingsHandler(service, zap.NewNop())

	projectID := uuid.New()
	findingID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/findings/"+findingID.String(), nil)
	req.SetPathValue("pid", projectID.String())
	req.SetPathValue("fid", findingID.String())

	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestFindingsHandler_Distinct_Success(t *testing.T) {
	service := &mockFindingService{
		distinct: map[string][]string{
			"risk_level": {"High", "Low", "Medium"},
			"status":     {"Active", "Resolved"},
		},
	}
	handler := NewFindingsHandler(service, zap.NewNop())

	projectID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/findings/distinct", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Distinct(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Data map[string][]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Data["risk_level"]) != 3 {
		t.Errorf("expected 3 risk levels, got %v", resp.Data["risk_level"])
	}
}

func TestFindingsHandler_UpdateStatus_Success(t *testing.T) {
	service := &mockFindingService{}
	handler := NewFindingsHandler(service, zap.NewNop())

	projectID := uuid.New()
	findingID := uuid.New()
	body := bytes.NewBufferString(`{"status":"Resolved"}`)
	req := httptest.NewRequest(http.MethodPatch,
		"/api/projects/"+projectID.String()+"/findings/"+findingID.String()+"/status", body)
	req.SetPathValue("pid", projectID.String())
	req.SetPathValue("fid", findingID.String())

	rec := httptest.NewRecorder()
	handler.UpdateStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if service.capturedStatus != "Resolved" {
		t.Errorf("expected status Resolved, got %q", service.capturedStatus)
	}
}

func TestFindingsHandler_UpdateStatus_MissingStatus(t *testing.T) {
	service := &mockFindingService{}
	handler := NewFindingsHandler(service, zap.NewNop())

	projectID := uuid.New()
	findingID := uuid.New()
	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPatch,
		"/api/projects/"+projectID.String()+"/findings/"+findingID.String()+"/status", body)
	req.SetPathValue("pid", projectID.String())
	req.SetPathValue("fid", findingID.String())

	rec := httptest.NewRecorder()
	handler.UpdateStatus(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if service.capturedStatus != "" {
		t.Error("should not have called service for empty status")
	}
}

func TestFindingsHandler_UpdateStatus_InvalidBody(t *testing.T) {
	handler := NewFindingsHandler(&mockFindingService{}, zap.NewNop())

	projectID := uuid.New()
	findingID := uuid.New()
	body := bytes.NewBufferString(`not json`)
	req := httptest.NewRequest(http.MethodPatch,
		"/api/projects/"+projectID.String()+"/findings/"+findingID.String()+"/status", body)
	req.SetPathValue("pid", projectID.String())
	req.SetPathValue("fid", findingID.String())

	rec := httptest.NewRecorder()
	handler.UpdateStatus(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestFindingsHandler_UpdateStatus_NotFound(t *testing.T) {
	service := &mockFindingService{err: apperrors.ErrNotFound}
	handler := NewFindingsHandler(service, zap.NewNop())

	projectID := uuid.New()
	findingID := uuid.New()
	body := bytes.NewBufferString(`{"status":"Resolved"}`)
	req := httptest.NewRequest(http.MethodPatch,
		"/api/projects/"+projectID.String()+"/findings/"+findingID.String()+"/status", body)
	req.SetPathValue("pid", projectID.String())
	req.SetPathValue("fid", findingID.String())

	rec := httptest.NewRecorder()
	handler.UpdateStatus(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}
