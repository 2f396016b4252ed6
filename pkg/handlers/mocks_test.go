package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/services"
	"github.com/sentra-security/sentra-engine/pkg/tabulate"
)

// mockDatasourceService is a configurable mock for datasource handler tests.
type mockDatasourceService struct {
	datasource  *models.Datasource
	datasources []*models.Datasource
	err         error
}

func (m *mockDatasourceService) Create(ctx context.Context, projectID uuid.UUID, name, dsType string, config map[string]any) (*models.Datasource, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.datasource != nil {
		return m.datasource, nil
	}
	return &models.Datasource{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Name:           name,
		DatasourceType: dsType,
		Config:         config,
	}, nil
}

func (m *mockDatasourceService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.Datasource, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.datasource != nil {
		return m.datasource, nil
	}
	return &models.Datasource{
		ID:             id,
		ProjectID:      projectID,
		Name:           "Test DB",
		DatasourceType: "postgres",
		Config:         map[string]any{"host": "localhost"},
	}, nil
}

func (m *mockDatasourceService) List(ctx context.Context, projectID uuid.UUID) ([]*models.Datasource, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.datasources != nil {
		return m.datasources, nil
	}
	return []*models.Datasource{}, nil
}

func (m *mockDatasourceService) Update(ctx context.Context, projectID, id uuid.UUID, name, dsType string, config map[string]any) error {
	return m.err
}

func (m *mockDatasourceService) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	return m.err
}

// mockFindingService is a configurable mock for finding handler tests.
type mockFindingService struct {
	view     *tabulate.View
	finding  *models.Finding
	distinct map[string][]string
	err      error

	capturedQuery  tabulate.Query
	capturedStatus string
}

func (m *mockFindingService) ListView(ctx context.Context, projectID uuid.UUID, q tabulate.Query) (*tabulate.View, error) {
	m.capturedQuery = q
	if m.err != nil {
		return nil, m.err
	}
	if m.view != nil {
		return m.view, nil
	}
	return &tabulate.View{Slice: []*models.Finding{}, Distinct: map[string][]string{}}, nil
}

func (m *mockFindingService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.Finding, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.finding != nil {
		return m.finding, nil
	}
	return &models.Finding{ID: id, ProjectID: projectID}, nil
}

func (m *mockFindingService) UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status, updatedBy string) error {
	m.capturedStatus = status
	return m.err
}

func (m *mockFindingService) DistinctValues(ctx context.Context, projectID uuid.UUID) (map[string][]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.distinct != nil {
		return m.distinct, nil
	}
	return map[string][]string{}, nil
}

// mockRiskMatrixService is a configurable mock for risk matrix handler tests.
type mockRiskMatrixService struct {
	view   *services.MatrixView
	entity *models.MatrixEntity
	pdf    []byte
	err    error

	capturedWidth  float64
	capturedHeight float64
	capturedX      float64
	capturedY      float64
}

func (m *mockRiskMatrixService) Matrix(ctx context.Context, projectID uuid.UUID, width, height float64) (*services.MatrixView, error) {
	m.capturedWidth = width
	m.capturedHeight = height
	if m.err != nil {
		return nil, m.err
	}
	if m.view != nil {
		return m.view, nil
	}
	return &services.MatrixView{Width: width, Height: height}, nil
}

func (m *mockRiskMatrixService) Locate(ctx context.Context, projectID uuid.UUID, x, y, width, height float64) (*models.MatrixEntity, error) {
	m.capturedX = x
	m.capturedY = y
	if m.err != nil {
		return nil, m.err
	}
	return m.entity, nil
}

func (m *mockRiskMatrixService) Report(ctx context.Context, w io.Writer, projectID uuid.UUID, title string, width, height float64) error {
	if m.err != nil {
		return m.err
	}
	if m.pdf == nil {
		m.pdf = []byte("%PDF-1.3 test")
	}
	_, err := w.Write(m.pdf)
	return err
}

// mockScanService is a configurable mock for scan handler tests.
type mockScanService struct {
	job  *models.ScanJob
	jobs []*models.ScanJob
	err  error

	capturedDatasourceID uuid.UUID
	capturedLimit        int
}

func (m *mockScanService) Trigger(ctx context.Context, projectID, datasourceID uuid.UUID) (*models.ScanJob, error) {
	m.capturedDatasourceID = datasourceID
	if m.err != nil {
		return nil, m.err
	}
	if m.job != nil {
		return m.job, nil
	}
	return &models.ScanJob{
		ID:           uuid.New(),
		ProjectID:    projectID,
		DatasourceID: datasourceID,
		Status:       models.ScanQueued,
	}, nil
}

func (m *mockScanService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.ScanJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.job != nil {
		return m.job, nil
	}
	return &models.ScanJob{ID: id, ProjectID: projectID, Status: models.ScanCompleted}, nil
}

func (m *mockScanService) List(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.ScanJob, error) {
	m.capturedLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if m.jobs != nil {
		return m.jobs, nil
	}
	return []*models.ScanJob{}, nil
}

// mockUserService is a configurable mock for users handler tests.
type mockUserService struct {
	users []*models.User
	err   error

	capturedUserID uuid.UUID
	capturedEmail  string
	capturedRole   string
}

func (m *mockUserService) Add(ctx context.Context, projectID, userID uuid.UUID, email, role string) error {
	m.capturedUserID = userID
	m.capturedEmail = email
	m.capturedRole = role
	return m.err
}

func (m *mockUserService) Remove(ctx context.Context, projectID, userID uuid.UUID) error {
	m.capturedUserID = userID
	return m.err
}

func (m *mockUserService) UpdateRole(ctx context.Context, projectID, userID uuid.UUID, newRole string) error {
	m.capturedUserID = userID
	m.capturedRole = newRole
	return m.err
}

func (m *mockUserService) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

// mockProjectService is a configurable mock for projects handler tests.
type mockProjectService struct {
	project *models.Project
	err     error

	capturedID uuid.UUID
}

func (m *mockProjectService) Provision(ctx context.Context, claims *auth.Claims) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.project != nil {
		return m.project, nil
	}
	projectID, _ := uuid.Parse(claims.ProjectID)
	return &models.Project{ID: projectID, Name: "test", Status: models.ProjectActive}, nil
}

func (m *mockProjectService) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	m.capturedID = id
	if m.err != nil {
		return nil, m.err
	}
	if m.project != nil {
		return m.project, nil
	}
	return &models.Project{ID: id, Name: "test", Status: models.ProjectActive}, nil
}

func (m *mockProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	m.capturedID = id
	return m.err
}

// mockAuthService is a mock AuthService used by middleware-level tests.
type mockAuthService struct {
	claims *auth.Claims
	token  string
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	return m.claims, m.token, nil
}

func (m *mockAuthService) RequireProjectID(claims *auth.Claims) error {
	if claims.ProjectID == "" {
		return auth.ErrMissingProjectID
	}
	return nil
}

func (m *mockAuthService) ValidateProjectIDMatch(claims *auth.Claims, urlProjectID string) error {
	if urlProjectID != "" && claims.ProjectID != urlProjectID {
		return auth.ErrProjectIDMismatch
	}
	return nil
}
