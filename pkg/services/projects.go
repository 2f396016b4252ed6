package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/repositories"
)

// ProjectService defines the interface for project operations.
type ProjectService interface {
	// Provision creates the project named in the claims and grants the
	// calling user the admin role. Idempotent: repeat calls refresh rather
	// than duplicate.
	Provision(ctx context.Context, claims *auth.Claims) (*models.Project, error)

	// GetByID returns a project by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)

	// Delete removes a project and everything scoped to it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// projectService implements ProjectService.
type projectService struct {
	projectRepo repositories.ProjectRepository
	userRepo    repositories.UserRepository
	tenantCtx   TenantContextFunc
	logger      *zap.Logger
}

// NewProjectService creates a new project service with dependencies.
func NewProjectService(
	projectRepo repositories.ProjectRepository,
	userRepo repositories.UserRepository,
	tenantCtx TenantContextFunc,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		userRepo:    userRepo,
		tenantCtx:   tenantCtx,
		logger:      logger,
	}
}

// Provision creates the project from JWT claims. Provisioning runs before
// tenant middleware exists for the project, so it opens its own scope.
func (s *projectService) Provision(ctx context.Context, claims *auth.Claims) (*models.Project, error) {
	if claims.ProjectID == "" {
		return nil, fmt.Errorf("claims carry no project ID")
	}
	projectID, err := uuid.Parse(claims.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID in claims: %w", err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in claims: %w", err)
	}

	tenantCtx, cleanup, err := s.tenantCtx(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant scope: %w", err)
	}
	defer cleanup()

	project := &models.Project{
		ID:   projectID,
		Name: "Project " + projectID.String()[:8],
	}
	if err := s.projectRepo.Create(tenantCtx, project); err != nil {
		return nil, err
	}

	member := &models.User{
		ProjectID: projectID,
		UserID:    userID,
		Email:     claims.Email,
		Role:      models.RoleAdmin,
	}
	if err := s.userRepo.Add(tenantCtx, member); err != nil {
		return nil, err
	}

	s.logger.Info("Project provisioned",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()))

	return project, nil
}

// GetByID returns a project by its ID.
func (s *projectService) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.projectRepo.Get(ctx, id)
}

// Delete removes a project and everything scoped to it.
func (s *projectService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Project deleted", zap.String("project_id", id.String()))
	return nil
}

// Ensure projectService implements ProjectService at compile time.
var _ ProjectService = (*projectService)(nil)
