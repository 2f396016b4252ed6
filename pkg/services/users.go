package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/repositories"
)

// UserService defines the interface for project membership operations.
type UserService interface {
	Add(ctx context.Context, projectID, userID uuid.UUID, email, role string) error
	Remove(ctx context.Context, projectID, userID uuid.UUID) error
	UpdateRole(ctx context.Context, projectID, userID uuid.UUID, newRole string) error
	GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.User, error)
}

// userService implements UserService.
type userService struct {
	userRepo repositories.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(userRepo repositories.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Add grants a user membership in a project with the specified role.
func (s *userService) Add(ctx context.Context, projectID, userID uuid.UUID, email, role string) error {
	if !models.IsValidRole(role) {
		return fmt.Errorf("invalid role: %s", role)
	}

	user := &models.User{
		ProjectID: projectID,
		UserID:    userID,
		Email:     email,
		Role:      role,
	}

	if err := s.userRepo.Add(ctx, user); err != nil {
		return err
	}

	s.logger.Info("User added to project",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", role))
	return nil
}

// Remove removes a user from a project. The repository guards against
// removing the last admin.
func (s *userService) Remove(ctx context.Context, projectID, userID uuid.UUID) error {
	return s.userRepo.Remove(ctx, projectID, userID)
}

// UpdateRole changes a user's role in a project. The repository guards
// against demoting the last admin.
func (s *userService) UpdateRole(ctx context.Context, projectID, userID uuid.UUID, newRole string) error {
	if !models.IsValidRole(newRole) {
		return fmt.Errorf("invalid role: %s", newRole)
	}

	return s.userRepo.UpdateRole(ctx, projectID, userID, newRole)
}

// GetByProject retrieves all members of a project.
func (s *userService) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.User, error) {
	return s.userRepo.GetByProject(ctx, projectID)
}

// Ensure userService implements UserService at compile time.
var _ UserService = (*userService)(nil)
