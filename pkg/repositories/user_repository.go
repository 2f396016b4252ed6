package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sentra-security/sentra-engine/pkg/apperrors"
	"github.com/sentra-security/sentra-engine/pkg/database"
	"github.com/sentra-security/sentra-engine/pkg/models"
)

// UserRepository defines the interface for project membership data access.
type UserRepository interface {
	// Add upserts a user's membership. An existing membership gets the new
	// role; a missing email is preserved.
	Add(ctx context.Context, user *models.User) error
	// Remove deletes a membership, returning ErrLastAdmin when the user is
	// the project's only admin.
	Remove(ctx context.Context, projectID, userID uuid.UUID) error
	// UpdateRole changes a membership role, returning ErrLastAdmin when the
	// change would demote the project's only admin.
	UpdateRole(ctx context.Context, projectID, userID uuid.UUID, newRole string) error
	GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.User, error)
	GetByID(ctx context.Context, projectID, userID uuid.UUID) (*models.User, error)
	CountAdmins(ctx context.Context, projectID uuid.UUID) (int, error)
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct{}

// NewUserRepository creates a new user repository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

func (r *userRepository) Add(ctx context.Context, user *models.User) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO engine_users (project_id, user_id, email, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, user_id) DO UPDATE
		SET role = EXCLUDED.role,
		    email = COALESCE(NULLIF(EXCLUDED.email, ''), engine_users.email),
		    updated_at = EXCLUDED.updated_at`

	_, err := scope.Conn.Exec(ctx, query,
		user.ProjectID,
		user.UserID,
		user.Email,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}

	return nil
}

// Remove deletes a membership inside a transaction so the last-admin check
// and the delete see the same state.
func (r *userRepository) Remove(ctx context.Context, projectID, userID uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var role string
	err = tx.QueryRow(ctx,
		`SELECT role FROM engine_users WHERE project_id = $1 AND user_id = $2`,
		projectID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if role == models.RoleAdmin {
		var adminCount int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM engine_users WHERE project_id = $1 AND role = 'admin'`,
			projectID).Scan(&adminCount)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if adminCount <= 1 {
			err = apperrors.ErrLastAdmin
			return err
		}
	}

	result, err := tx.Exec(ctx,
		`DELETE FROM engine_users WHERE project_id = $1 AND user_id = $2`,
		projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}
	if result.RowsAffected() == 0 {
		err = apperrors.ErrNotFound
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateRole changes a membership role inside a transaction, guarding the
// project's only admin against demotion.
func (r *userRepository) UpdateRole(ctx context.Context, projectID, userID uuid.UUID, newRole string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var currentRole string
	err = tx.QueryRow(ctx,
		`SELECT role FROM engine_users WHERE project_id = $1 AND user_id = $2`,
		projectID, userID).Scan(&currentRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if currentRole == models.RoleAdmin && newRole != models.RoleAdmin {
		var adminCount int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM engine_users WHERE project_id = $1 AND role = 'admin'`,
			projectID).Scan(&adminCount)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if adminCount <= 1 {
			err = apperrors.ErrLastAdmin
			return err
		}
	}

	result, err := tx.Exec(ctx,
		`UPDATE engine_users SET role = $1, updated_at = $2 WHERE project_id = $3 AND user_id = $4`,
		newRole, time.Now(), projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		err = apperrors.ErrNotFound
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByProject retrieves all memberships for a project, oldest first.
func (r *userRepository) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.User, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT project_id, user_id, email, role, created_at, updated_at
		FROM engine_users
		WHERE project_id = $1
		ORDER BY created_at`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ProjectID,
			&user.UserID,
			&user.Email,
			&user.Role,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// GetByID retrieves a specific membership.
func (r *userRepository) GetByID(ctx context.Context, projectID, userID uuid.UUID) (*models.User, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT project_id, user_id, email, role, created_at, updated_at
		FROM engine_users
		WHERE project_id = $1 AND user_id = $2`

	var user models.User
	err := scope.Conn.QueryRow(ctx, query, projectID, userID).Scan(
		&user.ProjectID,
		&user.UserID,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// CountAdmins returns the number of admin users in a project.
func (r *userRepository) CountAdmins(ctx context.Context, projectID uuid.UUID) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}

	query := `SELECT COUNT(*) FROM engine_users WHERE project_id = $1 AND role = 'admin'`

	var count int
	err := scope.Conn.QueryRow(ctx, query, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}

	return count, nil
}

// Ensure userRepository implements UserRepository at compile time.
var _ UserRepository = (*userRepository)(nil)
