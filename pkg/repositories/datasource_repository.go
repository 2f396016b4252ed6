package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sentra-security/sentra-engine/pkg/apperrors"
	"github.com/sentra-security/sentra-engine/pkg/database"
	"github.com/sentra-security/sentra-engine/pkg/models"
)

// DatasourceRepository defines the interface for datasource data access.
// Config is stored as encrypted TEXT - encryption/decryption is handled by the service layer.
type DatasourceRepository interface {
	// Create inserts a new datasource. Returns ErrConflict if the name
	// already exists for the project.
	Create(ctx context.Context, ds *models.Datasource, encryptedConfig string) error

	// GetByID retrieves a datasource by ID within a project. Returns the model and encrypted config.
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Datasource, string, error)

	// List retrieves all datasources for a project. Returns models and their encrypted configs.
	List(ctx context.Context, projectID uuid.UUID) ([]*models.Datasource, []string, error)

	// Update modifies an existing datasource.
	Update(ctx context.Context, projectID, id uuid.UUID, name, dsType, encryptedConfig string) error

	// Delete removes a datasource by ID.
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}

// datasourceRepository implements DatasourceRepository using PostgreSQL.
type datasourceRepository struct{}

// NewDatasourceRepository creates a new datasource repository.
func NewDatasourceRepository() DatasourceRepository {
	return &datasourceRepository{}
}

// Create inserts a new datasource.
func (r *datasourceRepository) Create(ctx context.Context, ds *models.Datasource, encryptedConfig string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	query := `
		INSERT INTO engine_datasources (project_id, name, datasource_type, datasource_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		ds.ProjectID,
		ds.Name,
		ds.DatasourceType,
		encryptedConfig,
		ds.CreatedAt,
		ds.UpdatedAt,
	).Scan(&ds.ID)
	if err != nil {
		// Check for unique constraint violation (PostgreSQL error code 23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create datasource: %w", err)
	}

	return nil
}

// GetByID retrieves a datasource by ID within a project.
func (r *datasourceRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Datasource, string, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, "", fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, project_id, name, datasource_type, datasource_config, created_at, updated_at
		FROM engine_datasources
		WHERE project_id = $1 AND id = $2`

	var ds models.Datasource
	var encryptedConfig string
	err := scope.Conn.QueryRow(ctx, query, projectID, id).Scan(
		&ds.ID,
		&ds.ProjectID,
		&ds.Name,
		&ds.DatasourceType,
		&encryptedConfig,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", apperrors.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get datasource: %w", err)
	}

	return &ds, encryptedConfig, nil
}

// List retrieves all datasources for a project.
func (r *datasourceRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.Datasource, []string, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, project_id, name, datasource_type, datasource_config, created_at, updated_at
		FROM engine_datasources
		WHERE project_id = $1
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	defer rows.Close()

	var datasources []*models.Datasource
	var encryptedConfigs []string
	for rows.Next() {
		var ds models.Datasource
		var encryptedConfig string
		err := rows.Scan(
			&ds.ID,
			&ds.ProjectID,
			&ds.Name,
			&ds.DatasourceType,
			&encryptedConfig,
			&ds.CreatedAt,
			&ds.UpdatedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan datasource: %w", err)
		}
		datasources = append(datasources, &ds)
		encryptedConfigs = append(encryptedConfigs, encryptedConfig)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating datasources: %w", err)
	}

	return datasources, encryptedConfigs, nil
}

// Update modifies an existing datasource.
func (r *datasourceRepository) Update(ctx context.Context, projectID, id uuid.UUID, name, dsType, encryptedConfig string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE engine_datasources
		SET name = $3, datasource_type = $4, datasource_config = $5, updated_at = $6
		WHERE project_id = $1 AND id = $2`

	result, err := scope.Conn.Exec(ctx, query, projectID, id, name, dsType, encryptedConfig, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update datasource: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a datasource by ID.
func (r *datasourceRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `DELETE FROM engine_datasources WHERE project_id = $1 AND id = $2`

	result, err := scope.Conn.Exec(ctx, query, projectID, id)
	if err != nil {
		return fmt.Errorf("failed to delete datasource: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure datasourceRepository implements DatasourceRepository at compile time.
var _ DatasourceRepository = (*datasourceRepository)(nil)
