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

// ScanRepository defines the interface for scan job data access.
type ScanRepository interface {
	// Create inserts a new scan job in the queued state. Returns
	// ErrScanInProgress when the datasource already has an active scan.
	Create(ctx context.Context, job *models.ScanJob) error

	// GetByID retrieves a scan job by ID within a project.
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.ScanJob, error)

	// ListByProject retrieves scan jobs for a project, newest first.
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.ScanJob, error)

	// GetActive returns the non-terminal scan for a datasource, if any.
	// Returns ErrNotFound when no scan is queued or running.
	GetActive(ctx context.Context, projectID, datasourceID uuid.UUID) (*models.ScanJob, error)

	// MarkRunning transitions a queued scan to running.
	MarkRunning(ctx context.Context, id uuid.UUID) error

	// MarkCompleted transitions a running scan to completed with its finding count.
	MarkCompleted(ctx context.Context, id uuid.UUID, findingCount int) error

	// MarkFailed transitions a scan to failed with an error message.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// scanRepository implements ScanRepository using PostgreSQL.
type scanRepository struct{}

// NewScanRepository creates a new scan repository.
func NewScanRepository() ScanRepository {
	return &scanRepository{}
}

const scanColumns = `id, project_id, datasource_id, status, finding_count, error_message, started_at, finished_at, created_at, updated_at`

func scanScanJob(row pgx.Row) (*models.ScanJob, error) {
	var job models.ScanJob
	var errMsg *string
	err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&job.DatasourceID,
		&job.Status,
		&job.FindingCount,
		&errMsg,
		&job.StartedAt,
		&job.FinishedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	return &job, nil
}

// Create inserts a new scan job in the queued state.
func (r *scanRepository) Create(ctx context.Context, job *models.ScanJob) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	job.Status = models.ScanQueued
	job.CreatedAt = now
	job.UpdatedAt = now

	query := `
		INSERT INTO engine_scans (project_id, datasource_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		job.ProjectID,
		job.DatasourceID,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	).Scan(&job.ID)
	if err != nil {
		// The partial unique index on active scans closes the race between
		// two concurrent triggers for the same datasource.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrScanInProgress
		}
		return fmt.Errorf("failed to create scan: %w", err)
	}

	return nil
}

// GetByID retrieves a scan job by ID within a project.
func (r *scanRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.ScanJob, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + scanColumns + `
		FROM engine_scans
		WHERE project_id = $1 AND id = $2`

	job, err := scanScanJob(scope.Conn.QueryRow(ctx, query, projectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	return job, nil
}

// ListByProject retrieves scan jobs for a project, newest first.
func (r *scanRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.ScanJob, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + scanColumns + `
		FROM engine_scans
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ScanJob
	for rows.Next() {
		job, err := scanScanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}

	return jobs, nil
}

// GetActive returns the non-terminal scan for a datasource, if any.
func (r *scanRepository) GetActive(ctx context.Context, projectID, datasourceID uuid.UUID) (*models.ScanJob, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + scanColumns + `
		FROM engine_scans
		WHERE project_id = $1 AND datasource_id = $2 AND status IN ($3, $4)
		ORDER BY created_at DESC
		LIMIT 1`

	job, err := scanScanJob(scope.Conn.QueryRow(ctx, query, projectID, datasourceID, models.ScanQueued, models.ScanRunning))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active scan: %w", err)
	}

	return job, nil
}

// MarkRunning transitions a queued scan to running.
func (r *scanRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	query := `
		UPDATE engine_scans
		SET status = $2, started_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4`

	result, err := scope.Conn.Exec(ctx, query, id, models.ScanRunning, now, models.ScanQueued)
	if err != nil {
		return fmt.Errorf("failed to mark scan running: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// MarkCompleted transitions a running scan to completed with its finding count.
func (r *scanRepository) MarkCompleted(ctx context.Context, id uuid.UUID, findingCount int) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	query := `
		UPDATE engine_scans
		SET status = $2, finding_count = $3, finished_at = $4, updated_at = $4
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query, id, models.ScanCompleted, findingCount, now)
	if err != nil {
		return fmt.Errorf("failed to mark scan completed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// MarkFailed transitions a scan to failed with an error message.
func (r *scanRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	query := `
		UPDATE engine_scans
		SET status = $2, error_message = $3, finished_at = $4, updated_at = $4
		WHERE id = $1`

	result, err := scope.Conn.Exec(ctx, query, id, models.ScanFailed, errMsg, now)
	if err != nil {
		return fmt.Errorf("failed to mark scan failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure scanRepository implements ScanRepository at compile time.
var _ ScanRepository = (*scanRepository)(nil)
