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

// FindingRepository defines the interface for finding data access.
// Filtering, searching, sorting and pagination happen in memory in the
// service layer; the repository returns the full project-scoped set.
type FindingRepository interface {
	// ListByProject retrieves all findings for a project.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Finding, error)

	// GetByID retrieves a single finding by ID within a project.
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Finding, error)

	// BulkUpsert inserts or refreshes findings reported by a scan.
	// A finding is identified by (project_id, finding_type, location);
	// re-detections update the mutable columns in place. Returns the
	// number of rows written.
	BulkUpsert(ctx context.Context, findings []*models.Finding) (int, error)

	// UpdateStatus changes the triage status of a finding.
	UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status string) error

	// DeleteByDataStore removes all findings recorded against a data store.
	// Used when a datasource is disconnected from the project.
	DeleteByDataStore(ctx context.Context, projectID uuid.UUID, dataStore string) (int64, error)
}

// findingRepository implements FindingRepository using PostgreSQL.
type findingRepository struct{}

// NewFindingRepository creates a new finding repository.
func NewFindingRepository() FindingRepository {
	return &findingRepository{}
}

const findingColumns = `id, project_id, finding_type, location, risk_level, confidence, occurrence_count, last_detected, status, data_store, created_at, updated_at`

func scanFinding(row pgx.Row) (*models.Finding, error) {
	var f models.Finding
	err := row.Scan(
		&f.ID,
		&f.ProjectID,
		&f.FindingType,
		&f.Location,
		&f.RiskLevel,
		&f.Confidence,
		&f.Count,
		&f.LastDetected,
		&f.Status,
		&f.DataStore,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListByProject retrieves all findings for a project, newest first.
func (r *findingRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Finding, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + findingColumns + `
		FROM engine_findings
		WHERE project_id = $1
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	var findings []*models.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}

	return findings, nil
}

// GetByID retrieves a single finding by ID within a project.
func (r *findingRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Finding, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT ` + findingColumns + `
		FROM engine_findings
		WHERE project_id = $1 AND id = $2`

	f, err := scanFinding(scope.Conn.QueryRow(ctx, query, projectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get finding: %w", err)
	}

	return f, nil
}

// BulkUpsert inserts or refreshes findings reported by a scan.
func (r *findingRepository) BulkUpsert(ctx context.Context, findings []*models.Finding) (int, error) {
	if len(findings) == 0 {
		return 0, nil
	}

	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	query := `
		INSERT INTO engine_findings
			(project_id, finding_type, location, risk_level, confidence, occurrence_count, last_detected, status, data_store, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (project_id, finding_type, location) DO UPDATE SET
			risk_level = EXCLUDED.risk_level,
			confidence = EXCLUDED.confidence,
			occurrence_count = EXCLUDED.occurrence_count,
			last_detected = EXCLUDED.last_detected,
			data_store = EXCLUDED.data_store,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	now := time.Now()
	written := 0
	for _, f := range findings {
		status := f.Status
		if status == "" {
			status = models.StatusActive
		}
		err := tx.QueryRow(ctx, query,
			f.ProjectID,
			f.FindingType,
			f.Location,
			f.RiskLevel,
			f.Confidence,
			f.Count,
			f.LastDetected,
			status,
			f.DataStore,
			now,
		).Scan(&f.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return 0, apperrors.ErrConflict
			}
			return 0, fmt.Errorf("failed to upsert finding: %w", err)
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return written, nil
}

// UpdateStatus changes the triage status of a finding.
func (r *findingRepository) UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE engine_findings
		SET status = $3, updated_at = $4
		WHERE project_id = $1 AND id = $2`

	result, err := scope.Conn.Exec(ctx, query, projectID, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update finding status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// DeleteByDataStore removes all findings recorded against a data store.
func (r *findingRepository) DeleteByDataStore(ctx context.Context, projectID uuid.UUID, dataStore string) (int64, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}

	query := `DELETE FROM engine_findings WHERE project_id = $1 AND data_store = $2`

	result, err := scope.Conn.Exec(ctx, query, projectID, dataStore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete findings: %w", err)
	}

	return result.RowsAffected(), nil
}

// Ensure findingRepository implements FindingRepository at compile time.
var _ FindingRepository = (*findingRepository)(nil)
