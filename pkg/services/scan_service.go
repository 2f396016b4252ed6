package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/apperrors"
	"github.com/sentra-security/sentra-engine/pkg/database"
	"github.com/sentra-security/sentra-engine/pkg/logging"
	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/repositories"
)

// Detector produces findings for a datasource. Implementations connect to
// the store described by the datasource config and run detection rules;
// the engine treats them as a black box.
type Detector interface {
	Detect(ctx context.Context, ds *models.Datasource) ([]*models.Finding, error)
}

// ScanService coordinates scan runs against project datasources.
type ScanService interface {
	// Trigger queues a scan for a datasource and starts it in the
	// background. Returns ErrScanInProgress when the datasource already
	// has a queued or running scan.
	Trigger(ctx context.Context, projectID, datasourceID uuid.UUID) (*models.ScanJob, error)

	// Get retrieves a scan job.
	Get(ctx context.Context, projectID, id uuid.UUID) (*models.ScanJob, error)

	// List retrieves recent scan jobs for a project, newest first.
	List(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.ScanJob, error)
}

// scanService implements ScanService.
type scanService struct {
	db          *database.DB
	scanRepo    repositories.ScanRepository
	findingRepo repositories.FindingRepository
	dsService   DatasourceService
	detector    Detector
	timeout     time.Duration
	slots       chan struct{} // bounds concurrent scan runs
	logger      *zap.Logger
}

// NewScanService creates a new scan service with dependencies.
func NewScanService(
	db *database.DB,
	scanRepo repositories.ScanRepository,
	findingRepo repositories.FindingRepository,
	dsService DatasourceService,
	detector Detector,
	timeout time.Duration,
	maxConcurrent int,
	logger *zap.Logger,
) ScanService {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &scanService{
		db:          db,
		scanRepo:    scanRepo,
		findingRepo: findingRepo,
		dsService:   dsService,
		detector:    detector,
		timeout:     timeout,
		slots:       make(chan struct{}, maxConcurrent),
		logger:      logger,
	}
}

// Trigger queues a scan for a datasource and starts it in the background.
func (s *scanService) Trigger(ctx context.Context, projectID, datasourceID uuid.UUID) (*models.ScanJob, error) {
	// Resolve the datasource first: decrypted config is what the detector runs against
	ds, err := s.dsService.Get(ctx, projectID, datasourceID)
	if err != nil {
		return nil, err
	}

	// One scan per datasource at a time
	_, err = s.scanRepo.GetActive(ctx, projectID, datasourceID)
	if err == nil {
		return nil, apperrors.ErrScanInProgress
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	job := &models.ScanJob{
		ProjectID:    projectID,
		DatasourceID: datasourceID,
	}
	if err := s.scanRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("Scan queued",
		zap.String("scan_id", job.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("datasource", ds.Name))

	// The request's tenant scope dies with the request; the background
	// run opens its own.
	go s.run(job.ID, projectID, ds)

	return job, nil
}

// Get retrieves a scan job.
func (s *scanService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.ScanJob, error) {
	return s.scanRepo.GetByID(ctx, projectID, id)
}

// List retrieves recent scan jobs for a project, newest first.
func (s *scanService) List(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.ScanJob, error) {
	return s.scanRepo.ListByProject(ctx, projectID, limit)
}

// run executes one scan end to end. It acquires a concurrency slot, opens
// a fresh tenant scope, and records the outcome on the scan row.
func (s *scanService) run(scanID, projectID uuid.UUID, ds *models.Datasource) {
	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	scope, err := s.db.WithTenant(ctx, projectID)
	if err != nil {
		s.logger.Error("Scan could not open tenant scope",
			zap.String("scan_id", scanID.String()),
			zap.Error(err))
		return
	}
	defer scope.Close()
	ctx = database.SetTenantScope(ctx, scope)

	if err := s.scanRepo.MarkRunning(ctx, scanID); err != nil {
		s.logger.Error("Scan could not transition to running",
			zap.String("scan_id", scanID.String()),
			zap.Error(err))
		return
	}

	findings, err := s.detector.Detect(ctx, ds)
	if err != nil {
		// Detector errors can echo the store's connection details.
		s.fail(ctx, scanID, fmt.Sprintf("detection failed: %s", logging.SanitizeError(err)))
		return
	}

	for _, f := range findings {
		f.ProjectID = projectID
		if f.DataStore == "" {
			f.DataStore = ds.Name
		}
	}

	written, err := s.findingRepo.BulkUpsert(ctx, findings)
	if err != nil {
		s.fail(ctx, scanID, fmt.Sprintf("ingest failed: %v", err))
		return
	}

	if err := s.scanRepo.MarkCompleted(ctx, scanID, written); err != nil {
		s.logger.Error("Scan could not transition to completed",
			zap.String("scan_id", scanID.String()),
			zap.Error(err))
		return
	}

	s.logger.Info("Scan completed",
		zap.String("scan_id", scanID.String()),
		zap.Int("findings", written))
}

func (s *scanService) fail(ctx context.Context, scanID uuid.UUID, msg string) {
	msg = logging.TruncateString(msg, 500)
	s.logger.Warn("Scan failed", zap.String("scan_id", scanID.String()), zap.String("error", msg))
	if err := s.scanRepo.MarkFailed(ctx, scanID, msg); err != nil {
		s.logger.Error("Scan could not transition to failed",
			zap.String("scan_id", scanID.String()),
			zap.Error(err))
	}
}

// Ensure scanService implements ScanService at compile time.
var _ ScanService = (*scanService)(nil)
