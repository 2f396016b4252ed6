package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/repositories"
	"github.com/sentra-security/sentra-engine/pkg/tabulate"
)

// FindingService defines the interface for finding table operations.
type FindingService interface {
	// ListView runs the full table pipeline (filter, search, sort,
	// paginate) over the project's findings and returns one render's
	// worth of state.
	ListView(ctx context.Context, projectID uuid.UUID, q tabulate.Query) (*tabulate.View, error)

	// Get retrieves a single finding.
	Get(ctx context.Context, projectID, id uuid.UUID) (*models.Finding, error)

	// UpdateStatus changes the triage status of a finding.
	UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status, updatedBy string) error

	// DistinctValues returns the filter dropdown options for the project,
	// cached in Redis when available.
	DistinctValues(ctx context.Context, projectID uuid.UUID) (map[string][]string, error)
}

// findingService implements FindingService.
type findingService struct {
	repo     repositories.FindingRepository
	engine   *tabulate.Engine
	cache    *redis.Client // nil when cache disabled
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewFindingService creates a new finding service with dependencies.
// cache may be nil; distinct-value lookups then always hit the database.
func NewFindingService(repo repositories.FindingRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) FindingService {
	return &findingService{
		repo:     repo,
		engine:   tabulate.Findings(),
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// ListView runs the full table pipeline over the project's findings.
func (s *findingService) ListView(ctx context.Context, projectID uuid.UUID, q tabulate.Query) (*tabulate.View, error) {
	findings, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}

	view := s.engine.View(findings, q)
	return &view, nil
}

// Get retrieves a single finding.
func (s *findingService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.Finding, error) {
	return s.repo.GetByID(ctx, projectID, id)
}

// UpdateStatus changes the triage status of a finding.
func (s *findingService) UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status, updatedBy string) error {
	if status == "" {
		return fmt.Errorf("status is required")
	}

	if err := s.repo.UpdateStatus(ctx, projectID, id, status); err != nil {
		return err
	}

	s.logger.Info("Updated finding status",
		zap.String("finding_id", id.String()),
		zap.String("project_id", projectID.String()),
		zap.String("status", status),
		zap.String("updated_by", updatedBy))

	// Status values feed the filter dropdowns
	s.invalidateDistinct(ctx, projectID)

	return nil
}

// DistinctValues returns the filter dropdown options for the project.
func (s *findingService) DistinctValues(ctx context.Context, projectID uuid.UUID) (map[string][]string, error) {
	if cached, ok := s.cachedDistinct(ctx, projectID); ok {
		return cached, nil
	}

	findings, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}

	distinct := s.engine.DistinctValues(findings)
	s.storeDistinct(ctx, projectID, distinct)
	return distinct, nil
}

func distinctCacheKey(projectID uuid.UUID) string {
	return "findings:distinct:" + projectID.String()
}

func (s *findingService) cachedDistinct(ctx context.Context, projectID uuid.UUID) (map[string][]string, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, distinctCacheKey(projectID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("Distinct cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var distinct map[string][]string
	if err := json.Unmarshal([]byte(raw), &distinct); err != nil {
		return nil, false
	}
	return distinct, true
}

func (s *findingService) storeDistinct(ctx context.Context, projectID uuid.UUID, distinct map[string][]string) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(distinct)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, distinctCacheKey(projectID), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("Distinct cache write failed", zap.Error(err))
	}
}

func (s *findingService) invalidateDistinct(ctx context.Context, projectID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, distinctCacheKey(projectID)).Err(); err != nil {
		s.logger.Debug("Distinct cache invalidation failed", zap.Error(err))
	}
}

// Ensure findingService implements FindingService at compile time.
var _ FindingService = (*findingService)(nil)
