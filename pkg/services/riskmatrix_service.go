package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/repositories"
	"github.com/sentra-security/sentra-engine/pkg/riskmatrix"
)

// Occurrence-count buckets that map a data store's total detections to a
// likelihood column.
const (
	likelihoodMediumThreshold = 10
	likelihoodHighThreshold   = 100
)

// MatrixView is the JSON shape returned to the dashboard: positioned
// markers plus the names of entities that could not be placed.
type MatrixView struct {
	Width    float64                `json:"width"`
	Height   float64                `json:"height"`
	Entities []*models.MatrixEntity `json:"entities"`
	Skipped  []string               `json:"skipped,omitempty"`
}

// RiskMatrixService builds the risk matrix for a project's findings.
type RiskMatrixService interface {
	// Matrix aggregates findings per data store, scores each store on the
	// likelihood/impact grid, and positions the markers.
	Matrix(ctx context.Context, projectID uuid.UUID, width, height float64) (*MatrixView, error)

	// Locate returns the entity whose marker contains the given point,
	// or nil when the point hits empty grid.
	Locate(ctx context.Context, projectID uuid.UUID, x, y, width, height float64) (*models.MatrixEntity, error)

	// Report writes a PDF rendering of the matrix to w.
	Report(ctx context.Context, w io.Writer, projectID uuid.UUID, title string, width, height float64) error
}

// riskMatrixService implements RiskMatrixService.
type riskMatrixService struct {
	repo   repositories.FindingRepository
	logger *zap.Logger
}

// NewRiskMatrixService creates a new risk matrix service with dependencies.
func NewRiskMatrixService(repo repositories.FindingRepository, logger *zap.Logger) RiskMatrixService {
	return &riskMatrixService{
		repo:   repo,
		logger: logger,
	}
}

// Matrix aggregates findings per data store and positions the markers.
func (s *riskMatrixService) Matrix(ctx context.Context, projectID uuid.UUID, width, height float64) (*MatrixView, error) {
	entities, err := s.buildEntities(ctx, projectID)
	if err != nil {
		return nil, err
	}

	grid := layoutGrid(projectID, entities, width, height)
	placed, skipped := grid.Layout(entities)

	view := &MatrixView{
		Width:    width,
		Height:   height,
		Entities: placed,
	}
	for _, e := range skipped {
		view.Skipped = append(view.Skipped, e.Name)
	}

	if len(skipped) > 0 {
		s.logger.Warn("Entities excluded from risk matrix",
			zap.String("project_id", projectID.String()),
			zap.Strings("names", view.Skipped))
	}

	return view, nil
}

// Locate returns the entity whose marker contains the given point.
func (s *riskMatrixService) Locate(ctx context.Context, projectID uuid.UUID, x, y, width, height float64) (*models.MatrixEntity, error) {
	view, err := s.Matrix(ctx, projectID, width, height)
	if err != nil {
		return nil, err
	}
	return riskmatrix.HitTest(x, y, view.Entities), nil
}

// Report writes a PDF rendering of the matrix to w.
func (s *riskMatrixService) Report(ctx context.Context, w io.Writer, projectID uuid.UUID, title string, width, height float64) error {
	entities, err := s.buildEntities(ctx, projectID)
	if err != nil {
		return err
	}

	grid := layoutGrid(projectID, entities, width, height)
	placed, _ := grid.Layout(entities)

	return riskmatrix.WriteReport(w, title, grid, placed)
}

// layoutGrid returns the grid used to place the given entity set. The
// jitter source is seeded from the project and the entity names so that
// separate requests against an unchanged data set produce identical
// marker positions; the hit-test endpoint then evaluates pointer
// coordinates against the same layout the dashboard rendered.
func layoutGrid(projectID uuid.UUID, entities []*models.MatrixEntity, width, height float64) riskmatrix.Grid {
	h := fnv.New64a()
	h.Write([]byte(projectID.String()))
	for _, e := range entities {
		h.Write([]byte(e.Name))
	}
	seed := h.Sum64()

	grid := riskmatrix.NewGrid(width, height)
	grid.Rand = rand.New(rand.NewPCG(seed, seed))
	return grid
}

// storeAggregate accumulates the findings of one data store.
type storeAggregate struct {
	findings    int
	occurrences int
	maxRank     int
}

// buildEntities folds the project's findings into one matrix entity per
// data store. Likelihood comes from total occurrence volume, impact from
// the most severe risk level seen in the store.
func (s *riskMatrixService) buildEntities(ctx context.Context, projectID uuid.UUID) ([]*models.MatrixEntity, error) {
	findings, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}

	aggregates := make(map[string]*storeAggregate)
	for _, f := range findings {
		store := f.DataStore
		if store == "" {
			store = f.Location
		}
		agg, ok := aggregates[store]
		if !ok {
			agg = &storeAggregate{}
			aggregates[store] = agg
		}
		agg.findings++
		agg.occurrences += f.Count
		if rank := f.RiskLevel.Rank(); rank > agg.maxRank {
			agg.maxRank = rank
		}
	}

	names := make([]string, 0, len(aggregates))
	for name := range aggregates {
		names = append(names, name)
	}
	sort.Strings(names)

	entities := make([]*models.MatrixEntity, 0, len(names))
	for _, name := range names {
		agg := aggregates[name]
		entities = append(entities, &models.MatrixEntity{
			// Name-derived ID keeps marker identity stable across requests.
			ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String(),
			Name:       name,
			Likelihood: likelihoodForOccurrences(agg.occurrences),
			Impact:     impactForRank(agg.maxRank),
			Details:    fmt.Sprintf("%d findings, %d occurrences", agg.findings, agg.occurrences),
		})
	}

	return entities, nil
}

// likelihoodForOccurrences buckets a store's total detections into a
// likelihood column.
func likelihoodForOccurrences(occurrences int) models.Likelihood {
	switch {
	case occurrences >= likelihoodHighThreshold:
		return models.LikelihoodHigh
	case occurrences >= likelihoodMediumThreshold:
		return models.LikelihoodMedium
	default:
		return models.LikelihoodLow
	}
}

// impactForRank maps the most severe risk level in a store to an impact row.
func impactForRank(rank int) models.Impact {
	switch rank {
	case 3:
		return models.ImpactHigh
	case 2:
		return models.ImpactMedium
	default:
		return models.ImpactLow
	}
}

// Ensure riskMatrixService implements RiskMatrixService at compile time.
var _ RiskMatrixService = (*riskMatrixService)(nil)
