// Package riskmatrix plots categorically-scored entities onto a fixed 3x3
// likelihood/impact grid and answers pointer hit-tests against the last
// computed layout. Geometry and hit-testing are pure functions over the
// entity slice; drawing goes through the Surface interface so hosts decide
// where pixels land.
package riskmatrix

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/sentra-security/sentra-engine/pkg/models"
)

const (
	// MarkerRadius is the fixed marker radius in pixels, used identically
	// for drawing and hit-testing.
	MarkerRadius = 8.0

	// collisionThreshold is the center distance below which a newly placed
	// marker is jittered away from an earlier one.
	collisionThreshold = 20.0

	// jitterMax bounds the random offset applied per axis to colliding
	// markers. Best-effort: jittered markers may still overlap.
	jitterMax = 5.0
)

// Grid describes the drawing area. Padding is reserved on the left edge
// for impact labels and on the bottom edge for likelihood labels; the nine
// cells split the remaining area evenly.
type Grid struct {
	Width   float64
	Height  float64
	Padding float64

	// Rand supplies the jitter offsets. Nil uses the shared global source;
	// tests inject a seeded source for reproducible layouts.
	Rand *rand.Rand
}

// NewGrid returns a grid for a surface of the given pixel dimensions with
// the default padding.
func NewGrid(width, height float64) Grid {
	return Grid{Width: width, Height: height, Padding: 40}
}

// CellWidth returns the width of one grid cell.
func (g Grid) CellWidth() float64 {
	return (g.Width - g.Padding) / 3
}

// CellHeight returns the height of one grid cell.
func (g Grid) CellHeight() float64 {
	return (g.Height - g.Padding) / 3
}

// CellCenter returns the pixel center of the cell at the given likelihood
// column (0=Low .. 2=High, left to right) and impact row (0=High .. 2=Low,
// top to bottom).
func (g Grid) CellCenter(likelihoodIdx, impactIdx int) (x, y float64) {
	x = g.Padding + (float64(likelihoodIdx)+0.5)*g.CellWidth()
	y = (float64(impactIdx) + 0.5) * g.CellHeight()
	return x, y
}

// Layout computes marker positions for entities, annotating X, Y and
// Radius in place. Entities whose likelihood or impact is not a recognized
// category are excluded from the layout and returned in skipped for the
// caller to log or surface; they are never silently plotted at the origin.
// Entities without an ID are assigned one.
//
// Markers landing within collisionThreshold of an already placed marker
// are nudged by a random offset of at most jitterMax per axis.
func (g Grid) Layout(entities []*models.MatrixEntity) (placed, skipped []*models.MatrixEntity) {
	placed = make([]*models.MatrixEntity, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}

		li := e.Likelihood.Index()
		ii := e.Impact.Index()
		if li < 0 || ii < 0 {
			e.X, e.Y, e.Radius = 0, 0, 0
			skipped = append(skipped, e)
			continue
		}

		x, y := g.CellCenter(li, ii)
		for _, prior := range placed {
			dx := x - prior.X
			dy := y - prior.Y
			if dx*dx+dy*dy < collisionThreshold*collisionThreshold {
				x += g.jitter()
				y += g.jitter()
				break
			}
		}

		e.X = x
		e.Y = y
		e.Radius = MarkerRadius
		placed = append(placed, e)
	}
	return placed, skipped
}

// jitter returns an offset in [-jitterMax, jitterMax).
func (g Grid) jitter() float64 {
	if g.Rand != nil {
		return (g.Rand.Float64()*2 - 1) * jitterMax
	}
	return (rand.Float64()*2 - 1) * jitterMax
}

// HitTest returns the first entity in list order whose center lies within
// strictly less than its radius of (x, y), or nil if none does. It must be
// called against a slice returned by Layout; entities that were never laid
// out have radius 0 and can never be hit.
func HitTest(x, y float64, placed []*models.MatrixEntity) *models.MatrixEntity {
	for _, e := range placed {
		if e == nil || e.Radius <= 0 {
			continue
		}
		dx := x - e.X
		dy := y - e.Y
		if dx*dx+dy*dy < e.Radius*e.Radius {
			return e
		}
	}
	return nil
}

// TooltipPosition places a tooltip of the given size near a pointer,
// keeping it inside the viewport: shifted left/up when it would overflow
// the right/bottom edge, floored at a minimum inset from the top-left.
func TooltipPosition(pointerX, pointerY, tooltipW, tooltipH, viewportW, viewportH float64) (x, y float64) {
	const offset = 12.0
	const minInset = 8.0

	x = pointerX + offset
	y = pointerY + offset
	if x+tooltipW > viewportW {
		x = pointerX - tooltipW - offset
	}
	if y+tooltipH > viewportH {
		y = pointerY - tooltipH - offset
	}
	if x < minInset {
		x = minInset
	}
	if y < minInset {
		y = minInset
	}
	return x, y
}
