package riskmatrix

import (
	"github.com/sentra-security/sentra-engine/pkg/models"
)

// Surface is the 2D drawing target the renderer paints on. Coordinates are
// pixels with the origin at the top-left. Implementations translate these
// primitive calls to their backend (PDF page, raster canvas, ...); the
// host applies any device-pixel-ratio scaling before handing the surface
// over.
type Surface interface {
	// Line draws a stroked segment.
	Line(x1, y1, x2, y2 float64, color string, width float64)
	// FilledCircle draws a filled disc centered at (cx, cy).
	FilledCircle(cx, cy, r float64, color string)
	// Text draws a string horizontally centered on x with its baseline
	// near y. Size is in pixels.
	Text(x, y, size float64, text, color string)
}

// Colors used for the grid chrome.
const (
	gridLineColor  = "#d4d4d8"
	axisLabelColor = "#52525b"
	markerText     = "#ffffff"
)

var likelihoodLabels = []string{"Low", "Medium", "High"}

// impact reads top-to-bottom: High impact is the top row.
var impactLabels = []string{"High", "Medium", "Low"}

// Render draws the grid dividers, axis labels and one marker per laid-out
// entity. Entities must come from Layout; callers retain the returned
// slice from Layout for subsequent HitTest calls.
func Render(s Surface, g Grid, placed []*models.MatrixEntity) {
	plotW := g.Width - g.Padding
	plotH := g.Height - g.Padding
	cw := g.CellWidth()
	ch := g.CellHeight()

	// Internal dividers: two vertical, two horizontal, forming nine cells.
	for i := 1; i < 3; i++ {
		x := g.Padding + float64(i)*cw
		s.Line(x, 0, x, plotH, gridLineColor, 1)

		y := float64(i) * ch
		s.Line(g.Padding, y, g.Padding+plotW, y, gridLineColor, 1)
	}

	// Border around the plot area.
	s.Line(g.Padding, 0, g.Padding+plotW, 0, gridLineColor, 1)
	s.Line(g.Padding, plotH, g.Padding+plotW, plotH, gridLineColor, 1)
	s.Line(g.Padding, 0, g.Padding, plotH, gridLineColor, 1)
	s.Line(g.Padding+plotW, 0, g.Padding+plotW, plotH, gridLineColor, 1)

	// Likelihood labels under each column, impact labels beside each row.
	for i, label := range likelihoodLabels {
		x := g.Padding + (float64(i)+0.5)*cw
		s.Text(x, plotH+g.Padding/2, 11, label, axisLabelColor)
	}
	for i, label := range impactLabels {
		y := (float64(i) + 0.5) * ch
		s.Text(g.Padding/2, y, 11, label, axisLabelColor)
	}

	for _, e := range placed {
		color := e.Color
		if color == "" {
			color = models.DefaultEntityColor
		}
		s.FilledCircle(e.X, e.Y, e.Radius, color)
		s.Text(e.X, e.Y+3, 8, markerLabel(e.Name), markerText)
	}
}

// markerLabel truncates an entity name to the two characters that fit
// inside a marker. The full name belongs in the tooltip.
func markerLabel(name string) string {
	runes := []rune(name)
	if len(runes) <= 2 {
		return name
	}
	return string(runes[:2])
}
