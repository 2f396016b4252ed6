package riskmatrix

import (
	"fmt"
	"io"
	"strconv"

	gofpdf "github.com/go-pdf/fpdf"

	"github.com/sentra-security/sentra-engine/pkg/models"
)

// PDFSurface adapts an fpdf page to the Surface interface so the risk
// matrix can be embedded in downloadable reports. The surface draws into
// the rectangle starting at (offsetX, offsetY) on the current page; grid
// coordinates are interpreted as points.
type PDFSurface struct {
	pdf     *gofpdf.Fpdf
	offsetX float64
	offsetY float64
}

// NewPDFSurface wraps pdf, translating all drawing by the given offset.
func NewPDFSurface(pdf *gofpdf.Fpdf, offsetX, offsetY float64) *PDFSurface {
	return &PDFSurface{pdf: pdf, offsetX: offsetX, offsetY: offsetY}
}

// Line implements Surface.
func (s *PDFSurface) Line(x1, y1, x2, y2 float64, color string, width float64) {
	r, g, b := parseHexColor(color)
	s.pdf.SetDrawColor(r, g, b)
	s.pdf.SetLineWidth(width)
	s.pdf.Line(s.offsetX+x1, s.offsetY+y1, s.offsetX+x2, s.offsetY+y2)
}

// FilledCircle implements Surface.
func (s *PDFSurface) FilledCircle(cx, cy, radius float64, color string) {
	r, g, b := parseHexColor(color)
	s.pdf.SetFillColor(r, g, b)
	s.pdf.Circle(s.offsetX+cx, s.offsetY+cy, radius, "F")
}

// Text implements Surface. The string is centered horizontally on x.
func (s *PDFSurface) Text(x, y, size float64, text, color string) {
	r, g, b := parseHexColor(color)
	s.pdf.SetTextColor(r, g, b)
	s.pdf.SetFont("Helvetica", "", size)
	w := s.pdf.GetStringWidth(text)
	s.pdf.Text(s.offsetX+x-w/2, s.offsetY+y, text)
}

// parseHexColor converts "#rrggbb" to RGB components. Malformed values
// fall back to black rather than failing a report render.
func parseHexColor(hex string) (r, g, b int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0
	}
	rv, err1 := strconv.ParseInt(hex[1:3], 16, 0)
	gv, err2 := strconv.ParseInt(hex[3:5], 16, 0)
	bv, err3 := strconv.ParseInt(hex[5:7], 16, 0)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0
	}
	return int(rv), int(gv), int(bv)
}

// WriteReport renders the laid-out matrix and an entity legend as a
// single-page PDF. placed must come from Grid.Layout.
func WriteReport(w io.Writer, title string, g Grid, placed []*models.MatrixEntity) error {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(24, 24, 27)
	pdf.Text(40, 50, title)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(82, 82, 91)
	pdf.Text(40, 68, "Likelihood (x) vs. impact (y); high impact plots in the top row.")

	surface := NewPDFSurface(pdf, 60, 90)
	Render(surface, g, placed)

	// Legend: one row per entity with its full name and details.
	y := 90 + g.Height + 30
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(24, 24, 27)
	pdf.Text(40, y, "Entities")
	y += 16

	pdf.SetFont("Helvetica", "", 9)
	for _, e := range placed {
		color := e.Color
		if color == "" {
			color = models.DefaultEntityColor
		}
		r, gr, b := parseHexColor(color)
		pdf.SetFillColor(r, gr, b)
		pdf.Circle(46, y-3, 4, "F")

		pdf.SetTextColor(24, 24, 27)
		line := fmt.Sprintf("%s - likelihood %s, impact %s", e.Name, e.Likelihood, e.Impact)
		if e.Details != "" {
			line += ": " + e.Details
		}
		pdf.Text(56, y, line)
		y += 14
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write risk matrix report: %w", err)
	}
	return nil
}
