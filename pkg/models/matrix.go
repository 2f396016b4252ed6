package models

// Likelihood is the horizontal axis of the risk matrix.
type Likelihood string

// Impact is the vertical axis of the risk matrix.
type Impact string

const (
	LikelihoodLow    Likelihood = "Low"
	LikelihoodMedium Likelihood = "Medium"
	LikelihoodHigh   Likelihood = "High"

	ImpactLow    Impact = "Low"
	ImpactMedium Impact = "Medium"
	ImpactHigh   Impact = "High"
)

// Index returns the column index for the likelihood (0=Low, 1=Medium,
// 2=High) and -1 for unrecognized values.
func (l Likelihood) Index() int {
	switch l {
	case LikelihoodLow:
		return 0
	case LikelihoodMedium:
		return 1
	case LikelihoodHigh:
		return 2
	default:
		return -1
	}
}

// Index returns the row index for the impact. The impact axis is inverted:
// High impact plots in the top row (0), Low in the bottom row (2).
// Returns -1 for unrecognized values.
func (i Impact) Index() int {
	switch i {
	case ImpactHigh:
		return 0
	case ImpactMedium:
		return 1
	case ImpactLow:
		return 2
	default:
		return -1
	}
}

// DefaultEntityColor is used for matrix markers when no color is supplied.
const DefaultEntityColor = "#7c3aed"

// MatrixEntity is a categorically-scored item plotted on the risk matrix.
// X, Y and Radius are layout annotations owned by the renderer: they are
// recomputed on every layout pass and carry no meaning across passes.
type MatrixEntity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Likelihood Likelihood `json:"likelihood"`
	Impact     Impact     `json:"impact"`
	Color      string     `json:"color,omitempty"`
	Details    string     `json:"details,omitempty"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}
