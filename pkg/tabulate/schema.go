package tabulate

import (
	"strconv"

	"github.com/sentra-security/sentra-engine/pkg/models"
)

// Field names accepted in filter specs, sort keys and search field lists.
// They match the JSON names the API exposes.
const (
	FieldRiskLevel    = "risk_level"
	FieldFindingType  = "finding_type"
	FieldLocation     = "location"
	FieldConfidence   = "confidence"
	FieldCount        = "count"
	FieldLastDetected = "last_detected"
	FieldStatus       = "status"
	FieldDataStore    = "data_store"
)

// Accessor extracts one field from a finding. String must always be set
// and returns the display form plus whether the value is present at all.
// Number and Rank are optional refinements: Number marks the field as
// numeric for sorting, Rank marks it as ordinal (compared by rank, never
// lexicographically).
type Accessor struct {
	String func(*models.Finding) (string, bool)
	Number func(*models.Finding) (float64, bool)
	Rank   func(*models.Finding) int
}

// Schema maps field names to accessors. Filtering or sorting on a field
// absent from the schema matches nothing and sorts nothing.
type Schema map[string]Accessor

// FindingSchema returns the accessor table for finding records.
func FindingSchema() Schema {
	return Schema{
		FieldRiskLevel: {
			String: func(f *models.Finding) (string, bool) {
				return string(f.RiskLevel), f.RiskLevel != ""
			},
			Rank: func(f *models.Finding) int { return f.RiskLevel.Rank() },
		},
		FieldFindingType: {
			String: func(f *models.Finding) (string, bool) {
				return f.FindingType, f.FindingType != ""
			},
		},
		FieldLocation: {
			String: func(f *models.Finding) (string, bool) {
				return f.Location, f.Location != ""
			},
		},
		FieldConfidence: {
			String: func(f *models.Finding) (string, bool) {
				return strconv.FormatFloat(f.Confidence, 'f', -1, 64), true
			},
			Number: func(f *models.Finding) (float64, bool) { return f.Confidence, true },
		},
		FieldCount: {
			String: func(f *models.Finding) (string, bool) {
				return strconv.Itoa(f.Count), true
			},
			Number: func(f *models.Finding) (float64, bool) { return float64(f.Count), true },
		},
		FieldLastDetected: {
			// Nullable: absent timestamps render as "N/A" in the UI and
			// sort before every concrete timestamp.
			String: func(f *models.Finding) (string, bool) {
				if f.LastDetected == nil {
					return "", false
				}
				return f.LastDetected.UTC().Format("2006-01-02T15:04:05Z07:00"), true
			},
		},
		FieldStatus: {
			String: func(f *models.Finding) (string, bool) {
				return f.Status, f.Status != ""
			},
		},
		FieldDataStore: {
			String: func(f *models.Finding) (string, bool) {
				return f.DataStore, f.DataStore != ""
			},
		},
	}
}

// FilterableFields are the fields offered as dropdown filters, in display
// order.
func FilterableFields() []string {
	return []string{FieldRiskLevel, FieldFindingType, FieldStatus, FieldDataStore}
}

// SearchableFields are the fields matched by free-text search.
func SearchableFields() []string {
	return []string{FieldFindingType, FieldLocation, FieldDataStore, FieldStatus}
}

// Findings returns an engine configured for the standard findings table.
func Findings() *Engine {
	return NewEngine(FindingSchema(), FilterableFields(), SearchableFields())
}
