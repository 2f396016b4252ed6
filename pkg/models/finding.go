package models

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the ordinal severity classification assigned to a finding.
type RiskLevel string

const (
	RiskHigh          RiskLevel = "High"
	RiskMedium        RiskLevel = "Medium"
	RiskLow           RiskLevel = "Low"
	RiskInformational RiskLevel = "Informational"
)

// Rank returns a numeric weight for sorting (higher = more severe).
// Unrecognized levels rank 0, same as Informational, so comparisons
// involving unknown values stay well-defined instead of producing
// incomparable results.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	case RiskInformational:
		return 0
	default:
		return 0
	}
}

// Known returns true if the level is one of the four recognized values.
func (r RiskLevel) Known() bool {
	switch r {
	case RiskHigh, RiskMedium, RiskLow, RiskInformational:
		return true
	}
	return false
}

func (r RiskLevel) String() string {
	return string(r)
}

// ParseRiskLevel normalises scanner-specific risk strings to RiskLevel.
// Unrecognized strings are returned unchanged so callers can surface them;
// Rank() treats them as the lowest severity.
func ParseRiskLevel(raw string) RiskLevel {
	switch raw {
	case "High", "HIGH", "high", "CRITICAL", "critical":
		return RiskHigh
	case "Medium", "MEDIUM", "medium", "MODERATE", "moderate":
		return RiskMedium
	case "Low", "LOW", "low":
		return RiskLow
	case "Informational", "INFO", "info", "informational":
		return RiskInformational
	default:
		return RiskLevel(raw)
	}
}

// Finding statuses. The set is open-ended: scanners may report statuses
// outside this list and they are stored verbatim.
const (
	StatusActive       = "Active"
	StatusResolved     = "Resolved"
	StatusUnderReview  = "Under Review"
	StatusAcknowledged = "Acknowledged"
)

// Finding represents a single detected-risk record surfaced by a scan.
type Finding struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	FindingType  string     `json:"finding_type"` // detection technique or data category
	Location     string     `json:"location"`     // store + path/column where detected
	RiskLevel    RiskLevel  `json:"risk_level"`
	Confidence   float64    `json:"confidence"` // percentage, 0-100
	Count        int        `json:"count"`      // occurrence count, non-negative
	LastDetected *time.Time `json:"last_detected,omitempty"`
	Status       string     `json:"status"`
	DataStore    string     `json:"data_store"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
