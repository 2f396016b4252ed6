package models

import (
	"time"

	"github.com/google/uuid"
)

// Scan statuses. A scan moves queued -> running -> completed/failed.
const (
	ScanQueued    = "queued"
	ScanRunning   = "running"
	ScanCompleted = "completed"
	ScanFailed    = "failed"
)

// ScanJob tracks one detection run against a datasource.
type ScanJob struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	DatasourceID uuid.UUID  `json:"datasource_id"`
	Status       string     `json:"status"`
	FindingCount int        `json:"finding_count"` // findings ingested by this run
	Error        string     `json:"error,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Terminal reports whether the scan has reached a final state.
func (s *ScanJob) Terminal() bool {
	return s.Status == ScanCompleted || s.Status == ScanFailed
}
