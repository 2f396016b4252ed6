package models

import (
	"time"

	"github.com/google/uuid"
)

// Datasource represents a connected data store that scans run against.
// The Config field contains connection details (host, credentials, bucket
// names, etc.) whose structure varies by datasource type.
type Datasource struct {
	ID             uuid.UUID      `json:"id"`
	ProjectID      uuid.UUID      `json:"project_id"`
	Name           string         `json:"name"`
	DatasourceType string         `json:"datasource_type"` // "postgres", "s3", "mysql", "gcs", etc.
	Config         map[string]any `json:"config"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
