// Package models contains domain types for sentra-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project statuses.
const (
	ProjectActive   = "active"
	ProjectArchived = "archived"
)

// Project is the tenant boundary: datasources, findings, scans, and
// memberships all hang off a project.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
