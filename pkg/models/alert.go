package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AlertStatusOpen          = "open"
	AlertStatusInvestigating = "investigating"
	AlertStatusResolved      = "resolved"
	AlertStatusFalsePositive = "false_positive"
)

// Alert is an analyst-facing record promoted from an anomalous detection
// result. Alerts live in Postgres and carry a status lifecycle; the raw
// anomaly records in the result store expire on their own.
type Alert struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	TenantID    uuid.UUID `db:"tenant_id"    json:"tenant_id"`
	Timestamp   time.Time `db:"timestamp"    json:"timestamp"`
	Source      Source    `db:"source"       json:"source"`
	Severity    Severity  `db:"severity"     json:"severity"`
	Title       string    `db:"title"        json:"title"`
	Description string    `db:"description"  json:"description"`
	Score       float64   `db:"score"        json:"score"`
	Status      string    `db:"status"       json:"status"`
	AssignedTo  *string   `db:"assigned_to"  json:"assigned_to,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}
