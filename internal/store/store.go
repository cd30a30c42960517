package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid alert status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, int, error)
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string, opts ...AlertUpdateOption) error
}

type AlertFilter struct {
	TenantID uuid.UUID
	Source   string
	Severity string
	Status   string
	Since    time.Time
	Page     int
	Limit    int
}

type alertUpdateParams struct {
	AssignedTo *string
}

type AlertUpdateOption func(*alertUpdateParams)

func WithAssignee(name string) AlertUpdateOption {
	return func(p *alertUpdateParams) {
		p.AssignedTo = &name
	}
}
