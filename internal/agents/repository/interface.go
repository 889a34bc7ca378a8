package repository

import (
	"context"

	"github.com/google/uuid"
)

// Agent represents an agent account with its daily quota state. Agents are
// rows in the users table with role 'agent' and a mandatory commune.
type Agent struct {
	ID                    uuid.UUID `db:"id"`
	FirstName             string    `db:"first_name"`
	LastName              string    `db:"last_name"`
	Email                 string    `db:"email"`
	PhoneNumber           *string   `db:"phone_number"`
	CommuneID             uuid.UUID `db:"commune_id"`
	MaxDailyRequests      int       `db:"max_daily_requests"`
	DailyRequestCount     int       `db:"daily_request_count"`
	LastRequestCountReset string    `db:"last_request_count_reset"`
	IsActive              bool      `db:"is_active"`
	CreatedAt             string    `db:"created_at"`
}

// CreateParams contains parameters for provisioning an agent account.
type CreateParams struct {
	FirstName        string
	LastName         string
	Email            string
	PasswordHash     string
	PhoneNumber      *string
	CommuneID        uuid.UUID
	MaxDailyRequests int
}

// UpdateParams contains mutable agent fields. Nil fields keep their value.
type UpdateParams struct {
	ID               uuid.UUID
	FirstName        *string
	LastName         *string
	PhoneNumber      *string
	CommuneID        *uuid.UUID
	MaxDailyRequests *int
}

// CommuneAgentStats aggregates quota load for one commune.
type CommuneAgentStats struct {
	CommuneID      uuid.UUID `json:"communeId"`
	ActiveAgents   int       `json:"activeAgents"`
	TotalCapacity  int       `json:"totalCapacity"`
	AssignedToday  int       `json:"assignedToday"`
	SaturatedCount int       `json:"saturatedCount"`
}

// Repository defines agent directory persistence operations.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Agent, error)
	GetByID(ctx context.Context, id uuid.UUID) (Agent, error)
	List(ctx context.Context) ([]Agent, error)
	ListByCommune(ctx context.Context, communeID uuid.UUID) ([]Agent, error)
	Update(ctx context.Context, params UpdateParams) (Agent, error)
	SetActive(ctx context.Context, id uuid.UUID, isActive bool) error
	StatsByCommune(ctx context.Context, communeID uuid.UUID) (CommuneAgentStats, error)
}
