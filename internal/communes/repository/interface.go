package repository

import (
	"context"

	"github.com/google/uuid"
)

// Commune represents a municipality served by the platform.
type Commune struct {
	ID                uuid.UUID `db:"id"`
	Name              string    `db:"name"`
	Description       *string   `db:"description"`
	Region            string    `db:"region"`
	Department        string    `db:"department"`
	IsActive          bool      `db:"is_active"`
	TotalRequests     int       `db:"total_requests"`
	CompletedRequests int       `db:"completed_requests"`
	PendingRequests   int       `db:"pending_requests"`
	CreatedAt         string    `db:"created_at"`
	UpdatedAt         string    `db:"updated_at"`
}

// CreateParams contains parameters for creating a commune.
type CreateParams struct {
	Name        string
	Description *string
	Region      string
	Department  string
}

// UpdateParams contains parameters for updating a commune.
// Nil fields keep their current value.
type UpdateParams struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	Region      *string
	Department  *string
}

// CommuneReader provides read operations for communes.
type CommuneReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Commune, error)
	GetByName(ctx context.Context, name string) (Commune, error)
	List(ctx context.Context) ([]Commune, error)
	ListActive(ctx context.Context) ([]Commune, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// CommuneWriter provides write operations for communes.
type CommuneWriter interface {
	Create(ctx context.Context, params CreateParams) (Commune, error)
	Update(ctx context.Context, params UpdateParams) (Commune, error)
	SetActive(ctx context.Context, id uuid.UUID, isActive bool) error
	Upsert(ctx context.Context, params CreateParams) (Commune, error)
}

// CounterWriter adjusts the per-commune request counters.
type CounterWriter interface {
	IncrementRequestCounters(ctx context.Context, id uuid.UUID) error
	MarkRequestCompleted(ctx context.Context, id uuid.UUID) error
	MarkRequestClosed(ctx context.Context, id uuid.UUID) error
}

// Repository combines all commune repository operations.
type Repository interface {
	CommuneReader
	CommuneWriter
	CounterWriter
}
