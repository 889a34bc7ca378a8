package repository

import (
	"context"

	"github.com/google/uuid"
)

// Request represents a civil document request row.
type Request struct {
	ID           uuid.UUID  `db:"id"`
	CitizenID    uuid.UUID  `db:"citizen_id"`
	AgentID      *uuid.UUID `db:"agent_id"`
	CommuneID    uuid.UUID  `db:"commune_id"`
	DocumentType string     `db:"document_type"`
	Status       string     `db:"status"`

	FullName    string  `db:"full_name"`
	BirthDate   string  `db:"birth_date"`
	BirthPlace  string  `db:"birth_place"`
	FatherName  string  `db:"father_name"`
	MotherName  string  `db:"mother_name"`
	PhoneNumber string  `db:"phone_number"`
	Address     *string `db:"address"`

	DeathDate         *string `db:"death_date"`
	DeathPlace        *string `db:"death_place"`
	DeathCause        *string `db:"death_cause"`
	DeclarantName     *string `db:"declarant_name"`
	DeclarantRelation *string `db:"declarant_relation"`

	DeliveryMethod string `db:"delivery_method"`
	DocumentPrice  int64  `db:"document_price"`
	DeliveryFee    int64  `db:"delivery_fee"`
	TotalPrice     int64  `db:"total_price"`

	PaymentStatus        string  `db:"payment_status"`
	PaymentState         string  `db:"payment_state"`
	PaymentAmount        *int64  `db:"payment_amount"`
	PaymentMethod        *string `db:"payment_method"`
	PaymentDate          *string `db:"payment_date"`
	PaymentTransactionID *string `db:"payment_transaction_id"`
	PaymentIntentID      *string `db:"payment_intent_id"`

	IdentityDocumentURL *string `db:"identity_document_url"`
	DocumentURL         *string `db:"document_url"`

	SubmittedAt     string  `db:"submitted_at"`
	ProcessedAt     *string `db:"processed_at"`
	CompletedAt     *string `db:"completed_at"`
	RejectedAt      *string `db:"rejected_at"`
	RejectionReason *string `db:"rejection_reason"`

	Version   int    `db:"version"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

// Note is an internal processing note attached to a request.
type Note struct {
	ID        uuid.UUID `db:"id"`
	RequestID uuid.UUID `db:"request_id"`
	Seq       int       `db:"seq"`
	Content   string    `db:"content"`
	AuthorID  uuid.UUID `db:"author_id"`
	CreatedAt string    `db:"created_at"`
}

// CreateParams contains parameters for creating a request. Prices are
// computed by the service and frozen at creation.
type CreateParams struct {
	CitizenID    uuid.UUID
	AgentID      *uuid.UUID
	CommuneID    uuid.UUID
	DocumentType string

	FullName    string
	BirthDate   string
	BirthPlace  string
	FatherName  string
	MotherName  string
	PhoneNumber string
	Address     *string

	DeathDate         *string
	DeathPlace        *string
	DeathCause        *string
	DeclarantName     *string
	DeclarantRelation *string

	DeliveryMethod string
	DocumentPrice  int64
	DeliveryFee    int64
	TotalPrice     int64
}

// UpdateDetailsParams edits applicant details under a version check.
// Nil fields keep their current value; identity, pricing and lifecycle
// columns are not touchable through this path.
type UpdateDetailsParams struct {
	ID      uuid.UUID
	Version int

	FullName    *string
	BirthDate   *string
	BirthPlace  *string
	FatherName  *string
	MotherName  *string
	PhoneNumber *string
	Address     *string

	DeathDate         *string
	DeathPlace        *string
	DeathCause        *string
	DeclarantName     *string
	DeclarantRelation *string
}

// UpdateStatusParams carries a version-checked lifecycle transition.
type UpdateStatusParams struct {
	ID              uuid.UUID
	Version         int
	NewStatus       string
	RejectionReason *string
}

// ListParams filters and paginates request listings.
type ListParams struct {
	Status       *string
	DocumentType *string
	CommuneID    *uuid.UUID
	Page         int
	PageSize     int
}

// StatusCounts aggregates requests per lifecycle state.
type StatusCounts struct {
	Total      int   `json:"total"`
	Pending    int   `json:"pending"`
	Processing int   `json:"processing"`
	Completed  int   `json:"completed"`
	Rejected   int   `json:"rejected"`
	PaidAmount int64 `json:"paidAmount"`
}

// RequestReader provides read operations for requests.
type RequestReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Request, error)
	ListByCitizen(ctx context.Context, citizenID uuid.UUID, params ListParams) ([]Request, int, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID, params ListParams) ([]Request, int, error)
	ListAll(ctx context.Context, params ListParams) ([]Request, int, error)
	StatsForCitizen(ctx context.Context, citizenID uuid.UUID) (StatusCounts, error)
	StatsForAgent(ctx context.Context, agentID uuid.UUID) (StatusCounts, error)
	StatsGlobal(ctx context.Context, communeID *uuid.UUID) (StatusCounts, error)
}

// RequestWriter provides write operations for requests.
type RequestWriter interface {
	Create(ctx context.Context, params CreateParams) (Request, error)
	UpdateDetails(ctx context.Context, params UpdateDetailsParams) (Request, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (Request, error)
	AssignAgent(ctx context.Context, id uuid.UUID, agentID uuid.UUID) (Request, error)
	SetIdentityDocument(ctx context.Context, id uuid.UUID, fileKey string) error
	SetDocumentURL(ctx context.Context, id uuid.UUID, fileKey string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// NoteStore provides request note operations.
type NoteStore interface {
	AddNote(ctx context.Context, requestID, authorID uuid.UUID, content string) (Note, error)
	ListNotes(ctx context.Context, requestID uuid.UUID) ([]Note, error)
}

// Repository combines all request repository operations.
type Repository interface {
	RequestReader
	RequestWriter
	NoteStore
}
