package transport

import "github.com/google/uuid"

// CreateRequestRequest contains data for submitting a document request.
// Death-related and declarant fields are required for death certificates
// and declarations; the service enforces that.
type CreateRequestRequest struct {
	CommuneID      string `json:"communeId" validate:"required,uuid"`
	DocumentType   string `json:"documentType" validate:"required"`
	DeliveryMethod string `json:"deliveryMethod" validate:"required"`

	FullName    string  `json:"fullName" validate:"required,min=1,max=200"`
	BirthDate   string  `json:"birthDate" validate:"required,datetime=2006-01-02"`
	BirthPlace  string  `json:"birthPlace" validate:"required,min=1,max=200"`
	FatherName  string  `json:"fatherName" validate:"required,min=1,max=200"`
	MotherName  string  `json:"motherName" validate:"required,min=1,max=200"`
	PhoneNumber string  `json:"phoneNumber" validate:"required,min=6,max=20"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=300"`

	DeathDate         *string `json:"deathDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DeathPlace        *string `json:"deathPlace,omitempty" validate:"omitempty,max=200"`
	DeathCause        *string `json:"deathCause,omitempty" validate:"omitempty,max=300"`
	DeclarantName     *string `json:"declarantName,omitempty" validate:"omitempty,max=200"`
	DeclarantRelation *string `json:"declarantRelation,omitempty" validate:"omitempty,max=100"`
}

// UpdateRequestRequest edits applicant details while a request is still
// pending. Document type, delivery method and prices are frozen at
// creation and cannot be changed here.
type UpdateRequestRequest struct {
	FullName    *string `json:"fullName,omitempty" validate:"omitempty,min=1,max=200"`
	BirthDate   *string `json:"birthDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	BirthPlace  *string `json:"birthPlace,omitempty" validate:"omitempty,min=1,max=200"`
	FatherName  *string `json:"fatherName,omitempty" validate:"omitempty,min=1,max=200"`
	MotherName  *string `json:"motherName,omitempty" validate:"omitempty,min=1,max=200"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,min=6,max=20"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=300"`

	DeathDate         *string `json:"deathDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DeathPlace        *string `json:"deathPlace,omitempty" validate:"omitempty,max=200"`
	DeathCause        *string `json:"deathCause,omitempty" validate:"omitempty,max=300"`
	DeclarantName     *string `json:"declarantName,omitempty" validate:"omitempty,max=200"`
	DeclarantRelation *string `json:"declarantRelation,omitempty" validate:"omitempty,max=100"`
}

// UpdateStatusRequest carries a lifecycle transition by an agent or admin.
type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note,omitempty" validate:"omitempty,min=1,max=1000"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,min=1,max=500"`
}

// CancelRequestRequest carries a citizen cancellation.
type CancelRequestRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// AddNoteRequest attaches a processing note.
type AddNoteRequest struct {
	Content string `json:"content" validate:"required,min=1,max=1000"`
}

// ListRequestsQuery filters request listings.
type ListRequestsQuery struct {
	Status       string `form:"status"`
	DocumentType string `form:"documentType"`
	CommuneID    string `form:"communeId"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// RequestResponse represents a request in API responses.
type RequestResponse struct {
	ID           uuid.UUID  `json:"id"`
	CitizenID    uuid.UUID  `json:"citizenId"`
	AgentID      *uuid.UUID `json:"agentId,omitempty"`
	CommuneID    uuid.UUID  `json:"communeId"`
	DocumentType string     `json:"documentType"`
	Status       string     `json:"status"`

	FullName    string  `json:"fullName"`
	BirthDate   string  `json:"birthDate"`
	BirthPlace  string  `json:"birthPlace"`
	FatherName  string  `json:"fatherName"`
	MotherName  string  `json:"motherName"`
	PhoneNumber string  `json:"phoneNumber"`
	Address     *string `json:"address,omitempty"`

	DeathDate         *string `json:"deathDate,omitempty"`
	DeathPlace        *string `json:"deathPlace,omitempty"`
	DeathCause        *string `json:"deathCause,omitempty"`
	DeclarantName     *string `json:"declarantName,omitempty"`
	DeclarantRelation *string `json:"declarantRelation,omitempty"`

	DeliveryMethod string `json:"deliveryMethod"`
	DocumentPrice  int64  `json:"documentPrice"`
	DeliveryFee    int64  `json:"deliveryFee"`
	TotalPrice     int64  `json:"totalPrice"`

	PaymentStatus        string  `json:"paymentStatus"`
	PaymentState         string  `json:"paymentState"`
	PaymentAmount        *int64  `json:"paymentAmount,omitempty"`
	PaymentMethod        *string `json:"paymentMethod,omitempty"`
	PaymentDate          *string `json:"paymentDate,omitempty"`
	PaymentTransactionID *string `json:"paymentTransactionId,omitempty"`

	IdentityDocumentURL *string `json:"identityDocumentUrl,omitempty"`
	DocumentURL         *string `json:"documentUrl,omitempty"`

	SubmittedAt     string  `json:"submittedAt"`
	ProcessedAt     *string `json:"processedAt,omitempty"`
	CompletedAt     *string `json:"completedAt,omitempty"`
	RejectedAt      *string `json:"rejectedAt,omitempty"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
}

// RequestListResponse wraps a paginated list of requests.
type RequestListResponse struct {
	Items      []RequestResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

// NoteResponse represents a processing note.
type NoteResponse struct {
	ID        uuid.UUID `json:"id"`
	Seq       int       `json:"seq"`
	Content   string    `json:"content"`
	AuthorID  uuid.UUID `json:"authorId"`
	CreatedAt string    `json:"createdAt"`
}

// NoteListResponse wraps the notes of one request.
type NoteListResponse struct {
	Items []NoteResponse `json:"items"`
}
