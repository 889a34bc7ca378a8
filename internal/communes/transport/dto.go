package transport

import "github.com/google/uuid"

// CreateCommuneRequest contains data for creating a new commune.
type CreateCommuneRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Region      string  `json:"region" validate:"required,min=1,max=100"`
	Department  string  `json:"department" validate:"required,min=1,max=100"`
}

// UpdateCommuneRequest contains data for updating an existing commune.
type UpdateCommuneRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Region      *string `json:"region,omitempty" validate:"omitempty,min=1,max=100"`
	Department  *string `json:"department,omitempty" validate:"omitempty,min=1,max=100"`
}

// CommuneResponse represents a commune in API responses.
type CommuneResponse struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       *string   `json:"description,omitempty"`
	Region            string    `json:"region"`
	Department        string    `json:"department"`
	IsActive          bool      `json:"isActive"`
	TotalRequests     int       `json:"totalRequests"`
	CompletedRequests int       `json:"completedRequests"`
	PendingRequests   int       `json:"pendingRequests"`
	CreatedAt         string    `json:"createdAt"`
	UpdatedAt         string    `json:"updatedAt"`
}

// CommuneListResponse wraps a list of communes.
type CommuneListResponse struct {
	Items []CommuneResponse `json:"items"`
	Total int               `json:"total"`
}
