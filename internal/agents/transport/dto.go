package transport

import "github.com/google/uuid"

// CreateAgentRequest contains data for provisioning an agent account.
type CreateAgentRequest struct {
	FirstName        string  `json:"firstName" validate:"required,min=1,max=100"`
	LastName         string  `json:"lastName" validate:"required,min=1,max=100"`
	Email            string  `json:"email" validate:"required,email"`
	Password         string  `json:"password" validate:"required,min=8,max=72"`
	PhoneNumber      *string `json:"phoneNumber,omitempty" validate:"omitempty,min=6,max=20"`
	CommuneID        string  `json:"communeId" validate:"required,uuid"`
	MaxDailyRequests *int    `json:"maxDailyRequests,omitempty" validate:"omitempty,min=1,max=200"`
}

// UpdateAgentRequest contains mutable agent fields.
type UpdateAgentRequest struct {
	FirstName        *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName         *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	PhoneNumber      *string `json:"phoneNumber,omitempty" validate:"omitempty,min=6,max=20"`
	CommuneID        *string `json:"communeId,omitempty" validate:"omitempty,uuid"`
	MaxDailyRequests *int    `json:"maxDailyRequests,omitempty" validate:"omitempty,min=1,max=200"`
}

// AgentResponse represents an agent in API responses, including live
// quota state.
type AgentResponse struct {
	ID                uuid.UUID `json:"id"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Email             string    `json:"email"`
	PhoneNumber       *string   `json:"phoneNumber,omitempty"`
	CommuneID         uuid.UUID `json:"communeId"`
	MaxDailyRequests  int       `json:"maxDailyRequests"`
	DailyRequestCount int       `json:"dailyRequestCount"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         string    `json:"createdAt"`
}

// AgentListResponse wraps a list of agents.
type AgentListResponse struct {
	Items []AgentResponse `json:"items"`
	Total int             `json:"total"`
}
