// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"civildocs_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Auth Domain Events
// =============================================================================

// UserRegistered is published when a citizen completes self-registration.
type UserRegistered struct {
	BaseEvent
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
}

func (e UserRegistered) EventName() string { return "auth.user.registered" }

// AgentCreated is published when an admin provisions a new agent account.
type AgentCreated struct {
	BaseEvent
	AgentID   uuid.UUID `json:"agentId"`
	CommuneID uuid.UUID `json:"communeId"`
	Email     string    `json:"email"`
}

func (e AgentCreated) EventName() string { return "agents.agent.created" }

// =============================================================================
// Request Domain Events
// =============================================================================

// RequestCreated is published when a citizen submits a new document request.
type RequestCreated struct {
	BaseEvent
	RequestID    uuid.UUID  `json:"requestId"`
	CitizenID    uuid.UUID  `json:"citizenId"`
	CommuneID    uuid.UUID  `json:"communeId"`
	AgentID      *uuid.UUID `json:"agentId,omitempty"`
	DocumentType string     `json:"documentType"`
	TotalPrice   int64      `json:"totalPrice"`
}

func (e RequestCreated) EventName() string { return "requests.created" }

// RequestAssigned is published when the assignment engine binds an agent.
type RequestAssigned struct {
	BaseEvent
	RequestID uuid.UUID `json:"requestId"`
	AgentID   uuid.UUID `json:"agentId"`
	CommuneID uuid.UUID `json:"communeId"`
}

func (e RequestAssigned) EventName() string { return "requests.assigned" }

// RequestReassigned is published when a request moves to a different agent.
type RequestReassigned struct {
	BaseEvent
	RequestID       uuid.UUID `json:"requestId"`
	PreviousAgentID uuid.UUID `json:"previousAgentId"`
	NewAgentID      uuid.UUID `json:"newAgentId"`
	CommuneID       uuid.UUID `json:"communeId"`
}

func (e RequestReassigned) EventName() string { return "requests.reassigned" }

// RequestStatusChanged is published on every lifecycle transition.
type RequestStatusChanged struct {
	BaseEvent
	RequestID    uuid.UUID `json:"requestId"`
	CitizenID    uuid.UUID `json:"citizenId"`
	CommuneID    uuid.UUID `json:"communeId"`
	ActorID      uuid.UUID `json:"actorId"`
	DocumentType string    `json:"documentType"`
	OldStatus    string    `json:"oldStatus"`
	NewStatus    string    `json:"newStatus"`
	Note         string    `json:"note,omitempty"`
}

func (e RequestStatusChanged) EventName() string { return "requests.status.changed" }

// =============================================================================
// Payment Domain Events
// =============================================================================

// PaymentStatusChanged is published when a gateway outcome is first applied
// to a request. Duplicate gateway callbacks do not re-publish this event.
type PaymentStatusChanged struct {
	BaseEvent
	RequestID     uuid.UUID `json:"requestId"`
	CitizenID     uuid.UUID `json:"citizenId"`
	IntentID      string    `json:"intentId"`
	TransactionID string    `json:"transactionId"`
	Outcome       string    `json:"outcome"`
	Amount        int64     `json:"amount"`
}

func (e PaymentStatusChanged) EventName() string { return "payments.status.changed" }

// =============================================================================
// Document Domain Events
// =============================================================================

// DocumentGenerated is published when a certificate PDF has been rendered
// and stored for a completed request.
type DocumentGenerated struct {
	BaseEvent
	RequestID    uuid.UUID `json:"requestId"`
	CitizenID    uuid.UUID `json:"citizenId"`
	DocumentType string    `json:"documentType"`
	DocumentURL  string    `json:"documentUrl"`
}

func (e DocumentGenerated) EventName() string { return "documents.generated" }
