package events

import (
	"time"

	"github.com/spec-kit/issue-escalation/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketDeescalated   EventType = "ticket_deescalated"
	EventExtensionRequested  EventType = "extension_requested"
	EventExtensionDecided    EventType = "extension_decided"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	ID   *string          `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload carries what the intake emails need.
type TicketCreatedPayload struct {
	TicketCode    string     `json:"ticket_code"`
	Subject       string     `json:"subject"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	ReporterEmail string     `json:"reporter_email,omitempty"`
	InchargeEmail string     `json:"incharge_email,omitempty"`
	TATDeadline   *time.Time `json:"tat_deadline,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Resolved  bool                `json:"resolved"`
}

// TicketEscalatedPayload mirrors a successful escalation result.
type TicketEscalatedPayload struct {
	From       domain.EscalationLevel `json:"from"`
	To         domain.EscalationLevel `json:"to"`
	AssignedTo *string                `json:"assigned_to,omitempty"`
}

// TicketDeescalatedPayload payload.
type TicketDeescalatedPayload struct {
	TicketCode    string                 `json:"ticket_code"`
	FromLevel     domain.EscalationLevel `json:"from_level"`
	InchargeEmail string                 `json:"incharge_email,omitempty"`
	TATDeadline   *time.Time             `json:"tat_deadline,omitempty"`
}

// ExtensionRequestedPayload payload.
type ExtensionRequestedPayload struct {
	RequestID  string `json:"request_id"`
	ExtraHours int    `json:"extra_hours"`
	Reason     string `json:"reason"`
}

// ExtensionDecidedPayload payload.
type ExtensionDecidedPayload struct {
	RequestID      string                 `json:"request_id"`
	TicketCode     string                 `json:"ticket_code"`
	Status         domain.ExtensionStatus `json:"status"`
	ExtraHours     int                    `json:"extra_hours"`
	RequesterEmail string                 `json:"requester_email,omitempty"`
	TATDeadline    *time.Time             `json:"tat_deadline,omitempty"`
}
