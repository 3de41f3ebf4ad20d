package dto

import (
	"time"

	"github.com/spec-kit/issue-escalation/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RoomID        string `json:"room_id"`
	Subject       string `json:"subject"`
	Description   string `json:"description"`
	ReporterEmail string `json:"reporter_email"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                 `json:"id"`
	TicketCode      string                 `json:"ticket_id"`
	OrganisationID  string                 `json:"organisation_id"`
	RoomID          string                 `json:"room_id"`
	Subject         string                 `json:"subject"`
	Status          domain.TicketStatus    `json:"status"`
	Resolved        bool                   `json:"resolved"`
	EscalationLevel domain.EscalationLevel `json:"escalation_level"`
	AssignedTo      *string                `json:"assigned_to"`
	TATDeadline     *time.Time             `json:"tat_deadline"`
	CreatedOn       time.Time              `json:"created_on"`
	UpdatedOn       time.Time              `json:"updated_on"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description   string                  `json:"description"`
	ReporterEmail *string                 `json:"reporter_email"`
	CreatedBy     string                  `json:"created_by"`
	History       []TicketHistoryResponse `json:"history"`
}

// TicketHistoryResponse is one audit trail row.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByType domain.ActorType        `json:"changed_by_type"`
	ChangedByID   *string                 `json:"changed_by_id"`
	OldValue      map[string]any          `json:"old_value"`
	NewValue      map[string]any          `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}

// ExtensionRequest payload for asking more TAT hours.
type ExtensionRequest struct {
	ExtraHours int    `json:"extra_hours"`
	Reason     string `json:"reason"`
}

// ExtensionResponse represents a TAT extension request.
type ExtensionResponse struct {
	ID                  string                 `json:"id"`
	TicketID            string                 `json:"ticket_id"`
	RequestedBy         string                 `json:"requested_by"`
	CurrentTATHours     int                    `json:"current_tat_hours"`
	RequestedExtraHours int                    `json:"requested_extra_hours"`
	Reason              string                 `json:"reason"`
	Status              domain.ExtensionStatus `json:"status"`
	ReviewedBy          *string                `json:"reviewed_by"`
	CreatedOn           time.Time              `json:"created_on"`
	DecidedOn           *time.Time             `json:"decided_on"`
}
