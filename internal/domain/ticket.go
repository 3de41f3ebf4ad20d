package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusEscalated  TicketStatus = "escalated"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusEscalated, TicketStatusClosed:
		return true
	}
	return false
}

// Ticket is the aggregate for reported issues.
type Ticket struct {
	ID              string
	TicketCode      string
	OrganisationID  string
	RoomID          string
	CreatedBy       string
	ReporterEmail   *string
	Subject         string
	Description     string
	Status          TicketStatus
	Resolved        bool
	EscalationLevel EscalationLevel
	AssignedTo      *string
	TATDeadline     *time.Time
	CreatedOn       time.Time
	UpdatedOn       time.Time
}

// Terminal reports whether the ticket is done and can no longer escalate.
func (t *Ticket) Terminal() bool {
	return t.Resolved || t.Status == TicketStatusClosed
}

// Overdue reports whether the TAT deadline has passed at now.
func (t *Ticket) Overdue(now time.Time) bool {
	return t.TATDeadline != nil && t.TATDeadline.Before(now)
}
