package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus       TicketChangeType = "STATUS_CHANGE"
	ChangeTypeEscalation   TicketChangeType = "ESCALATION"
	ChangeTypeDeescalation TicketChangeType = "DEESCALATION"
	ChangeTypeDeadline     TicketChangeType = "DEADLINE_CHANGE"
)

// ActorType identifies who made a change.
type ActorType string

const (
	ActorSystem    ActorType = "SYSTEM"
	ActorDirectory ActorType = "DIRECTORY"
	ActorReporter  ActorType = "REPORTER"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByType ActorType
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
