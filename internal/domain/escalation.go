package domain

import "time"

// EscalationLevel ranks the tier that currently owns a ticket.
type EscalationLevel int

const (
	LevelRoom    EscalationLevel = 0
	LevelSub     EscalationLevel = 1
	LevelCentral EscalationLevel = 2

	// LevelCeiling is the highest level; tickets there never escalate.
	LevelCeiling = LevelCentral
)

// Valid reports whether l lies within 0..LevelCeiling.
func (l EscalationLevel) Valid() bool {
	return l >= LevelRoom && l <= LevelCeiling
}

// NoopReason explains why an escalation attempt did not transition.
type NoopReason string

const (
	ReasonResolvedOrClosed NoopReason = "resolved_or_closed"
	ReasonAtCeiling        NoopReason = "already_at_ceiling"
	ReasonNoOwner          NoopReason = "no_available_owner"
	// ReasonConcurrentUpdate means the row changed between read and write.
	ReasonConcurrentUpdate NoopReason = "concurrent_update"
)

// EscalationResult is the outcome of one escalation attempt.
type EscalationResult struct {
	TicketID   string          `json:"ticket_id"`
	TicketCode string          `json:"ticket_code"`
	Escalated  bool            `json:"escalated"`
	From       EscalationLevel `json:"from"`
	To         EscalationLevel `json:"to"`
	Reason     NoopReason      `json:"reason,omitempty"`
	AssignedTo *string         `json:"assigned_to,omitempty"`
}

// SweepTrigger names what started a sweep.
type SweepTrigger string

const (
	TriggerScheduler SweepTrigger = "scheduler"
	TriggerHTTP      SweepTrigger = "http"
	TriggerCLI       SweepTrigger = "cli"
)

// SweepSummary aggregates one sweep over overdue tickets.
type SweepSummary struct {
	Trigger    SweepTrigger `json:"trigger"`
	Checked    int          `json:"checked"`
	Escalated  int          `json:"escalated"`
	Errors     []string     `json:"errors"`
	Skipped    bool         `json:"skipped"`
	Cancelled  bool         `json:"cancelled"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}
