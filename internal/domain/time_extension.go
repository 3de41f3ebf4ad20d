package domain

import "time"

// ExtensionStatus enumerates TAT extension request states.
type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "pending"
	ExtensionApproved ExtensionStatus = "approved"
	ExtensionRejected ExtensionStatus = "rejected"
)

// TimeExtensionRequest asks for more hours on a ticket's TAT deadline.
type TimeExtensionRequest struct {
	ID                  string
	TicketID            string
	RequestedBy         string
	CurrentTATHours     int
	RequestedExtraHours int
	Reason              string
	Status              ExtensionStatus
	ReviewedBy          *string
	CreatedOn           time.Time
	DecidedOn           *time.Time
}
