package notification

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/observability"
)

// Enqueuer accepts a message for asynchronous delivery.
type Enqueuer interface {
	Enqueue(msg Message) error
}

// NotifyError describes a notification that could not be handed off. It is
// logged and dropped; escalation never sees it.
type NotifyError struct {
	TicketCode string
	Recipient  string
	Err        error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify %s about %s: %v", e.Recipient, e.TicketCode, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// EscalationNotifier tells a new owner that a ticket has been escalated to them.
type EscalationNotifier struct {
	mailer  Enqueuer
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewEscalationNotifier builds the notifier. A nil mailer disables delivery.
func NewEscalationNotifier(mailer Enqueuer, logger *zap.Logger, metrics *observability.Metrics) *EscalationNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationNotifier{mailer: mailer, logger: logger, metrics: metrics}
}

// NotifyEscalation queues the "escalated to you" email for owner. Owners
// without an address are skipped.
func (n *EscalationNotifier) NotifyEscalation(_ context.Context, ticket domain.Ticket, owner domain.DirectoryEntry) {
	if err := n.notify(ticket, owner); err != nil {
		n.logger.Warn("escalation notification not sent",
			zap.String("ticket_id", ticket.ID),
			zap.String("owner_id", owner.ID),
			zap.Error(err),
		)
	}
}

func (n *EscalationNotifier) notify(ticket domain.Ticket, owner domain.DirectoryEntry) *NotifyError {
	email := strings.TrimSpace(owner.Email)
	if email == "" {
		n.metrics.RecordNotification("skipped")
		return nil
	}
	if n.mailer == nil {
		n.metrics.RecordNotification("skipped")
		return nil
	}
	msg, err := RenderEscalated(EscalatedData{TicketCode: ticket.TicketCode})
	if err != nil {
		return &NotifyError{TicketCode: ticket.TicketCode, Recipient: email, Err: err}
	}
	if err := n.mailer.Enqueue(Message{
		ID:        "escalation:" + ticket.ID + ":" + owner.ID,
		Receivers: []string{email},
		Subject:   msg.Subject,
		Body:      msg.Body,
	}); err != nil {
		return &NotifyError{TicketCode: ticket.TicketCode, Recipient: email, Err: err}
	}
	return nil
}
