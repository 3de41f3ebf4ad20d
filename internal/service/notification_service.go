package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/events"
	"github.com/spec-kit/issue-escalation/internal/notification"
)

// NotificationService turns domain events into queued emails.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     notification.Enqueuer
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil mailer logs events only.
func NewNotificationService(dispatcher events.Dispatcher, mailer notification.Enqueuer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketDeescalated, n.handleTicketDeescalated)
	n.dispatcher.Subscribe(events.EventExtensionRequested, n.logEvent)
	n.dispatcher.Subscribe(events.EventExtensionDecided, n.handleExtensionDecided)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	_ = n.logEvent(ctx, event)
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	deadline := formatDeadline(payload.TATDeadline)

	var errs []error
	if payload.InchargeEmail != "" {
		msg, err := notification.RenderAssigned(notification.AssignedData{
			TicketCode:  payload.TicketCode,
			Subject:     payload.Subject,
			Reporter:    payload.ReporterEmail,
			Description: payload.Description,
			Deadline:    deadline,
		})
		errs = append(errs, n.send(event, "assigned", payload.InchargeEmail, msg, err))
	}
	if payload.ReporterEmail != "" {
		msg, err := notification.RenderReceived(notification.ReceivedData{
			TicketCode: payload.TicketCode,
			Status:     payload.Status,
			Deadline:   deadline,
		})
		errs = append(errs, n.send(event, "received", payload.ReporterEmail, msg, err))
	}
	return firstError(errs)
}

func (n *NotificationService) handleTicketDeescalated(ctx context.Context, event events.Event) error {
	_ = n.logEvent(ctx, event)
	payload, ok := event.Payload.(events.TicketDeescalatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.InchargeEmail == "" {
		return nil
	}
	msg, err := notification.RenderDeescalated(notification.DeescalatedData{
		TicketCode: payload.TicketCode,
		Deadline:   formatDeadline(payload.TATDeadline),
	})
	return n.send(event, "deescalated", payload.InchargeEmail, msg, err)
}

func (n *NotificationService) handleExtensionDecided(ctx context.Context, event events.Event) error {
	_ = n.logEvent(ctx, event)
	payload, ok := event.Payload.(events.ExtensionDecidedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.RequesterEmail == "" {
		return nil
	}
	data := notification.ExtensionData{
		TicketCode: payload.TicketCode,
		Decision:   string(payload.Status),
		ExtraHours: payload.ExtraHours,
	}
	if payload.TATDeadline != nil {
		data.Deadline = formatDeadline(payload.TATDeadline)
	}
	msg, err := notification.RenderExtension(data)
	return n.send(event, "extension", payload.RequesterEmail, msg, err)
}

func (n *NotificationService) send(event events.Event, kind, to string, msg notification.Rendered, renderErr error) error {
	if renderErr != nil {
		return renderErr
	}
	if n.mailer == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	return n.mailer.Enqueue(notification.Message{
		ID:        fmt.Sprintf("%s:%s:%s", kind, event.TicketID, event.ID),
		Receivers: []string{to},
		Subject:   msg.Subject,
		Body:      msg.Body,
	})
}

func formatDeadline(t *time.Time) string {
	if t == nil {
		return "not set"
	}
	return t.UTC().Format(time.RFC3339)
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
