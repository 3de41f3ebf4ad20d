package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/events"
	"github.com/spec-kit/issue-escalation/internal/repository"
	apperrors "github.com/spec-kit/issue-escalation/pkg/util/errorutil"
)

// MaxExtensionHours caps a single extension request.
const MaxExtensionHours = 24 * 14

// RequestExtension asks for more time on a ticket the actor owns.
func (s *TicketService) RequestExtension(ctx context.Context, actor *domain.DirectoryEntry, ticketID string, extraHours int, reason string) (*domain.TimeExtensionRequest, error) {
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	details := map[string]any{}
	if extraHours <= 0 || extraHours > MaxExtensionHours {
		details["extra_hours"] = "must be between 1 and 336"
	}
	if reason == "" {
		details["reason"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid extension request", details)
	}
	if ticket.Terminal() {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticket.ID})
	}

	req := &domain.TimeExtensionRequest{
		TicketID:            ticket.ID,
		RequestedBy:         actor.ID,
		CurrentTATHours:     s.remainingHours(ticket),
		RequestedExtraHours: extraHours,
		Reason:              reason,
		Status:              domain.ExtensionPending,
	}
	if err := s.extensions.Create(ctx, req); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventExtensionRequested,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.ExtensionRequestedPayload{
			RequestID:  req.ID,
			ExtraHours: extraHours,
			Reason:     reason,
		},
	})
	return req, nil
}

// ListExtensions returns the extension requests of a ticket.
func (s *TicketService) ListExtensions(ctx context.Context, actor *domain.DirectoryEntry, ticketID string) ([]domain.TimeExtensionRequest, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	reqs, err := s.extensions.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if reqs == nil {
		reqs = []domain.TimeExtensionRequest{}
	}
	return reqs, nil
}

// ApproveExtension grants the requested hours. The deadline moves forward from
// the later of the current deadline and now, so it never moves backward.
func (s *TicketService) ApproveExtension(ctx context.Context, actor *domain.DirectoryEntry, requestID string) (*domain.TimeExtensionRequest, error) {
	return s.decideExtension(ctx, actor, requestID, domain.ExtensionApproved)
}

// RejectExtension declines a pending request.
func (s *TicketService) RejectExtension(ctx context.Context, actor *domain.DirectoryEntry, requestID string) (*domain.TimeExtensionRequest, error) {
	return s.decideExtension(ctx, actor, requestID, domain.ExtensionRejected)
}

func (s *TicketService) decideExtension(ctx context.Context, actor *domain.DirectoryEntry, requestID string, status domain.ExtensionStatus) (*domain.TimeExtensionRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req, err := s.extensions.GetByID(ctx, requestID)
	if err != nil {
		return nil, notFoundOr(err, "extension_request", requestID)
	}
	if req.Status != domain.ExtensionPending {
		return nil, apperrors.NewConflict("extension request already decided", map[string]any{"request_id": req.ID, "status": req.Status})
	}
	ticket, err := s.loadTicket(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	decision := repository.ExtensionDecision{
		RequestID:  req.ID,
		Status:     status,
		ReviewedBy: actor.ID,
		DecidedOn:  now,
	}
	if status == domain.ExtensionApproved {
		base := now
		if ticket.TATDeadline != nil && ticket.TATDeadline.After(now) {
			base = *ticket.TATDeadline
		}
		deadline := base.Add(time.Duration(req.RequestedExtraHours) * time.Hour)
		decision.NewDeadline = &deadline
		decision.History = &domain.TicketHistory{
			ChangedByType: domain.ActorDirectory,
			ChangedByID:   &actor.ID,
			ChangeType:    domain.ChangeTypeDeadline,
			OldValue:      map[string]any{"tat_deadline": ticket.TATDeadline},
			NewValue:      map[string]any{"tat_deadline": deadline, "extension_request_id": req.ID},
		}
	}
	if err := s.extensions.Decide(ctx, decision); err != nil {
		if errors.Is(err, repository.ErrExtensionDecided) {
			return nil, apperrors.NewConflict("extension request already decided", map[string]any{"request_id": req.ID})
		}
		return nil, apperrors.MapError(err)
	}

	reviewer := actor.ID
	req.Status = status
	req.ReviewedBy = &reviewer
	req.DecidedOn = &now

	s.publishEvent(ctx, events.Event{
		Type:     events.EventExtensionDecided,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.ExtensionDecidedPayload{
			RequestID:      req.ID,
			TicketCode:     ticket.TicketCode,
			Status:         status,
			ExtraHours:     req.RequestedExtraHours,
			RequesterEmail: s.emailOf(ctx, &req.RequestedBy),
			TATDeadline:    decision.NewDeadline,
		},
	})
	return req, nil
}

// remainingHours is the whole hours left before the deadline, floored at zero.
func (s *TicketService) remainingHours(ticket *domain.Ticket) int {
	if ticket.TATDeadline == nil {
		return 0
	}
	left := ticket.TATDeadline.Sub(s.now()).Hours()
	if left <= 0 {
		return 0
	}
	return int(math.Floor(left))
}
