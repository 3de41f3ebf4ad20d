package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/auth"
	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/events"
	"github.com/spec-kit/issue-escalation/internal/repository"
	apperrors "github.com/spec-kit/issue-escalation/pkg/util/errorutil"
)

// ManualEscalator runs one escalation step on behalf of a directory entry.
type ManualEscalator interface {
	EscalateBy(ctx context.Context, ticket *domain.Ticket, actorID string) (domain.EscalationResult, error)
}

// TicketService coordinates ticket workflows outside the automatic sweep.
type TicketService struct {
	tickets    repository.TicketRepository
	rooms      repository.RoomRepository
	directory  repository.DirectoryRepository
	history    repository.TicketHistoryRepository
	extensions repository.ExtensionRepository
	escalator  ManualEscalator
	dispatcher events.Dispatcher
	tat        time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	RoomRepo      repository.RoomRepository
	DirectoryRepo repository.DirectoryRepository
	HistoryRepo   repository.TicketHistoryRepository
	ExtensionRepo repository.ExtensionRepository
	Escalator     ManualEscalator
	Dispatcher    events.Dispatcher
	TAT           time.Duration
	Now           func() time.Time
	Logger        *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RoomID        string
	Subject       string
	Description   string
	ReporterEmail string
}

// TicketListFilter describes admin listing filters.
type TicketListFilter struct {
	RoomID          *string
	AssignedTo      *string
	Statuses        []domain.TicketStatus
	EscalationLevel *domain.EscalationLevel
	Resolved        *bool
	SearchTerm      *string
	Limit           int
	Offset          int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:    deps.TicketRepo,
		rooms:      deps.RoomRepo,
		directory:  deps.DirectoryRepo,
		history:    deps.HistoryRepo,
		extensions: deps.ExtensionRepo,
		escalator:  deps.Escalator,
		dispatcher: deps.Dispatcher,
		tat:        deps.TAT,
		now:        deps.Now,
		logger:     deps.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateTicket files a ticket against a room. It starts at level 0 owned by the
// room's incharge with a fresh TAT deadline.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.DirectoryEntry, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	details := map[string]any{}
	if subject == "" {
		details["subject"] = "required"
	}
	if description == "" {
		details["description"] = "required"
	}
	if strings.TrimSpace(input.RoomID) == "" {
		details["room_id"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	room, err := s.rooms.GetByID(ctx, input.RoomID)
	if err != nil {
		return nil, notFoundOr(err, "room", input.RoomID)
	}

	now := s.now()
	deadline := now.Add(s.tat)
	ticket := &domain.Ticket{
		TicketCode:      generateTicketCode(room.OrganisationID, now),
		OrganisationID:  room.OrganisationID,
		RoomID:          room.ID,
		Subject:         subject,
		Description:     description,
		Status:          domain.TicketStatusOpen,
		EscalationLevel: domain.LevelRoom,
		AssignedTo:      room.InchargeID,
		TATDeadline:     &deadline,
	}
	if actor != nil {
		ticket.CreatedBy = actor.ID
	}
	if email := strings.TrimSpace(input.ReporterEmail); email != "" {
		ticket.ReporterEmail = &email
	} else if actor != nil && actor.Email != "" {
		email := actor.Email
		ticket.ReporterEmail = &email
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	payload := events.TicketCreatedPayload{
		TicketCode:  ticket.TicketCode,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		Status:      string(ticket.Status),
		TATDeadline: ticket.TATDeadline,
	}
	if ticket.ReporterEmail != nil {
		payload.ReporterEmail = *ticket.ReporterEmail
	}
	payload.InchargeEmail = s.emailOf(ctx, ticket.AssignedTo)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload:  payload,
	})
	return ticket, nil
}

// GetTicket fetches a ticket the actor may see.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.DirectoryEntry, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ListTickets lists tickets. Incharges only see tickets assigned to them.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.DirectoryEntry, filter TicketListFilter) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	repoFilter := repository.TicketFilter{
		RoomID:          filter.RoomID,
		AssignedTo:      filter.AssignedTo,
		Statuses:        filter.Statuses,
		EscalationLevel: filter.EscalationLevel,
		Resolved:        filter.Resolved,
		SearchTerm:      filter.SearchTerm,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	}
	if !auth.IsAdmin(actor.Role) {
		id := actor.ID
		repoFilter.AssignedTo = &id
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// ListHistory returns the audit trail of a ticket.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.DirectoryEntry, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

// MarkInProgress records that the owner has started work. The ticket is
// pulled back to level 0 and reopened.
func (s *TicketService) MarkInProgress(ctx context.Context, actor *domain.DirectoryEntry, ticketID string) (*domain.Ticket, error) {
	return s.changeStatus(ctx, actor, ticketID, func(t *domain.Ticket) error {
		if t.Status == domain.TicketStatusClosed {
			return apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": t.ID})
		}
		t.Status = domain.TicketStatusInProgress
		t.Resolved = false
		t.EscalationLevel = domain.LevelRoom
		return nil
	})
}

// Resolve closes the ticket. Resolving twice is a no-op.
func (s *TicketService) Resolve(ctx context.Context, actor *domain.DirectoryEntry, ticketID string) (*domain.Ticket, error) {
	return s.changeStatus(ctx, actor, ticketID, func(t *domain.Ticket) error {
		t.Resolved = true
		t.Status = domain.TicketStatusClosed
		return nil
	})
}

// Unresolve reopens a resolved ticket at its current level.
func (s *TicketService) Unresolve(ctx context.Context, actor *domain.DirectoryEntry, ticketID string) (*domain.Ticket, error) {
	return s.changeStatus(ctx, actor, ticketID, func(t *domain.Ticket) error {
		if !t.Terminal() {
			return apperrors.NewConflict("ticket is not resolved", map[string]any{"ticket_id": t.ID})
		}
		t.Resolved = false
		t.Status = domain.TicketStatusOpen
		return nil
	})
}

func (s *TicketService) changeStatus(ctx context.Context, actor *domain.DirectoryEntry, ticketID string, mutate func(*domain.Ticket) error) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	before := *ticket
	if err := mutate(ticket); err != nil {
		return nil, err
	}
	if before.Status == ticket.Status && before.Resolved == ticket.Resolved && before.EscalationLevel == ticket.EscalationLevel {
		return ticket, nil
	}

	history := &domain.TicketHistory{
		ChangedByType: domain.ActorDirectory,
		ChangedByID:   &actor.ID,
		ChangeType:    domain.ChangeTypeStatus,
		OldValue: map[string]any{
			"status":           before.Status,
			"resolved":         before.Resolved,
			"escalation_level": before.EscalationLevel,
		},
		NewValue: map[string]any{
			"status":           ticket.Status,
			"resolved":         ticket.Resolved,
			"escalation_level": ticket.EscalationLevel,
		},
	}
	if err := s.tickets.Update(ctx, ticket, repository.VersionOf(before), history); err != nil {
		return nil, updateError(err, ticket.ID)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: before.Status,
			NewStatus: ticket.Status,
			Resolved:  ticket.Resolved,
		},
	})
	return ticket, nil
}

// Deescalate hands an escalated ticket back to its room incharge at level 0.
// The TAT deadline is left as it is.
func (s *TicketService) Deescalate(ctx context.Context, actor *domain.DirectoryEntry, ticketID string) (*domain.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.EscalationLevel <= domain.LevelRoom {
		return nil, apperrors.NewConflict("ticket is already at the lowest escalation level", map[string]any{"ticket_id": ticket.ID})
	}
	room, err := s.rooms.GetByID(ctx, ticket.RoomID)
	if err != nil {
		return nil, notFoundOr(err, "room", ticket.RoomID)
	}

	before := *ticket
	ticket.EscalationLevel = domain.LevelRoom
	ticket.Status = domain.TicketStatusOpen
	ticket.Resolved = false
	ticket.AssignedTo = room.InchargeID

	history := &domain.TicketHistory{
		ChangedByType: domain.ActorDirectory,
		ChangedByID:   &actor.ID,
		ChangeType:    domain.ChangeTypeDeescalation,
		OldValue: map[string]any{
			"escalation_level": before.EscalationLevel,
			"assigned_to":      before.AssignedTo,
			"status":           before.Status,
		},
		NewValue: map[string]any{
			"escalation_level": ticket.EscalationLevel,
			"assigned_to":      ticket.AssignedTo,
			"status":           ticket.Status,
		},
	}
	if err := s.tickets.Update(ctx, ticket, repository.VersionOf(before), history); err != nil {
		return nil, updateError(err, ticket.ID)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeescalated,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.TicketDeescalatedPayload{
			TicketCode:    ticket.TicketCode,
			FromLevel:     before.EscalationLevel,
			InchargeEmail: s.emailOf(ctx, ticket.AssignedTo),
			TATDeadline:   ticket.TATDeadline,
		},
	})
	return ticket, nil
}

// Escalate runs one escalation step immediately, regardless of the deadline.
func (s *TicketService) Escalate(ctx context.Context, actor *domain.DirectoryEntry, ticketID string) (domain.EscalationResult, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.EscalationResult{}, err
	}
	if s.escalator == nil {
		return domain.EscalationResult{}, apperrors.NewInternalError(errors.New("escalation engine not configured"))
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return domain.EscalationResult{}, err
	}
	result, err := s.escalator.EscalateBy(ctx, ticket, actor.ID)
	if err != nil {
		return result, apperrors.MapError(err)
	}
	if result.Escalated {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketEscalated,
			TicketID: ticket.ID,
			Actor:    actorOf(actor),
			Payload: events.TicketEscalatedPayload{
				From:       result.From,
				To:         result.To,
				AssignedTo: result.AssignedTo,
			},
		})
	}
	return result, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	return ticket, nil
}

func (s *TicketService) emailOf(ctx context.Context, entryID *string) string {
	if entryID == nil || s.directory == nil {
		return ""
	}
	entry, err := s.directory.GetByID(ctx, *entryID)
	if err != nil {
		s.logger.Warn("lookup directory entry for notification", zap.String("entry_id", *entryID), zap.Error(err))
		return ""
	}
	return entry.Email
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.String("ticket_id", event.TicketID), zap.Error(err))
	}
}

const ticketCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateTicketCode builds "T" + organisation + yymmddHHMMSS + 4 random
// characters from [A-Z0-9].
func generateTicketCode(organisationID string, now time.Time) string {
	org := strings.TrimSpace(organisationID)
	if org == "" {
		org = "0"
	}
	var b strings.Builder
	b.WriteString("T")
	b.WriteString(org)
	b.WriteString(now.Format("060102150405"))
	alphabet := big.NewInt(int64(len(ticketCodeAlphabet)))
	for i := 0; i < 4; i++ {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			n = big.NewInt(now.UnixNano() % alphabet.Int64())
		}
		b.WriteByte(ticketCodeAlphabet[n.Int64()])
	}
	return b.String()
}

func canAccess(actor *domain.DirectoryEntry, ticket *domain.Ticket) bool {
	if actor == nil {
		return false
	}
	if auth.IsAdmin(actor.Role) {
		return true
	}
	return ticket.AssignedTo != nil && *ticket.AssignedTo == actor.ID
}

func requireAdmin(actor *domain.DirectoryEntry) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !auth.IsAdmin(actor.Role) {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return apperrors.MapError(err)
}

func actorOf(actor *domain.DirectoryEntry) events.Actor {
	if actor == nil {
		return events.Actor{Type: domain.ActorSystem}
	}
	id := actor.ID
	return events.Actor{Type: domain.ActorDirectory, ID: &id}
}

func updateError(err error, ticketID string) error {
	if errors.Is(err, repository.ErrStaleTicket) {
		return apperrors.NewConflict("ticket changed while the request was processed; reload and retry", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}
