package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/observability"
	"github.com/spec-kit/issue-escalation/internal/repository"
)

// TicketWriter applies the guarded escalation write.
type TicketWriter interface {
	ApplyEscalation(ctx context.Context, update repository.EscalationUpdate) error
}

// OwnerFinder resolves the owner for a target level.
type OwnerFinder interface {
	FindOwner(ctx context.Context, level domain.EscalationLevel, ticket *domain.Ticket) (*domain.DirectoryEntry, error)
}

// Notifier delivers the "escalated to you" message. It must not block on
// delivery and has no error to return.
type Notifier interface {
	NotifyEscalation(ctx context.Context, ticket domain.Ticket, owner domain.DirectoryEntry)
}

// EngineDependencies bundles the engine's collaborators.
type EngineDependencies struct {
	Tickets  TicketWriter
	Owners   OwnerFinder
	Notifier Notifier
	TAT      time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Engine is the escalation state machine.
type Engine struct {
	tickets  TicketWriter
	owners   OwnerFinder
	notifier Notifier
	tat      time.Duration
	now      func() time.Time
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewEngine builds the engine. Now defaults to time.Now and Logger to a no-op.
func NewEngine(deps EngineDependencies) *Engine {
	e := &Engine{
		tickets:  deps.Tickets,
		owners:   deps.Owners,
		notifier: deps.Notifier,
		tat:      deps.TAT,
		now:      deps.Now,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Escalate moves ticket one level up when it is eligible and an owner exists.
// Policy no-ops come back as a result with Escalated false and a Reason; an
// error means the owner lookup or the write failed and nothing was changed.
// On success the snapshot is updated in place to the committed state.
func (e *Engine) Escalate(ctx context.Context, ticket *domain.Ticket) (domain.EscalationResult, error) {
	return e.escalate(ctx, ticket, domain.ActorSystem, nil)
}

// EscalateBy is Escalate on behalf of a directory entry, recorded in history.
func (e *Engine) EscalateBy(ctx context.Context, ticket *domain.Ticket, actorID string) (domain.EscalationResult, error) {
	return e.escalate(ctx, ticket, domain.ActorDirectory, &actorID)
}

func (e *Engine) escalate(ctx context.Context, ticket *domain.Ticket, actorType domain.ActorType, actorID *string) (domain.EscalationResult, error) {
	from := ticket.EscalationLevel
	result := domain.EscalationResult{
		TicketID:   ticket.ID,
		TicketCode: ticket.TicketCode,
		From:       from,
		To:         from,
	}

	if ticket.Terminal() {
		return e.noop(result, domain.ReasonResolvedOrClosed), nil
	}
	if from >= domain.LevelCeiling {
		return e.noop(result, domain.ReasonAtCeiling), nil
	}

	next := from + 1
	owner, err := e.owners.FindOwner(ctx, next, ticket)
	if err != nil {
		return result, fmt.Errorf("resolve owner for %s: %w", ticket.ID, err)
	}
	if owner == nil {
		return e.noop(result, domain.ReasonNoOwner), nil
	}

	now := e.now()
	deadline := now.Add(e.tat)
	update := repository.EscalationUpdate{
		TicketID:    ticket.ID,
		FromLevel:   from,
		ToLevel:     next,
		AssignedTo:  owner.ID,
		TATDeadline: deadline,
		History: &domain.TicketHistory{
			ChangedByType: actorType,
			ChangedByID:   actorID,
			ChangeType:    domain.ChangeTypeEscalation,
			OldValue: map[string]any{
				"escalation_level": from,
				"assigned_to":      ticket.AssignedTo,
				"status":           ticket.Status,
				"tat_deadline":     ticket.TATDeadline,
			},
			NewValue: map[string]any{
				"escalation_level": next,
				"assigned_to":      owner.ID,
				"status":           domain.TicketStatusEscalated,
				"tat_deadline":     deadline,
			},
		},
	}
	if err := e.tickets.ApplyEscalation(ctx, update); err != nil {
		if errors.Is(err, repository.ErrStaleTicket) {
			return e.noop(result, domain.ReasonConcurrentUpdate), nil
		}
		return result, fmt.Errorf("persist escalation for %s: %w", ticket.ID, err)
	}

	ownerID := owner.ID
	ticket.EscalationLevel = next
	ticket.AssignedTo = &ownerID
	ticket.Status = domain.TicketStatusEscalated
	ticket.TATDeadline = &deadline
	ticket.UpdatedOn = now

	result.Escalated = true
	result.To = next
	result.AssignedTo = &ownerID
	e.metrics.RecordEscalation(result)
	e.logger.Info("ticket escalated",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_code", ticket.TicketCode),
		zap.Int("from", int(from)),
		zap.Int("to", int(next)),
		zap.String("assigned_to", ownerID),
		zap.Time("tat_deadline", deadline),
	)

	e.notify(ctx, *ticket, *owner)
	return result, nil
}

func (e *Engine) noop(result domain.EscalationResult, reason domain.NoopReason) domain.EscalationResult {
	result.Reason = reason
	e.metrics.RecordEscalation(result)
	e.logger.Debug("ticket not escalated",
		zap.String("ticket_id", result.TicketID),
		zap.Int("level", int(result.From)),
		zap.String("reason", string(reason)),
	)
	return result
}

// notify runs after the write has committed; nothing it does can change the
// escalation outcome.
func (e *Engine) notify(ctx context.Context, ticket domain.Ticket, owner domain.DirectoryEntry) {
	if e.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("escalation notifier panicked",
				zap.String("ticket_id", ticket.ID),
				zap.Any("panic", r),
			)
		}
	}()
	e.notifier.NotifyEscalation(ctx, ticket, owner)
}
