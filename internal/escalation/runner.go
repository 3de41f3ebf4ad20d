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

// SweepLockKey is the Redis key that serialises overlapping sweeps.
const SweepLockKey = "escalation:sweep:lock"

// OverdueLister pages through tickets due for escalation at now, in
// (tat_deadline, id) order.
type OverdueLister interface {
	ListOverdue(ctx context.Context, now time.Time, after *repository.OverdueCursor, limit int) ([]domain.Ticket, error)
}

const defaultPageSize = 500

// Escalator applies one escalation step to a ticket.
type Escalator interface {
	Escalate(ctx context.Context, ticket *domain.Ticket) (domain.EscalationResult, error)
}

// Locker takes a best-effort exclusive lock. release is always callable.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// RunnerDependencies bundles the runner's collaborators and limits.
type RunnerDependencies struct {
	Tickets       OverdueLister
	Escalator     Escalator
	Locker        Locker
	LockTTL       time.Duration
	TicketTimeout time.Duration
	SweepTimeout  time.Duration
	BatchLimit    int
	Now           func() time.Time
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// Runner drives overdue tickets through the engine.
type Runner struct {
	tickets       OverdueLister
	escalator     Escalator
	locker        Locker
	lockTTL       time.Duration
	ticketTimeout time.Duration
	sweepTimeout  time.Duration
	pageSize      int
	now           func() time.Time
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// NewRunner builds a runner.
func NewRunner(deps RunnerDependencies) *Runner {
	r := &Runner{
		tickets:       deps.Tickets,
		escalator:     deps.Escalator,
		locker:        deps.Locker,
		lockTTL:       deps.LockTTL,
		ticketTimeout: deps.TicketTimeout,
		sweepTimeout:  deps.SweepTimeout,
		pageSize:      deps.BatchLimit,
		now:           deps.Now,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.lockTTL <= 0 {
		r.lockTTL = 5 * time.Minute
	}
	if r.pageSize <= 0 {
		r.pageSize = defaultPageSize
	}
	return r
}

// RunSweep escalates every overdue ticket once. Tickets are read page by page
// so the batch limit only bounds a single query. Failures of individual
// tickets are recorded in the summary and never stop the sweep; the returned
// error is reserved for the overdue query itself. When ctx is cancelled or the
// sweep timeout lapses, the summary covers only the tickets processed so far.
func (r *Runner) RunSweep(ctx context.Context, trigger domain.SweepTrigger) (summary domain.SweepSummary, err error) {
	summary = domain.SweepSummary{Trigger: trigger, Errors: []string{}, StartedAt: r.now()}
	defer func() {
		summary.FinishedAt = r.now()
		r.metrics.RecordSweep(summary, err)
	}()

	if r.sweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.sweepTimeout)
		defer cancel()
	}

	if r.locker != nil {
		release, ok, lockErr := r.locker.TryLock(ctx, SweepLockKey, r.lockTTL)
		switch {
		case lockErr != nil:
			r.logger.Warn("sweep lock unavailable; continuing without it", zap.Error(lockErr))
		case !ok:
			r.logger.Info("another escalation sweep is running; skipping", zap.String("trigger", string(trigger)))
			summary.Skipped = true
			return summary, nil
		default:
			defer release()
		}
	}

	var cursor *repository.OverdueCursor
	for {
		if ctx.Err() != nil {
			r.cancelled(&summary, ctx.Err())
			break
		}
		page, listErr := r.tickets.ListOverdue(ctx, summary.StartedAt, cursor, r.pageSize)
		if listErr != nil {
			if summary.Checked > 0 && ctx.Err() != nil {
				r.cancelled(&summary, ctx.Err())
				break
			}
			return summary, fmt.Errorf("list overdue tickets: %w", listErr)
		}
		if !r.processPage(ctx, page, &summary) {
			break
		}
		if len(page) < r.pageSize {
			break
		}
		cursor = repository.CursorAfter(page[len(page)-1])
	}

	r.logger.Info("escalation sweep finished",
		zap.String("trigger", string(trigger)),
		zap.Int("checked", summary.Checked),
		zap.Int("escalated", summary.Escalated),
		zap.Int("errors", len(summary.Errors)),
		zap.Bool("cancelled", summary.Cancelled),
	)
	return summary, nil
}

// processPage runs the engine over one page. It reports false when ctx ended
// before the page was finished.
func (r *Runner) processPage(ctx context.Context, page []domain.Ticket, summary *domain.SweepSummary) bool {
	for i := range page {
		if ctx.Err() != nil {
			r.cancelled(summary, ctx.Err())
			return false
		}
		ticket := &page[i]
		summary.Checked++

		result, ticketErr := r.processTicket(ctx, ticket)
		if ticketErr != nil {
			r.metrics.RecordTicketError()
			summary.Errors = append(summary.Errors, ticketRef(ticket))
			r.logger.Error("ticket escalation failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("ticket_code", ticket.TicketCode),
				zap.Error(ticketErr),
			)
			continue
		}
		if result.Escalated {
			summary.Escalated++
		}
	}
	return true
}

func (r *Runner) cancelled(summary *domain.SweepSummary, cause error) {
	summary.Cancelled = true
	r.logger.Warn("escalation sweep cancelled",
		zap.Int("processed", summary.Checked),
		zap.Error(cause),
	)
}

func (r *Runner) processTicket(ctx context.Context, ticket *domain.Ticket) (result domain.EscalationResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic escalating ticket %s: %v", ticket.ID, rec)
		}
	}()
	if r.ticketTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ticketTimeout)
		defer cancel()
	}
	result, err = r.escalator.Escalate(ctx, ticket)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("ticket %s timed out: %w", ticket.ID, err)
	}
	return result, err
}

func ticketRef(ticket *domain.Ticket) string {
	if ticket.TicketCode != "" {
		return ticket.TicketCode
	}
	return ticket.ID
}

// SummaryLine renders the operator log line for a finished sweep.
func SummaryLine(summary domain.SweepSummary) string {
	return fmt.Sprintf("Escalated %d issue(s)", summary.Escalated)
}
