package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-escalation/internal/domain"
)

// ErrStaleTicket is returned when a guarded update finds the row no longer
// matches the snapshot it was computed from.
var ErrStaleTicket = errors.New("ticket changed since it was read")

// OverdueCursor marks the last ticket of a page in (tat_deadline, id) order.
type OverdueCursor struct {
	Deadline time.Time
	ID       string
}

// CursorAfter returns the cursor positioned on ticket.
func CursorAfter(ticket domain.Ticket) *OverdueCursor {
	c := &OverdueCursor{ID: ticket.ID}
	if ticket.TATDeadline != nil {
		c.Deadline = *ticket.TATDeadline
	}
	return c
}

// TicketFilter captures listing parameters.
type TicketFilter struct {
	OrganisationID  *string
	RoomID          *string
	AssignedTo      *string
	Statuses        []domain.TicketStatus
	EscalationLevel *domain.EscalationLevel
	Resolved        *bool
	SearchTerm      *string
	Limit           int
	Offset          int
}

// EscalationUpdate is the single-row write applied by a successful escalation.
// It only lands if the row is still at FromLevel and still open.
type EscalationUpdate struct {
	TicketID    string
	FromLevel   domain.EscalationLevel
	ToLevel     domain.EscalationLevel
	AssignedTo  string
	TATDeadline time.Time
	History     *domain.TicketHistory
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket, expected TicketVersion, history *domain.TicketHistory) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListOverdue(ctx context.Context, now time.Time, after *OverdueCursor, limit int) ([]domain.Ticket, error)
	ApplyEscalation(ctx context.Context, update EscalationUpdate) error
}

const ticketColumns = `id, ticket_code, organisation_id, room_id, created_by, reporter_email, subject, description,
               status, resolved, escalation_level, assigned_to, tat_deadline, created_on, updated_on`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_code, organisation_id, room_id, created_by, reporter_email, subject, description,
            status, resolved, escalation_level, assigned_to, tat_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_on, updated_on`
	return r.pool.QueryRow(ctx, query,
		ticket.TicketCode,
		ticket.OrganisationID,
		ticket.RoomID,
		ticket.CreatedBy,
		ticket.ReporterEmail,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Resolved,
		ticket.EscalationLevel,
		ticket.AssignedTo,
		ticket.TATDeadline,
	).Scan(&ticket.ID, &ticket.CreatedOn, &ticket.UpdatedOn)
}

// TicketVersion is the snapshot a manual update was computed from.
type TicketVersion struct {
	EscalationLevel domain.EscalationLevel
	UpdatedOn       time.Time
}

// VersionOf captures the guard for a later Update of ticket.
func VersionOf(ticket domain.Ticket) TicketVersion {
	return TicketVersion{EscalationLevel: ticket.EscalationLevel, UpdatedOn: ticket.UpdatedOn}
}

// Update writes the mutable workflow fields. ticket_code, subject and
// description are never rewritten. The write only lands if the row still
// matches expected; otherwise ErrStaleTicket is returned.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expected TicketVersion, history *domain.TicketHistory) error {
	const query = `
        UPDATE tickets SET status=$1, resolved=$2, escalation_level=$3, assigned_to=$4, tat_deadline=$5, updated_on=NOW()
        WHERE id=$6 AND escalation_level=$7 AND updated_on=$8
        RETURNING updated_on`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			ticket.Status,
			ticket.Resolved,
			ticket.EscalationLevel,
			ticket.AssignedTo,
			ticket.TATDeadline,
			ticket.ID,
			expected.EscalationLevel,
			expected.UpdatedOn,
		).Scan(&ticket.UpdatedOn)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleTicket
		}
		if err != nil {
			return err
		}
		if history == nil {
			return nil
		}
		history.TicketID = ticket.ID
		return insertHistory(ctx, tx, history)
	})
}

func (r *ticketRepository) ApplyEscalation(ctx context.Context, update EscalationUpdate) error {
	const query = `
        UPDATE tickets SET escalation_level=$1, assigned_to=$2, status=$3, tat_deadline=$4, updated_on=NOW()
        WHERE id=$5 AND escalation_level=$6 AND resolved=FALSE AND status<>$7`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query,
			update.ToLevel,
			update.AssignedTo,
			domain.TicketStatusEscalated,
			update.TATDeadline,
			update.TicketID,
			update.FromLevel,
			domain.TicketStatusClosed,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrStaleTicket
		}
		if update.History == nil {
			return nil
		}
		update.History.TicketID = update.TicketID
		return insertHistory(ctx, tx, update.History)
	})
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_code=$1`
	return r.fetchSingle(ctx, query, code)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListOverdue returns one page of tickets due for escalation: deadline passed,
// not resolved, not closed and below the ceiling. Pages are ordered by
// (tat_deadline, id); after, when set, starts the page past that position.
func (r *ticketRepository) ListOverdue(ctx context.Context, now time.Time, after *OverdueCursor, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + ticketColumns + `
             FROM tickets
             WHERE tat_deadline < $1 AND resolved = FALSE AND status <> $2 AND escalation_level < $3`
	args := []any{now, domain.TicketStatusClosed, domain.LevelCeiling}
	if after != nil {
		args = append(args, after.Deadline, after.ID)
		query += ` AND (tat_deadline, id) > ($4::timestamptz, $5::uuid)`
	}
	args = append(args, limit)
	query += fmt.Sprintf(`
             ORDER BY tat_deadline ASC, id ASC
             LIMIT $%d`, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OrganisationID != nil {
		args = append(args, *filter.OrganisationID)
		clauses = append(clauses, fmt.Sprintf("organisation_id=$%d", len(args)))
	}
	if filter.RoomID != nil {
		args = append(args, *filter.RoomID)
		clauses = append(clauses, fmt.Sprintf("room_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.EscalationLevel != nil {
		args = append(args, *filter.EscalationLevel)
		clauses = append(clauses, fmt.Sprintf("escalation_level=$%d", len(args)))
	}
	if filter.Resolved != nil {
		args = append(args, *filter.Resolved)
		clauses = append(clauses, fmt.Sprintf("resolved=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(ticket_code) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_on DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.TicketCode,
		&ticket.OrganisationID,
		&ticket.RoomID,
		&ticket.CreatedBy,
		&ticket.ReporterEmail,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Resolved,
		&ticket.EscalationLevel,
		&ticket.AssignedTo,
		&ticket.TATDeadline,
		&ticket.CreatedOn,
		&ticket.UpdatedOn,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
