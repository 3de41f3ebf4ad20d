package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-escalation/internal/domain"
)

// ErrExtensionDecided is returned when a request is no longer pending.
var ErrExtensionDecided = errors.New("extension request already decided")

// ExtensionDecision records a reviewer's verdict. NewDeadline is only used on
// approval and is written to the ticket in the same transaction.
type ExtensionDecision struct {
	RequestID   string
	Status      domain.ExtensionStatus
	ReviewedBy  string
	DecidedOn   time.Time
	NewDeadline *time.Time
	History     *domain.TicketHistory
}

// ExtensionRepository stores TAT extension requests.
type ExtensionRepository interface {
	Create(ctx context.Context, req *domain.TimeExtensionRequest) error
	GetByID(ctx context.Context, id string) (*domain.TimeExtensionRequest, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TimeExtensionRequest, error)
	Decide(ctx context.Context, decision ExtensionDecision) error
}

const extensionColumns = `id, ticket_id, requested_by, current_tat_hours, requested_extra_hours, reason,
               status, reviewed_by, created_on, decided_on`

type extensionRepository struct {
	pool *pgxpool.Pool
}

// NewExtensionRepository builds repository.
func NewExtensionRepository(pool *pgxpool.Pool) ExtensionRepository {
	return &extensionRepository{pool: pool}
}

func (r *extensionRepository) Create(ctx context.Context, req *domain.TimeExtensionRequest) error {
	const query = `
        INSERT INTO tat_extension_requests (ticket_id, requested_by, current_tat_hours, requested_extra_hours, reason, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_on`
	return r.pool.QueryRow(ctx, query,
		req.TicketID,
		req.RequestedBy,
		req.CurrentTATHours,
		req.RequestedExtraHours,
		req.Reason,
		req.Status,
	).Scan(&req.ID, &req.CreatedOn)
}

func (r *extensionRepository) GetByID(ctx context.Context, id string) (*domain.TimeExtensionRequest, error) {
	query := `SELECT ` + extensionColumns + ` FROM tat_extension_requests WHERE id=$1`
	var req domain.TimeExtensionRequest
	if err := scanExtension(r.pool.QueryRow(ctx, query, id), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *extensionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimeExtensionRequest, error) {
	query := `SELECT ` + extensionColumns + ` FROM tat_extension_requests WHERE ticket_id=$1 ORDER BY created_on ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TimeExtensionRequest
	for rows.Next() {
		var req domain.TimeExtensionRequest
		if err := scanExtension(rows, &req); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (r *extensionRepository) Decide(ctx context.Context, decision ExtensionDecision) error {
	const decideQuery = `
        UPDATE tat_extension_requests SET status=$1, reviewed_by=$2, decided_on=$3
        WHERE id=$4 AND status=$5
        RETURNING ticket_id`
	const deadlineQuery = `
        UPDATE tickets SET tat_deadline=$1, updated_on=NOW()
        WHERE id=$2 AND (tat_deadline IS NULL OR tat_deadline <= $1)`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var ticketID string
		err := tx.QueryRow(ctx, decideQuery,
			decision.Status,
			decision.ReviewedBy,
			decision.DecidedOn,
			decision.RequestID,
			domain.ExtensionPending,
		).Scan(&ticketID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrExtensionDecided
		}
		if err != nil {
			return err
		}
		if decision.NewDeadline == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, deadlineQuery, *decision.NewDeadline, ticketID); err != nil {
			return err
		}
		if decision.History == nil {
			return nil
		}
		decision.History.TicketID = ticketID
		return insertHistory(ctx, tx, decision.History)
	})
}

func scanExtension(row pgx.Row, req *domain.TimeExtensionRequest) error {
	return row.Scan(
		&req.ID,
		&req.TicketID,
		&req.RequestedBy,
		&req.CurrentTATHours,
		&req.RequestedExtraHours,
		&req.Reason,
		&req.Status,
		&req.ReviewedBy,
		&req.CreatedOn,
		&req.DecidedOn,
	)
}
