package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-escalation/internal/domain"
)

// DirectoryFilter selects directory entries. Results are always ordered by
// (created_on, id) ascending so "first match" is stable across calls.
type DirectoryFilter struct {
	Role           *domain.Role
	OrganisationID *string
	Active         *bool
	Limit          int
	Offset         int
}

// DirectoryRepository handles persistence for responsible parties.
type DirectoryRepository interface {
	Create(ctx context.Context, entry *domain.DirectoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.DirectoryEntry, error)
	List(ctx context.Context, filter DirectoryFilter) ([]domain.DirectoryEntry, error)
}

const directoryColumns = `id, organisation_id, name, email, role, active_flag, created_on, updated_on`

type directoryRepository struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository instantiates the repository.
func NewDirectoryRepository(pool *pgxpool.Pool) DirectoryRepository {
	return &directoryRepository{pool: pool}
}

func (r *directoryRepository) Create(ctx context.Context, entry *domain.DirectoryEntry) error {
	const query = `
        INSERT INTO directory_entries (organisation_id, name, email, role, active_flag)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_on, updated_on`

	return r.pool.QueryRow(ctx, query,
		entry.OrganisationID,
		entry.Name,
		entry.Email,
		entry.Role,
		entry.Active,
	).Scan(&entry.ID, &entry.CreatedOn, &entry.UpdatedOn)
}

func (r *directoryRepository) GetByID(ctx context.Context, id string) (*domain.DirectoryEntry, error) {
	query := `SELECT ` + directoryColumns + ` FROM directory_entries WHERE id=$1`

	var entry domain.DirectoryEntry
	if err := scanDirectoryEntry(r.pool.QueryRow(ctx, query, id), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *directoryRepository) List(ctx context.Context, filter DirectoryFilter) ([]domain.DirectoryEntry, error) {
	query := `SELECT ` + directoryColumns + ` FROM directory_entries`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.OrganisationID != nil {
		args = append(args, *filter.OrganisationID)
		clauses = append(clauses, fmt.Sprintf("organisation_id=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_on ASC, id ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DirectoryEntry
	for rows.Next() {
		var entry domain.DirectoryEntry
		if err := scanDirectoryEntry(rows, &entry); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanDirectoryEntry(row pgx.Row, entry *domain.DirectoryEntry) error {
	return row.Scan(
		&entry.ID,
		&entry.OrganisationID,
		&entry.Name,
		&entry.Email,
		&entry.Role,
		&entry.Active,
		&entry.CreatedOn,
		&entry.UpdatedOn,
	)
}
