package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-escalation/internal/domain"
)

// RoomRepository persists rooms and their incharge.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
}

type roomRepository struct {
	pool *pgxpool.Pool
}

// NewRoomRepository builds repository.
func NewRoomRepository(pool *pgxpool.Pool) RoomRepository {
	return &roomRepository{pool: pool}
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	const query = `
        INSERT INTO rooms (organisation_id, name, incharge_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_on, updated_on`
	return r.pool.QueryRow(ctx, query, room.OrganisationID, room.Name, room.InchargeID).
		Scan(&room.ID, &room.CreatedOn, &room.UpdatedOn)
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	const query = `
        SELECT id, organisation_id, name, incharge_id, created_on, updated_on
        FROM rooms WHERE id=$1`
	var room domain.Room
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&room.ID,
		&room.OrganisationID,
		&room.Name,
		&room.InchargeID,
		&room.CreatedOn,
		&room.UpdatedOn,
	); err != nil {
		return nil, err
	}
	return &room, nil
}
