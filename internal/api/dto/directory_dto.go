package dto

import (
	"time"

	"github.com/spec-kit/issue-escalation/internal/domain"
)

// CreateEntryRequest payload for a new directory entry.
type CreateEntryRequest struct {
	OrganisationID string      `json:"organisation_id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Role           domain.Role `json:"role"`
}

// EntryResponse represents a directory entry.
type EntryResponse struct {
	ID             string      `json:"id"`
	OrganisationID string      `json:"organisation_id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Role           domain.Role `json:"role"`
	Active         bool        `json:"active"`
	CreatedOn      time.Time   `json:"created_on"`
}

// CreateRoomRequest payload.
type CreateRoomRequest struct {
	OrganisationID string  `json:"organisation_id"`
	Name           string  `json:"name"`
	InchargeID     *string `json:"incharge_id"`
}

// RoomResponse represents a room.
type RoomResponse struct {
	ID             string    `json:"id"`
	OrganisationID string    `json:"organisation_id"`
	Name           string    `json:"name"`
	InchargeID     *string   `json:"incharge_id"`
	CreatedOn      time.Time `json:"created_on"`
}
