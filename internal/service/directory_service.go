package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/spec-kit/issue-escalation/internal/auth"
	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/repository"
	apperrors "github.com/spec-kit/issue-escalation/pkg/util/errorutil"
)

// DirectoryService manages the people and rooms tickets are routed to.
type DirectoryService struct {
	directory repository.DirectoryRepository
	rooms     repository.RoomRepository
	tokens    *auth.TokenManager
}

// DirectoryDependencies bundles repositories for the directory service.
type DirectoryDependencies struct {
	DirectoryRepo repository.DirectoryRepository
	RoomRepo      repository.RoomRepository
	Tokens        *auth.TokenManager
}

// DirectoryListFilters define listing parameters.
type DirectoryListFilters struct {
	Role           *domain.Role
	OrganisationID *string
	Active         *bool
	Limit          int
	Offset         int
}

// EntryInput describes a new directory entry.
type EntryInput struct {
	OrganisationID string
	Name           string
	Email          string
	Role           domain.Role
}

// RoomInput describes a new room.
type RoomInput struct {
	OrganisationID string
	Name           string
	InchargeID     *string
}

// NewDirectoryService constructs the service.
func NewDirectoryService(deps DirectoryDependencies) *DirectoryService {
	return &DirectoryService{
		directory: deps.DirectoryRepo,
		rooms:     deps.RoomRepo,
		tokens:    deps.Tokens,
	}
}

func requireCentralAdmin(actor *domain.DirectoryEntry) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if actor.Role != domain.RoleCentralAdmin {
		return apperrors.NewForbidden("central admin role required")
	}
	return nil
}

// CreateEntry registers a directory entry. A nil actor is the operator CLI.
func (s *DirectoryService) CreateEntry(ctx context.Context, actor *domain.DirectoryEntry, input EntryInput) (*domain.DirectoryEntry, error) {
	if actor != nil {
		if err := requireCentralAdmin(actor); err != nil {
			return nil, err
		}
	}
	entry := &domain.DirectoryEntry{
		OrganisationID: strings.TrimSpace(input.OrganisationID),
		Name:           strings.TrimSpace(input.Name),
		Email:          strings.TrimSpace(input.Email),
		Role:           input.Role,
		Active:         true,
	}
	details := map[string]any{}
	if entry.Name == "" {
		details["name"] = "required"
	}
	if entry.OrganisationID == "" {
		details["organisation_id"] = "required"
	}
	if !entry.Role.Valid() {
		details["role"] = "must be one of incharge, sub_admin, central_admin"
	}
	if entry.Email != "" {
		if _, err := mail.ParseAddress(entry.Email); err != nil {
			details["email"] = "invalid address"
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid directory entry", details)
	}
	if err := s.directory.Create(ctx, entry); err != nil {
		return nil, apperrors.MapError(err)
	}
	return entry, nil
}

// ListEntries lists directory entries ordered by (created_on, id).
func (s *DirectoryService) ListEntries(ctx context.Context, actor *domain.DirectoryEntry, filters DirectoryListFilters) ([]domain.DirectoryEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	entries, err := s.directory.List(ctx, repository.DirectoryFilter{
		Role:           filters.Role,
		OrganisationID: filters.OrganisationID,
		Active:         filters.Active,
		Limit:          filters.Limit,
		Offset:         filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.DirectoryEntry{}
	}
	return entries, nil
}

// CreateRoom registers a room. The incharge, when given, must be an active
// incharge entry.
func (s *DirectoryService) CreateRoom(ctx context.Context, actor *domain.DirectoryEntry, input RoomInput) (*domain.Room, error) {
	if err := requireCentralAdmin(actor); err != nil {
		return nil, err
	}
	room := &domain.Room{
		OrganisationID: strings.TrimSpace(input.OrganisationID),
		Name:           strings.TrimSpace(input.Name),
		InchargeID:     input.InchargeID,
	}
	if room.Name == "" || room.OrganisationID == "" {
		return nil, apperrors.NewValidationError("invalid room", map[string]any{"name": "required", "organisation_id": "required"})
	}
	if room.InchargeID != nil {
		incharge, err := s.directory.GetByID(ctx, *room.InchargeID)
		if err != nil {
			return nil, notFoundOr(err, "directory_entry", *room.InchargeID)
		}
		if incharge.Role != domain.RoleIncharge || !incharge.Active {
			return nil, apperrors.NewConflict("room incharge must be an active incharge", map[string]any{"incharge_id": incharge.ID})
		}
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, apperrors.MapError(err)
	}
	return room, nil
}

// IssueToken signs an API token for an active directory entry.
func (s *DirectoryService) IssueToken(ctx context.Context, entryID string, ttl time.Duration) (string, time.Time, error) {
	entry, err := s.directory.GetByID(ctx, entryID)
	if err != nil {
		return "", time.Time{}, notFoundOr(err, "directory_entry", entryID)
	}
	if !entry.Active {
		return "", time.Time{}, apperrors.NewConflict("directory entry inactive", map[string]any{"entry_id": entryID})
	}
	if ttl > 0 {
		return s.tokens.GenerateTokenWithTTL(entry.ID, entry.Role, ttl)
	}
	return s.tokens.GenerateToken(entry.ID, entry.Role)
}
