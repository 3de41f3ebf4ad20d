package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-escalation/internal/api/dto"
	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/service"
	apperrors "github.com/spec-kit/issue-escalation/pkg/util/errorutil"
)

// DirectoryHandler administers directory entries and rooms.
type DirectoryHandler struct {
	service *service.DirectoryService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(directoryService *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: directoryService}
}

// CreateEntry POST /directory.
func (h *DirectoryHandler) CreateEntry(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	var req dto.CreateEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entry, err := h.service.CreateEntry(c.UserContext(), actor, service.EntryInput{
		OrganisationID: req.OrganisationID,
		Name:           req.Name,
		Email:          req.Email,
		Role:           req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": entryResponse(entry)})
}

// ListEntries GET /directory.
func (h *DirectoryHandler) ListEntries(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	filters := service.DirectoryListFilters{}
	if role := c.Query("role"); role != "" {
		r := domain.Role(role)
		if !r.Valid() {
			return apperrors.NewValidationError("unknown role", map[string]any{"role": role})
		}
		filters.Role = &r
	}
	if org := c.Query("organisation_id"); org != "" {
		filters.OrganisationID = &org
	}
	if active := c.Query("active"); active != "" {
		parsed, err := strconv.ParseBool(active)
		if err != nil {
			return apperrors.NewValidationError("invalid active flag", map[string]any{"active": active})
		}
		filters.Active = &parsed
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filters.Offset = (page - 1) * pageSize
	filters.Limit = pageSize

	entries, err := h.service.ListEntries(c.UserContext(), actor, filters)
	if err != nil {
		return err
	}
	items := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, entryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateRoom POST /rooms.
func (h *DirectoryHandler) CreateRoom(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	var req dto.CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	room, err := h.service.CreateRoom(c.UserContext(), actor, service.RoomInput{
		OrganisationID: req.OrganisationID,
		Name:           req.Name,
		InchargeID:     req.InchargeID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.RoomResponse{
		ID:             room.ID,
		OrganisationID: room.OrganisationID,
		Name:           room.Name,
		InchargeID:     room.InchargeID,
		CreatedOn:      room.CreatedOn,
	}})
}

func entryResponse(entry *domain.DirectoryEntry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:             entry.ID,
		OrganisationID: entry.OrganisationID,
		Name:           entry.Name,
		Email:          entry.Email,
		Role:           entry.Role,
		Active:         entry.Active,
		CreatedOn:      entry.CreatedOn,
	}
}
