package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-escalation/internal/api/dto"
	"github.com/spec-kit/issue-escalation/internal/auth"
	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/service"
	apperrors "github.com/spec-kit/issue-escalation/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints of the admin API.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RoomID == "" || strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("room_id, subject, description required", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		RoomID:        req.RoomID,
		Subject:       req.Subject,
		Description:   req.Description,
		ReporterEmail: req.ReporterEmail,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.service.ListHistory(c.UserContext(), actor, ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, history)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	history, err := h.service.ListHistory(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(history)})
}

// MarkInProgress POST /tickets/:id/in-progress.
func (h *TicketsHandler) MarkInProgress(c *fiber.Ctx) error {
	return h.transition(c, h.service.MarkInProgress)
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, h.service.Resolve)
}

// Unresolve POST /tickets/:id/unresolve.
func (h *TicketsHandler) Unresolve(c *fiber.Ctx) error {
	return h.transition(c, h.service.Unresolve)
}

// Deescalate POST /tickets/:id/deescalate.
func (h *TicketsHandler) Deescalate(c *fiber.Ctx) error {
	return h.transition(c, h.service.Deescalate)
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	result, err := h.service.Escalate(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// RequestExtension POST /tickets/:id/extensions.
func (h *TicketsHandler) RequestExtension(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	var req dto.ExtensionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ExtraHours <= 0 {
		return apperrors.NewValidationError("extra_hours must be positive", nil)
	}
	ext, err := h.service.RequestExtension(c.UserContext(), actor, c.Params("id"), req.ExtraHours, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": extensionResponse(ext)})
}

// ListExtensions GET /tickets/:id/extensions.
func (h *TicketsHandler) ListExtensions(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	exts, err := h.service.ListExtensions(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ExtensionResponse, 0, len(exts))
	for i := range exts {
		items = append(items, extensionResponse(&exts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ApproveExtension POST /extensions/:id/approve.
func (h *TicketsHandler) ApproveExtension(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	ext, err := h.service.ApproveExtension(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": extensionResponse(ext)})
}

// RejectExtension POST /extensions/:id/reject.
func (h *TicketsHandler) RejectExtension(c *fiber.Ctx) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	ext, err := h.service.RejectExtension(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": extensionResponse(ext)})
}

type ticketAction func(ctx context.Context, actor *domain.DirectoryEntry, ticketID string) (*domain.Ticket, error)

func (h *TicketsHandler) transition(c *fiber.Ctx, action ticketAction) error {
	actor, err := principalEntry(c)
	if err != nil {
		return err
	}
	ticket, err := action(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func principalEntry(c *fiber.Ctx) (*domain.DirectoryEntry, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Entry, nil
}

func parseTicketFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	if roomID := c.Query("room_id"); roomID != "" {
		filter.RoomID = &roomID
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return filter, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if level := c.Query("level"); level != "" {
		parsed, err := strconv.Atoi(level)
		if err != nil || !domain.EscalationLevel(parsed).Valid() {
			return filter, apperrors.NewValidationError("invalid level", map[string]any{"level": level})
		}
		lvl := domain.EscalationLevel(parsed)
		filter.EscalationLevel = &lvl
	}
	if resolved := c.Query("resolved"); resolved != "" {
		parsed, err := strconv.ParseBool(resolved)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid resolved flag", map[string]any{"resolved": resolved})
		}
		filter.Resolved = &parsed
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:              ticket.ID,
		TicketCode:      ticket.TicketCode,
		OrganisationID:  ticket.OrganisationID,
		RoomID:          ticket.RoomID,
		Subject:         ticket.Subject,
		Status:          ticket.Status,
		Resolved:        ticket.Resolved,
		EscalationLevel: ticket.EscalationLevel,
		AssignedTo:      ticket.AssignedTo,
		TATDeadline:     ticket.TATDeadline,
		CreatedOn:       ticket.CreatedOn,
		UpdatedOn:       ticket.UpdatedOn,
	}
}

func ticketDetail(ticket *domain.Ticket, history []domain.TicketHistory) dto.TicketDetailResponse {
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Description:   ticket.Description,
		ReporterEmail: ticket.ReporterEmail,
		CreatedBy:     ticket.CreatedBy,
		History:       historyResponses(history),
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}

func extensionResponse(ext *domain.TimeExtensionRequest) dto.ExtensionResponse {
	return dto.ExtensionResponse{
		ID:                  ext.ID,
		TicketID:            ext.TicketID,
		RequestedBy:         ext.RequestedBy,
		CurrentTATHours:     ext.CurrentTATHours,
		RequestedExtraHours: ext.RequestedExtraHours,
		Reason:              ext.Reason,
		Status:              ext.Status,
		ReviewedBy:          ext.ReviewedBy,
		CreatedOn:           ext.CreatedOn,
		DecidedOn:           ext.DecidedOn,
	}
}
