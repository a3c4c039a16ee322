package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/order-ticket-service/internal/api/dto"
	"github.com/spec-kit/order-ticket-service/internal/auth"
	"github.com/spec-kit/order-ticket-service/internal/domain"
	"github.com/spec-kit/order-ticket-service/internal/repository"
	"github.com/spec-kit/order-ticket-service/internal/service"
	apperrors "github.com/spec-kit/order-ticket-service/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket lifecycle over HTTP.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// TicketTypes GET /orders/:id/ticket-types.
func (h *TicketsHandler) TicketTypes(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	types, err := h.service.AvailableTypes(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	options := make([]dto.TicketTypeOption, 0, len(types))
	for _, t := range types {
		options = append(options, dto.TicketTypeOption{Type: t, Label: domain.TypeLabel(t)})
	}
	return c.JSON(fiber.Map{"data": options})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.OrderID == "" || req.Type == "" || strings.TrimSpace(req.Reason) == "" {
		return apperrors.NewValidationError("order_id, type, reason required", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.CreateTicketInput{
		OrderID: req.OrderID,
		Type:    req.Type,
		Reason:  req.Reason,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
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
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(detail)})
}

// Transition POST /tickets/:id/transitions.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Event == "" {
		return apperrors.NewValidationError("event required", map[string]any{"field": "event"})
	}
	result, err := h.service.Transition(c.UserContext(), actor, c.Params("id"), service.TransitionInput{
		Event:        req.Event,
		Resolution:   req.Resolution,
		RefundAmount: req.RefundAmount,
		Message:      req.Message,
	})
	if err != nil {
		return err
	}
	resp := dto.TransitionResponse{
		Ticket:    ticketSummary(result.Ticket),
		OldStatus: result.OldStatus,
		NewStatus: result.NewStatus,
	}
	if result.Refund != nil {
		refund := refundResponse(*result.Refund)
		resp.Refund = &refund
	}
	return c.JSON(fiber.Map{"data": resp})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("body required", nil)
	}
	msg, err := h.service.AppendMessage(c.UserContext(), actor, c.Params("id"), req.Body, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketMessageResponse(msg)})
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	for _, part := range splitList(c.Query("status")) {
		status := domain.TicketStatus(part)
		if !status.Valid() {
			return filter, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, part := range splitList(c.Query("type")) {
		ticketType := domain.TicketType(part)
		if !ticketType.Valid() {
			return filter, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": part})
		}
		filter.Types = append(filter.Types, ticketType)
	}
	if orderID := c.Query("order_id"); orderID != "" {
		filter.OrderID = &orderID
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	page := parseInt(c.Query("page"), 1)
	pageSize, _ := repository.NormalizePage(parseInt(c.Query("page_size"), 20), 0)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
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
		ID:                 ticket.ID,
		TicketNumber:       ticket.TicketNumber,
		OrderID:            ticket.OrderID,
		Type:               ticket.Type,
		TypeLabel:          domain.TypeLabel(ticket.Type),
		Status:             ticket.Status,
		StatusLabel:        domain.StatusLabel(ticket.Status),
		CustomerID:         ticket.CustomerID,
		ResellerID:         ticket.ResellerID,
		SupplierID:         ticket.SupplierID,
		CurrentResponsible: ticket.CurrentResponsible,
		SLAFirstResponse:   ticket.SLAFirstResponse,
		SLAResolution:      ticket.SLAResolution,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
	}
}

func ticketDetail(detail *service.TicketDetail) dto.TicketDetailResponse {
	ticket := detail.Ticket
	msgs := make([]dto.TicketMessageResponse, 0, len(detail.Messages))
	for i := range detail.Messages {
		msgs = append(msgs, ticketMessageResponse(&detail.Messages[i]))
	}
	refunds := make([]dto.PendingRefundResponse, 0, len(detail.Refunds))
	for _, refund := range detail.Refunds {
		refunds = append(refunds, refundResponse(refund))
	}
	return dto.TicketDetailResponse{
		TicketSummary:    ticketSummary(ticket),
		Reason:           ticket.Reason,
		Resolution:       ticket.Resolution,
		RefundAmount:     ticket.RefundAmount,
		FirstRespondedAt: ticket.FirstRespondedAt,
		ResolvedAt:       ticket.ResolvedAt,
		SLABreach: dto.SLABreachResponse{
			FirstResponse: detail.Breach.FirstResponse,
			Resolution:    detail.Breach.Resolution,
		},
		Messages: msgs,
		Refunds:  refunds,
	}
}

func ticketMessageResponse(msg *domain.Message) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:         msg.ID,
		AuthorType: msg.AuthorType,
		AuthorID:   msg.AuthorID,
		Body:       msg.Body,
		IsInternal: msg.IsInternal,
		CreatedAt:  msg.CreatedAt,
	}
}

func refundResponse(refund domain.PendingRefund) dto.PendingRefundResponse {
	return dto.PendingRefundResponse{
		ID:        refund.ID,
		Amount:    refund.Amount,
		Status:    refund.Status,
		CreatedAt: refund.CreatedAt,
	}
}
