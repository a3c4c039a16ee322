package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/order-ticket-service/internal/domain"
	"github.com/spec-kit/order-ticket-service/internal/events"
	"github.com/spec-kit/order-ticket-service/internal/observability"
	"github.com/spec-kit/order-ticket-service/internal/repository"
	apperrors "github.com/spec-kit/order-ticket-service/pkg/util/errorutil"
)

const (
	maxReasonLength  = 2000
	maxMessageLength = 10000
	bodyPreviewLen   = 120
	ticketOpenedBody = "Ticket opened"
	dependencyDB     = "database"
)

// errStaleTicket signals a compare-and-swap miss inside a unit of work.
var errStaleTicket = errors.New("ticket changed concurrently")

// TicketService coordinates the ticket lifecycle.
type TicketService struct {
	tx         repository.Transactor
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	refunds    repository.PendingRefundRepository
	orders     repository.OrderRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Transactor repository.Transactor
	// Repos serves reads outside a unit of work.
	Repos      repository.Repositories
	OrderRepo  repository.OrderRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	OrderID string
	Type    domain.TicketType
	Reason  string
}

// TicketListFilter describes listing filters. Party scoping is applied from
// the actor.
type TicketListFilter struct {
	OrderID    *string
	Statuses   []domain.TicketStatus
	Types      []domain.TicketType
	SearchTerm *string
	Limit      int
	Offset     int
}

// TransitionInput is the caller's request to move a ticket.
type TransitionInput struct {
	Event        domain.TransitionEvent
	Resolution   string
	RefundAmount *float64
	// Message, when set, is appended to the thread by the actor in the same
	// unit of work. Used for the customer's answer on customer_reply.
	Message string
}

// TicketDetail is a ticket with its visible thread and derived state.
type TicketDetail struct {
	Ticket   *domain.Ticket
	Messages []domain.Message
	Breach   domain.SLABreach
	Refunds  []domain.PendingRefund
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tx:         deps.Transactor,
		tickets:    deps.Repos.Tickets,
		messages:   deps.Repos.Messages,
		refunds:    deps.Repos.Refunds,
		orders:     deps.OrderRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		clock:      clock,
	}
}

// now returns the clock reading at the precision Postgres stores, so values
// compared in compare-and-swap round-trip exactly.
func (s *TicketService) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

// AvailableTypes lists ticket types the order currently qualifies for.
func (s *TicketService) AvailableTypes(ctx context.Context, actor domain.Actor, orderID string) ([]domain.TicketType, error) {
	order, err := s.loadOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	return domain.AvailableTicketTypes(order.Status, order.PaymentStatus), nil
}

// CreateTicket opens a ticket on behalf of the order's customer.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*domain.Ticket, error) {
	if !actor.Valid() {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if actor.Type != domain.PartyCustomer {
		return nil, apperrors.NewForbidden("only customers can open tickets")
	}
	if !input.Type.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": input.Type})
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason required", map[string]any{"field": "reason"})
	}
	if len(reason) > maxReasonLength {
		return nil, apperrors.NewValidationError("reason too long", map[string]any{"field": "reason", "max": maxReasonLength})
	}

	order, err := s.loadOrder(ctx, actor, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckEligibility(order, input.Type); err != nil {
		return nil, err
	}

	now := s.now()
	deadlines, err := domain.ComputeDeadlines(input.Type, now)
	if err != nil {
		return nil, err
	}
	ticket := &domain.Ticket{
		OrderID:            order.ID,
		Type:               input.Type,
		Status:             domain.TicketStatusOpen,
		CustomerID:         order.CustomerID,
		ResellerID:         order.ResellerID,
		SupplierID:         order.SupplierID,
		CurrentResponsible: order.InitialResponsible(),
		Reason:             reason,
		SLAFirstResponse:   deadlines.FirstResponse(),
		SLAResolution:      deadlines.Resolution(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return apperrors.NewDependencyFailure(dependencyDB, err)
		}
		opened := systemMessage(ticket.ID, ticketOpenedBody, now)
		if err := repos.Messages.Create(ctx, opened); err != nil {
			return apperrors.NewDependencyFailure(dependencyDB, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("type", string(ticket.Type)),
		zap.String("responsible", ticket.CurrentResponsible))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			OrderID:      ticket.OrderID,
			Type:         ticket.Type,
			CustomerID:   ticket.CustomerID,
			Responsible:  ticket.CurrentResponsible,
		},
	})
	return ticket, nil
}

// ListTickets returns tickets visible to the actor, newest activity first.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if !actor.Valid() {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	repoFilter := repository.TicketFilter{
		OrderID:    filter.OrderID,
		Statuses:   filter.Statuses,
		Types:      filter.Types,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	applyPartyScope(&repoFilter, actor)
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// GetTicket returns the ticket with the thread the actor may see.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*TicketDetail, error) {
	ticket, err := s.loadTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	thread, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	visible := make([]domain.Message, 0, len(thread))
	for _, msg := range thread {
		if msg.VisibleTo(actor) {
			visible = append(visible, msg)
		}
	}
	refunds, err := s.refunds.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if refunds == nil {
		refunds = []domain.PendingRefund{}
	}
	return &TicketDetail{
		Ticket:   ticket,
		Messages: visible,
		Breach:   domain.Breached(ticket, s.now()),
		Refunds:  refunds,
	}, nil
}

// Transition applies an event to the ticket. Two concurrent transitions on
// the same ticket yield one success and one Conflict.
func (s *TicketService) Transition(ctx context.Context, actor domain.Actor, ticketID string, input TransitionInput) (*domain.TransitionResult, error) {
	result, err := s.transition(ctx, actor, ticketID, input)
	outcome := "ok"
	if err != nil {
		outcome = apperrors.ToDomainError(err).Code
	}
	s.metrics.RecordTransition(string(input.Event), outcome)
	return result, err
}

func (s *TicketService) transition(ctx context.Context, actor domain.Actor, ticketID string, input TransitionInput) (*domain.TransitionResult, error) {
	if !actor.Valid() {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	body := strings.TrimSpace(input.Message)
	if len(body) > maxMessageLength {
		return nil, apperrors.NewValidationError("message too long", map[string]any{"field": "message", "max": maxMessageLength})
	}

	ticket, err := s.loadTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	// A lost race against a message append only moves updated_at, so one
	// retry on a fresh read is enough. A status change is a real conflict.
	for attempt := 0; ; attempt++ {
		now := s.now()
		result, err := domain.Apply(ticket, domain.TransitionRequest{
			Event:        input.Event,
			Actor:        actor,
			Resolution:   input.Resolution,
			RefundAmount: input.RefundAmount,
		}, now)
		if err != nil {
			return nil, err
		}
		if result.Refund != nil {
			if err := s.checkRefundCeiling(ctx, ticket, result.Refund.Amount); err != nil {
				return nil, err
			}
		}

		var actorMsg *domain.Message
		err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			ok, err := repos.Tickets.CompareAndSwap(ctx, result.Ticket, ticket.Status, ticket.UpdatedAt)
			if err != nil {
				return apperrors.NewDependencyFailure(dependencyDB, err)
			}
			if !ok {
				return errStaleTicket
			}
			if err := repos.Messages.Create(ctx, systemMessage(ticket.ID, result.AuditMessage, now)); err != nil {
				return apperrors.NewDependencyFailure(dependencyDB, err)
			}
			if body != "" {
				actorMsg = partyMessage(ticket.ID, actor, body, false, now)
				if err := repos.Messages.Create(ctx, actorMsg); err != nil {
					return apperrors.NewDependencyFailure(dependencyDB, err)
				}
			}
			if result.Refund != nil {
				if err := repos.Refunds.Create(ctx, result.Refund); err != nil {
					return apperrors.NewDependencyFailure(dependencyDB, err)
				}
			}
			return nil
		})
		if err == nil {
			s.afterTransition(ctx, actor, input.Event, result, actorMsg)
			return result, nil
		}
		if !errors.Is(err, errStaleTicket) {
			return nil, err
		}

		current, err := s.tickets.GetByID(ctx, ticket.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if attempt > 0 || current.Status != ticket.Status {
			s.logger.Info("transition conflict",
				zap.String("ticket_id", ticket.ID),
				zap.String("event", string(input.Event)),
				zap.String("expected_status", string(ticket.Status)),
				zap.String("current_status", string(current.Status)))
			return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{
				"ticket_id":      ticket.ID,
				"current_status": current.Status,
			})
		}
		ticket = current
	}
}

func (s *TicketService) afterTransition(ctx context.Context, actor domain.Actor, event domain.TransitionEvent, result *domain.TransitionResult, actorMsg *domain.Message) {
	ticket := result.Ticket
	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", ticket.ID),
		zap.String("event", string(event)),
		zap.String("from", string(result.OldStatus)),
		zap.String("to", string(result.NewStatus)),
		zap.String("actor", actor.String()))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketStatusChangedPayload{
			TicketNumber: ticket.TicketNumber,
			OldStatus:    result.OldStatus,
			NewStatus:    result.NewStatus,
			Event:        event,
			CustomerID:   ticket.CustomerID,
			Responsible:  ticket.CurrentResponsible,
			Resolution:   ticket.Resolution,
		},
	})
	if actorMsg != nil {
		s.publishMessageAdded(ctx, actor, ticket, actorMsg)
	}
	if result.Refund != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventRefundPendingCreated,
			TicketID: ticket.ID,
			Actor:    eventActor(actor),
			Payload: events.RefundPendingCreatedPayload{
				RefundID:   result.Refund.ID,
				CustomerID: result.Refund.CustomerID,
				Amount:     result.Refund.Amount,
			},
		})
	}
}

// AppendMessage adds a message to the ticket thread.
func (s *TicketService) AppendMessage(ctx context.Context, actor domain.Actor, ticketID, body string, internal bool) (*domain.Message, error) {
	if !actor.Valid() {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body required", map[string]any{"field": "body"})
	}
	if len(body) > maxMessageLength {
		return nil, apperrors.NewValidationError("message too long", map[string]any{"field": "body", "max": maxMessageLength})
	}
	if internal && actor.Type == domain.PartyCustomer {
		return nil, apperrors.NewForbidden("customers cannot post internal messages")
	}

	ticket, err := s.loadTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.Terminal() && !internal {
		return nil, apperrors.NewTicketClosed(map[string]any{"ticket_id": ticket.ID, "status": ticket.Status})
	}

	now := s.now()
	msg := partyMessage(ticket.ID, actor, body, internal, now)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Messages.Create(ctx, msg); err != nil {
			return apperrors.NewDependencyFailure(dependencyDB, err)
		}
		if err := repos.Tickets.Touch(ctx, ticket.ID, now); err != nil {
			return apperrors.NewDependencyFailure(dependencyDB, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ticket.UpdatedAt = now
	s.publishMessageAdded(ctx, actor, ticket, msg)
	return msg, nil
}

// ListBreached returns open tickets with a missed SLA deadline at now, for an
// external reminder job.
func (s *TicketService) ListBreached(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListPastDeadline(ctx, now, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func (s *TicketService) loadOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	if !actor.Valid() {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, apperrors.NewValidationError("order_id required", map[string]any{"field": "order_id"})
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("order", map[string]any{"order_id": orderID})
		}
		return nil, apperrors.MapError(err)
	}
	if !orderInvolves(order, actor) {
		return nil, apperrors.NewForbidden("actor is not a party of this order")
	}
	return order, nil
}

func (s *TicketService) loadTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.Valid() {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !ticket.Involves(actor) {
		return nil, apperrors.NewForbidden("actor is not a party of this ticket")
	}
	return ticket, nil
}

// checkRefundCeiling rejects refunds above the order total.
func (s *TicketService) checkRefundCeiling(ctx context.Context, ticket *domain.Ticket, amount float64) error {
	order, err := s.orders.GetByID(ctx, ticket.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("order", map[string]any{"order_id": ticket.OrderID})
		}
		return apperrors.MapError(err)
	}
	if amount > order.TotalAmount {
		return apperrors.NewValidationError("refund_amount exceeds order total", map[string]any{
			"field":        "refund_amount",
			"order_total":  order.TotalAmount,
			"refund_total": amount,
		})
	}
	return nil
}

func (s *TicketService) publishMessageAdded(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, msg *domain.Message) {
	var prior string
	if ticket.PriorResponsible != nil {
		prior = *ticket.PriorResponsible
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketMessageAddedPayload{
			TicketNumber:     ticket.TicketNumber,
			MessageID:        msg.ID,
			AuthorType:       msg.AuthorType,
			AuthorID:         msg.AuthorID,
			IsInternal:       msg.IsInternal,
			BodyPreview:      stringPreview(msg.Body, bodyPreviewLen),
			CustomerID:       ticket.CustomerID,
			Responsible:      ticket.CurrentResponsible,
			PriorResponsible: prior,
		},
	})
}

// publishEvent runs after commit; failures never affect the caller.
func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func applyPartyScope(filter *repository.TicketFilter, actor domain.Actor) {
	id := actor.ID
	switch actor.Type {
	case domain.PartyCustomer:
		filter.CustomerID = &id
	case domain.PartyReseller:
		filter.ResellerID = &id
	case domain.PartySupplier:
		filter.SupplierID = &id
	}
}

func orderInvolves(order *domain.Order, actor domain.Actor) bool {
	switch actor.Type {
	case domain.PartySuperadmin:
		return true
	case domain.PartyCustomer:
		return order.CustomerID == actor.ID
	case domain.PartyReseller:
		return order.ResellerID != nil && *order.ResellerID == actor.ID
	case domain.PartySupplier:
		return order.SupplierID != nil && *order.SupplierID == actor.ID
	}
	return false
}

func systemMessage(ticketID, body string, at time.Time) *domain.Message {
	return &domain.Message{
		TicketID:   ticketID,
		AuthorType: domain.PartySystem,
		Body:       body,
		CreatedAt:  at,
	}
}

func partyMessage(ticketID string, actor domain.Actor, body string, internal bool, at time.Time) *domain.Message {
	authorID := actor.ID
	return &domain.Message{
		TicketID:   ticketID,
		AuthorID:   &authorID,
		AuthorType: actor.Type,
		Body:       body,
		IsInternal: internal,
		CreatedAt:  at,
	}
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Type: actor.Type}
}

func stringPreview(input string, limit int) string {
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	return string(runes[:limit]) + "..."
}
