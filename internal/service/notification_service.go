package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/order-ticket-service/internal/config"
	"github.com/spec-kit/order-ticket-service/internal/domain"
	"github.com/spec-kit/order-ticket-service/internal/events"
	"github.com/spec-kit/order-ticket-service/internal/notification"
)

// NotificationQueue accepts notifications for asynchronous delivery.
type NotificationQueue interface {
	Enqueue(n notification.Notification) bool
}

// NotificationService turns ticket events into notifications for the
// parties that need to act or be informed.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      NotificationQueue
	logger     *zap.Logger
	baseURL    string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue NotificationQueue, logger *zap.Logger, cfg config.AppConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
		baseURL:    cfg.PublicBaseURL,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
	n.dispatcher.Subscribe(events.EventRefundPendingCreated, n.handleRefundPendingCreated)
}

func (n *NotificationService) handleTicketCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.send(event, []string{payload.Responsible},
		fmt.Sprintf("New %s ticket %s", domain.TypeLabel(payload.Type), payload.TicketNumber),
		fmt.Sprintf("A customer opened a %s request on order %s.", domain.TypeLabel(payload.Type), payload.OrderID))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	body := fmt.Sprintf("Status changed from %s to %s.", domain.StatusLabel(payload.OldStatus), domain.StatusLabel(payload.NewStatus))
	if payload.Resolution != nil {
		body += " " + *payload.Resolution
	}
	n.send(event, []string{payload.CustomerID, payload.Responsible},
		fmt.Sprintf("Ticket %s is %s", payload.TicketNumber, domain.StatusLabel(payload.NewStatus)),
		body)
	return nil
}

func (n *NotificationService) handleTicketMessageAdded(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	recipients := []string{payload.Responsible}
	if !payload.IsInternal {
		recipients = append(recipients, payload.CustomerID)
	}
	if payload.AuthorType == domain.PartyCustomer && payload.Responsible == payload.CustomerID {
		// The customer is answering an information request.
		recipients = append(recipients, waitingParty(payload.PriorResponsible))
	}
	n.send(event, recipients,
		fmt.Sprintf("New message on ticket %s", payload.TicketNumber),
		payload.BodyPreview)
	return nil
}

func (n *NotificationService) handleRefundPendingCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RefundPendingCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.send(event, []string{payload.CustomerID},
		"Refund approved",
		fmt.Sprintf("A refund of %.2f is being processed.", payload.Amount))
	return nil
}

// send enqueues one notification per distinct recipient, skipping the actor
// who caused the event.
func (n *NotificationService) send(event events.Event, recipients []string, title, body string) {
	if n.queue == nil {
		return
	}
	seen := map[string]struct{}{event.Actor.ID: {}}
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		n.queue.Enqueue(notification.Notification{
			UserID:    userID,
			Title:     title,
			Body:      body,
			ActionURL: n.ticketURL(event.TicketID),
		})
	}
}

func waitingParty(prior string) string {
	if prior == "" {
		return domain.AdminPool
	}
	return prior
}

func (n *NotificationService) ticketURL(ticketID string) string {
	return fmt.Sprintf("%s/tickets/%s", n.baseURL, ticketID)
}
