package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/order-ticket-service/internal/config"
	"github.com/spec-kit/order-ticket-service/internal/domain"
	"github.com/spec-kit/order-ticket-service/internal/events"
	"github.com/spec-kit/order-ticket-service/internal/notification"
	"github.com/spec-kit/order-ticket-service/internal/observability"
	"github.com/spec-kit/order-ticket-service/internal/repository/memory"
)

type captureQueue struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (q *captureQueue) Enqueue(n notification.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, n)
	return true
}

func (q *captureQueue) recipients() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.sent))
	for _, n := range q.sent {
		ids = append(ids, n.UserID)
	}
	return ids
}

func (q *captureQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = nil
}

func newNotificationFixture() (events.Dispatcher, *captureQueue) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	queue := &captureQueue{}
	svc := NewNotificationService(dispatcher, queue, zap.NewNop(), config.AppConfig{PublicBaseURL: "https://shop.example"})
	svc.RegisterHandlers()
	return dispatcher, queue
}

func TestStatusChangeNotifiesCustomerAndResponsibleExceptActor(t *testing.T) {
	dispatcher, queue := newNotificationFixture()
	resolution := "replacement shipped"
	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: "t-1",
		Actor:    events.Actor{ID: reseller.ID, Type: domain.PartyReseller},
		Payload: events.TicketStatusChangedPayload{
			TicketNumber: "TKT-000001",
			OldStatus:    domain.TicketStatusInReview,
			NewStatus:    domain.TicketStatusResolved,
			Event:        domain.EventResolve,
			CustomerID:   customer.ID,
			Responsible:  reseller.ID,
			Resolution:   &resolution,
		},
	})
	require.NoError(t, err)

	require.Equal(t, []string{customer.ID}, queue.recipients())
	n := queue.sent[0]
	assert.Equal(t, "Ticket TKT-000001 is Resolved", n.Title)
	assert.Contains(t, n.Body, "replacement shipped")
	assert.Equal(t, "https://shop.example/tickets/t-1", n.ActionURL)
}

func TestInternalMessagesNeverReachCustomer(t *testing.T) {
	dispatcher, queue := newNotificationFixture()
	publish := func(internal bool, author domain.Actor) {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
			Type:     events.EventTicketMessageAdded,
			TicketID: "t-1",
			Actor:    events.Actor{ID: author.ID, Type: author.Type},
			Payload: events.TicketMessageAddedPayload{
				TicketNumber: "TKT-000001",
				IsInternal:   internal,
				CustomerID:   customer.ID,
				Responsible:  reseller.ID,
			},
		}))
	}

	publish(true, admin)
	assert.Equal(t, []string{reseller.ID}, queue.recipients())

	publish(false, reseller)
	assert.Equal(t, []string{reseller.ID, customer.ID}, queue.recipients())
}

func TestTicketCreatedAndRefundNotifications(t *testing.T) {
	dispatcher, queue := newNotificationFixture()
	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "t-1",
		Actor:    events.Actor{ID: customer.ID, Type: domain.PartyCustomer},
		Payload: events.TicketCreatedPayload{
			TicketNumber: "TKT-000001",
			Type:         domain.TicketTypeRefund,
			CustomerID:   customer.ID,
			Responsible:  domain.AdminPool,
		},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:     events.EventRefundPendingCreated,
		TicketID: "t-1",
		Actor:    events.Actor{ID: admin.ID, Type: domain.PartySuperadmin},
		Payload:  events.RefundPendingCreatedPayload{CustomerID: customer.ID, Amount: 12.5},
	}))

	assert.Equal(t, []string{domain.AdminPool, customer.ID}, queue.recipients())
	assert.Equal(t, "New Refund ticket TKT-000001", queue.sent[0].Title)
	assert.Contains(t, queue.sent[1].Body, "12.50")
}

func TestCustomerAnswerWhileAwaitingReachesWaitingParty(t *testing.T) {
	dispatcher, queue := newNotificationFixture()
	publish := func(prior string) {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
			Type:     events.EventTicketMessageAdded,
			TicketID: "t-1",
			Actor:    events.Actor{ID: customer.ID, Type: domain.PartyCustomer},
			Payload: events.TicketMessageAddedPayload{
				TicketNumber:     "TKT-000001",
				AuthorType:       domain.PartyCustomer,
				CustomerID:       customer.ID,
				Responsible:      customer.ID,
				PriorResponsible: prior,
			},
		}))
	}

	publish(supplier.ID)
	assert.Equal(t, []string{supplier.ID}, queue.recipients())

	queue.reset()
	publish("")
	assert.Equal(t, []string{domain.AdminPool}, queue.recipients())
}

func TestCustomerMessageOnAwaitingTicketNotifiesRequester(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	resellerID := reseller.ID
	order := domain.Order{
		ID:            "order-await",
		CustomerID:    customer.ID,
		ResellerID:    &resellerID,
		Status:        domain.OrderStatusShipped,
		PaymentStatus: domain.PaymentStatusPaid,
		TotalAmount:   50,
	}
	store.PutOrder(order)

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	queue := &captureQueue{}
	NewNotificationService(dispatcher, queue, zap.NewNop(), config.AppConfig{}).RegisterHandlers()
	svc := NewTicketService(TicketDependencies{
		Transactor: store,
		Repos:      store.Repositories(),
		OrderRepo:  store.Orders(),
		Dispatcher: dispatcher,
		Metrics:    observability.NewMetrics(),
	})

	ticket, err := svc.CreateTicket(ctx, customer, CreateTicketInput{OrderID: order.ID, Type: domain.TicketTypeExchange, Reason: "wrong size"})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, reseller, ticket.ID, TransitionInput{Event: domain.EventTakeOwnership})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, reseller, ticket.ID, TransitionInput{Event: domain.EventRequestInfo})
	require.NoError(t, err)

	queue.reset()
	_, err = svc.AppendMessage(ctx, customer, ticket.ID, "size M", false)
	require.NoError(t, err)
	assert.Equal(t, []string{reseller.ID}, queue.recipients())
}
