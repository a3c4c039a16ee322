package events

import (
	"time"

	"github.com/spec-kit/order-ticket-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventTicketMessageAdded   EventType = "ticket_message_added"
	EventRefundPendingCreated EventType = "refund_pending_created"
)

// AllEventTypes lists every event type, for sinks that forward everything.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketMessageAdded,
	EventRefundPendingCreated,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string           `json:"id"`
	Type domain.PartyType `json:"type"`
}

// Event represents a domain event emitted after a committed change.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string            `json:"ticket_number"`
	OrderID      string            `json:"order_id"`
	Type         domain.TicketType `json:"type"`
	CustomerID   string            `json:"customer_id"`
	Responsible  string            `json:"current_responsible"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketNumber string                 `json:"ticket_number"`
	OldStatus    domain.TicketStatus    `json:"old_status"`
	NewStatus    domain.TicketStatus    `json:"new_status"`
	Event        domain.TransitionEvent `json:"event"`
	CustomerID   string                 `json:"customer_id"`
	Responsible  string                 `json:"current_responsible"`
	Resolution   *string                `json:"resolution,omitempty"`
}

// TicketMessageAddedPayload payload. PriorResponsible is set while the
// ticket waits on the customer.
type TicketMessageAddedPayload struct {
	TicketNumber     string           `json:"ticket_number"`
	MessageID        string           `json:"message_id"`
	AuthorType       domain.PartyType `json:"author_type"`
	AuthorID         *string          `json:"author_id,omitempty"`
	IsInternal       bool             `json:"is_internal"`
	BodyPreview      string           `json:"body_preview"`
	CustomerID       string           `json:"customer_id"`
	Responsible      string           `json:"current_responsible"`
	PriorResponsible string           `json:"prior_responsible,omitempty"`
}

// RefundPendingCreatedPayload payload.
type RefundPendingCreatedPayload struct {
	RefundID   string  `json:"refund_id"`
	CustomerID string  `json:"customer_id"`
	Amount     float64 `json:"amount"`
}
