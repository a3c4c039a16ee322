package dto

import (
	"time"

	"github.com/spec-kit/order-ticket-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	OrderID string            `json:"order_id"`
	Type    domain.TicketType `json:"type"`
	Reason  string            `json:"reason"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Event        domain.TransitionEvent `json:"event"`
	Resolution   string                 `json:"resolution"`
	RefundAmount *float64               `json:"refund_amount"`
	Message      string                 `json:"message"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"is_internal"`
}

// TicketTypeOption is one choice offered to the customer.
type TicketTypeOption struct {
	Type  domain.TicketType `json:"type"`
	Label string            `json:"label"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                 string              `json:"id"`
	TicketNumber       string              `json:"ticket_number"`
	OrderID            string              `json:"order_id"`
	Type               domain.TicketType   `json:"type"`
	TypeLabel          string              `json:"type_label"`
	Status             domain.TicketStatus `json:"status"`
	StatusLabel        string              `json:"status_label"`
	CustomerID         string              `json:"customer_id"`
	ResellerID         *string             `json:"reseller_id"`
	SupplierID         *string             `json:"supplier_id"`
	CurrentResponsible string              `json:"current_responsible"`
	SLAFirstResponse   time.Time           `json:"sla_first_response"`
	SLAResolution      time.Time           `json:"sla_resolution"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// SLABreachResponse is computed at read time.
type SLABreachResponse struct {
	FirstResponse bool `json:"first_response"`
	Resolution    bool `json:"resolution"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Reason           string                  `json:"reason"`
	Resolution       *string                 `json:"resolution"`
	RefundAmount     *float64                `json:"refund_amount"`
	FirstRespondedAt *time.Time              `json:"first_responded_at"`
	ResolvedAt       *time.Time              `json:"resolved_at"`
	SLABreach        SLABreachResponse       `json:"sla_breach"`
	Messages         []TicketMessageResponse `json:"messages"`
	Refunds          []PendingRefundResponse `json:"refunds"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID         string           `json:"id"`
	AuthorType domain.PartyType `json:"author_type"`
	AuthorID   *string          `json:"author_id"`
	Body       string           `json:"body"`
	IsInternal bool             `json:"is_internal"`
	CreatedAt  time.Time        `json:"created_at"`
}

// PendingRefundResponse describes a refund awaiting processing.
type PendingRefundResponse struct {
	ID        string              `json:"id"`
	Amount    float64             `json:"amount"`
	Status    domain.RefundStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

// TransitionResponse reports the outcome of a transition.
type TransitionResponse struct {
	Ticket    TicketSummary          `json:"ticket"`
	OldStatus domain.TicketStatus    `json:"old_status"`
	NewStatus domain.TicketStatus    `json:"new_status"`
	Refund    *PendingRefundResponse `json:"refund,omitempty"`
}
