package domain

import "time"

// TicketType is fixed at creation.
type TicketType string

const (
	TicketTypeRefund       TicketType = "refund"
	TicketTypeExchange     TicketType = "exchange"
	TicketTypeCancellation TicketType = "cancellation"
)

// TicketTypes lists every ticket type in display order.
var TicketTypes = []TicketType{TicketTypeRefund, TicketTypeExchange, TicketTypeCancellation}

// Valid reports whether t is a known ticket type.
func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeRefund, TicketTypeExchange, TicketTypeCancellation:
		return true
	}
	return false
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen             TicketStatus = "open"
	TicketStatusInReview         TicketStatus = "in_review"
	TicketStatusAwaitingCustomer TicketStatus = "awaiting_customer"
	TicketStatusResolved         TicketStatus = "resolved"
	TicketStatusCancelled        TicketStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInReview, TicketStatusAwaitingCustomer,
		TicketStatusResolved, TicketStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusCancelled
}

// Ticket is the aggregate for an order refund, exchange or cancellation request.
type Ticket struct {
	ID                 string
	OrderID            string
	TicketNumber       string
	Type               TicketType
	Status             TicketStatus
	CustomerID         string
	ResellerID         *string
	SupplierID         *string
	CurrentResponsible string
	// PriorResponsible is the last non-customer responsible party, restored
	// when the customer answers an information request.
	PriorResponsible *string
	Reason           string
	Resolution       *string
	RefundAmount     *float64
	SLAFirstResponse time.Time
	SLAResolution    time.Time
	FirstRespondedAt *time.Time
	ResolvedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.ResellerID = cloneString(t.ResellerID)
	c.SupplierID = cloneString(t.SupplierID)
	c.PriorResponsible = cloneString(t.PriorResponsible)
	c.Resolution = cloneString(t.Resolution)
	c.FirstRespondedAt = cloneTime(t.FirstRespondedAt)
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	if t.RefundAmount != nil {
		amount := *t.RefundAmount
		c.RefundAmount = &amount
	}
	return &c
}

// HasParty reports whether the party id is attached to the ticket.
func (t *Ticket) HasParty(id string) bool {
	if id == "" {
		return false
	}
	if t.CustomerID == id {
		return true
	}
	if t.ResellerID != nil && *t.ResellerID == id {
		return true
	}
	return t.SupplierID != nil && *t.SupplierID == id
}

// Involves reports whether the actor is one of the ticket's parties.
func (t *Ticket) Involves(actor Actor) bool {
	switch actor.Type {
	case PartyCustomer:
		return t.CustomerID == actor.ID
	case PartyReseller:
		return t.ResellerID != nil && *t.ResellerID == actor.ID
	case PartySupplier:
		return t.SupplierID != nil && *t.SupplierID == actor.ID
	case PartySuperadmin:
		return true
	}
	return false
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
