package domain

import (
	"time"

	apperrors "github.com/spec-kit/order-ticket-service/pkg/util/errorutil"
)

type slaPolicy struct {
	firstResponse time.Duration
	resolution    time.Duration
}

var slaTable = map[TicketType]slaPolicy{
	TicketTypeCancellation: {firstResponse: 4 * time.Hour, resolution: 24 * time.Hour},
	TicketTypeRefund:       {firstResponse: 24 * time.Hour, resolution: 72 * time.Hour},
	TicketTypeExchange:     {firstResponse: 24 * time.Hour, resolution: 168 * time.Hour},
}

// Deadlines holds the absolute SLA deadlines of a ticket.
type Deadlines struct {
	firstResponse time.Time
	resolution    time.Time
}

// FirstResponse is when an owner must have picked the ticket up.
func (d Deadlines) FirstResponse() time.Time { return d.firstResponse }

// Resolution is when the ticket must be closed.
func (d Deadlines) Resolution() time.Time { return d.resolution }

// ComputeDeadlines derives both deadlines from the ticket type and creation time.
func ComputeDeadlines(ticketType TicketType, createdAt time.Time) (Deadlines, error) {
	policy, ok := slaTable[ticketType]
	if !ok {
		return Deadlines{}, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": ticketType})
	}
	return Deadlines{
		firstResponse: createdAt.Add(policy.firstResponse),
		resolution:    createdAt.Add(policy.resolution),
	}, nil
}

// SLABreach is derived at read time and never stored.
type SLABreach struct {
	FirstResponse bool
	Resolution    bool
}

// Any reports whether either deadline is breached.
func (b SLABreach) Any() bool {
	return b.FirstResponse || b.Resolution
}

// Breached evaluates both deadlines of the ticket against now.
func Breached(ticket *Ticket, now time.Time) SLABreach {
	return SLABreach{
		FirstResponse: ticket.FirstRespondedAt == nil && now.After(ticket.SLAFirstResponse),
		Resolution:    ticket.ResolvedAt == nil && now.After(ticket.SLAResolution),
	}
}
