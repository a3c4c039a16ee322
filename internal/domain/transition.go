package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/spec-kit/order-ticket-service/pkg/util/errorutil"
)

// TransitionEvent names an action that moves a ticket between statuses.
type TransitionEvent string

const (
	EventTakeOwnership TransitionEvent = "take_ownership"
	EventRequestInfo   TransitionEvent = "request_info"
	EventCustomerReply TransitionEvent = "customer_reply"
	EventResolve       TransitionEvent = "resolve"
	EventCancel        TransitionEvent = "cancel"
)

// Valid reports whether e is a known event.
func (e TransitionEvent) Valid() bool {
	switch e {
	case EventTakeOwnership, EventRequestInfo, EventCustomerReply, EventResolve, EventCancel:
		return true
	}
	return false
}

// TransitionRequest is the input of Apply.
type TransitionRequest struct {
	Event        TransitionEvent
	Actor        Actor
	Resolution   string
	RefundAmount *float64
}

// TransitionResult describes an accepted transition.
type TransitionResult struct {
	Ticket       *Ticket
	OldStatus    TicketStatus
	NewStatus    TicketStatus
	AuditMessage string
	// Refund is set only when a refund ticket is resolved.
	Refund *PendingRefund
}

// nextStatus is the transition table. Pairs not listed are rejected.
func nextStatus(from TicketStatus, event TransitionEvent) (TicketStatus, bool) {
	switch from {
	case TicketStatusOpen:
		switch event {
		case EventTakeOwnership:
			return TicketStatusInReview, true
		case EventCancel:
			return TicketStatusCancelled, true
		}
	case TicketStatusInReview:
		switch event {
		case EventRequestInfo:
			return TicketStatusAwaitingCustomer, true
		case EventResolve:
			return TicketStatusResolved, true
		case EventCancel:
			return TicketStatusCancelled, true
		}
	case TicketStatusAwaitingCustomer:
		switch event {
		case EventCustomerReply:
			return TicketStatusInReview, true
		case EventCancel:
			return TicketStatusCancelled, true
		}
	}
	return "", false
}

// Apply validates the request against the ticket and returns the updated
// copy. The input ticket is never modified.
func Apply(ticket *Ticket, req TransitionRequest, now time.Time) (*TransitionResult, error) {
	if !req.Actor.Valid() {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if !req.Event.Valid() {
		return nil, apperrors.NewValidationError("unknown transition event", map[string]any{"event": req.Event})
	}
	if ticket.Status.Terminal() {
		return nil, apperrors.NewTicketClosed(map[string]any{"ticket_id": ticket.ID, "status": ticket.Status})
	}
	to, ok := nextStatus(ticket.Status, req.Event)
	if !ok {
		return nil, apperrors.NewInvalidTransition("transition not allowed from current status", map[string]any{
			"status": ticket.Status,
			"event":  req.Event,
		})
	}
	if err := guardActor(ticket, req.Event, req.Actor); err != nil {
		return nil, err
	}

	next := ticket.Clone()
	result := &TransitionResult{Ticket: next, OldStatus: ticket.Status, NewStatus: to}

	switch req.Event {
	case EventTakeOwnership:
		next.CurrentResponsible = req.Actor.ID
		if next.FirstRespondedAt == nil {
			respondedAt := now
			next.FirstRespondedAt = &respondedAt
		}
	case EventRequestInfo:
		prior := next.CurrentResponsible
		next.PriorResponsible = &prior
		next.CurrentResponsible = next.CustomerID
	case EventCustomerReply:
		next.CurrentResponsible = AdminPool
		if next.PriorResponsible != nil && *next.PriorResponsible != "" {
			next.CurrentResponsible = *next.PriorResponsible
		}
	case EventResolve:
		resolution, err := requireResolution(req.Resolution)
		if err != nil {
			return nil, err
		}
		if err := validateRefundAmount(next.Type, req.RefundAmount); err != nil {
			return nil, err
		}
		closeTicket(next, resolution, now)
		if next.Type == TicketTypeRefund {
			amount := math.Round(*req.RefundAmount*100) / 100
			next.RefundAmount = &amount
			result.Refund = &PendingRefund{
				TicketID:   next.ID,
				CustomerID: next.CustomerID,
				Amount:     amount,
				Status:     RefundStatusPending,
				CreatedAt:  now,
			}
		}
	case EventCancel:
		resolution, err := requireResolution(req.Resolution)
		if err != nil {
			return nil, err
		}
		if req.RefundAmount != nil {
			return nil, apperrors.NewValidationError("refund_amount is only accepted when resolving", nil)
		}
		closeTicket(next, resolution, now)
	}

	next.Status = to
	next.UpdatedAt = now
	result.AuditMessage = fmt.Sprintf("Status changed from %s to %s by %s",
		StatusLabel(result.OldStatus), StatusLabel(to), req.Actor)
	return result, nil
}

func guardActor(ticket *Ticket, event TransitionEvent, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	switch event {
	case EventTakeOwnership, EventRequestInfo, EventResolve:
		if actor.Type != PartyReseller && actor.Type != PartySupplier {
			return apperrors.NewForbidden("only the responsible reseller, supplier or an admin can perform this action")
		}
		if ticket.CurrentResponsible != actor.ID || !ticket.Involves(actor) {
			return apperrors.NewForbidden("actor is not the responsible party")
		}
	case EventCustomerReply:
		if actor.Type != PartyCustomer || ticket.CustomerID != actor.ID {
			return apperrors.NewForbidden("only the ticket's customer can reply")
		}
	case EventCancel:
		if !ticket.Involves(actor) {
			return apperrors.NewForbidden("actor is not a party of this ticket")
		}
	}
	return nil
}

func requireResolution(resolution string) (string, error) {
	trimmed := strings.TrimSpace(resolution)
	if trimmed == "" {
		return "", apperrors.NewValidationError("resolution required", map[string]any{"field": "resolution"})
	}
	return trimmed, nil
}

func validateRefundAmount(ticketType TicketType, amount *float64) error {
	if ticketType != TicketTypeRefund {
		if amount != nil {
			return apperrors.NewValidationError("refund_amount only allowed on refund tickets", map[string]any{"type": ticketType})
		}
		return nil
	}
	if amount == nil || math.IsNaN(*amount) || math.IsInf(*amount, 0) || *amount <= 0 {
		return apperrors.NewValidationError("refund_amount must be positive", map[string]any{"field": "refund_amount"})
	}
	// Amounts are stored with two decimals.
	cents := *amount * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return apperrors.NewValidationError("refund_amount must have at most 2 decimal places", map[string]any{"field": "refund_amount"})
	}
	return nil
}

// closeTicket sets the resolution and resolved_at together.
func closeTicket(ticket *Ticket, resolution string, now time.Time) {
	resolvedAt := now
	ticket.Resolution = &resolution
	ticket.ResolvedAt = &resolvedAt
}
