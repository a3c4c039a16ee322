package domain

import (
	apperrors "github.com/spec-kit/order-ticket-service/pkg/util/errorutil"
)

var (
	refundOrderStatuses = map[string]struct{}{
		OrderStatusConfirmed:  {},
		OrderStatusProcessing: {},
		OrderStatusShipped:    {},
		OrderStatusDelivered:  {},
	}
	exchangeOrderStatuses = map[string]struct{}{
		OrderStatusShipped:   {},
		OrderStatusDelivered: {},
	}
	cancellationOrderStatuses = map[string]struct{}{
		OrderStatusConfirmed:  {},
		OrderStatusProcessing: {},
	}
)

// AvailableTicketTypes returns the ticket types an order currently qualifies
// for. The result is never cached; callers evaluate it against the latest
// order state.
func AvailableTicketTypes(orderStatus, paymentStatus string) []TicketType {
	paid := paymentStatus == PaymentStatusPaid
	types := make([]TicketType, 0, len(TicketTypes))
	if _, ok := refundOrderStatuses[orderStatus]; ok && paid {
		types = append(types, TicketTypeRefund)
	}
	if _, ok := exchangeOrderStatuses[orderStatus]; ok {
		types = append(types, TicketTypeExchange)
	}
	if _, ok := cancellationOrderStatuses[orderStatus]; ok && paid {
		types = append(types, TicketTypeCancellation)
	}
	return types
}

// CheckEligibility rejects ticket types the order does not qualify for.
func CheckEligibility(order *Order, ticketType TicketType) error {
	for _, t := range AvailableTicketTypes(order.Status, order.PaymentStatus) {
		if t == ticketType {
			return nil
		}
	}
	return apperrors.NewNotEligible("ticket type not available for this order", map[string]any{
		"order_id":       order.ID,
		"order_status":   order.Status,
		"payment_status": order.PaymentStatus,
		"ticket_type":    ticketType,
	})
}

var typeLabels = map[TicketType]string{
	TicketTypeRefund:       "Refund",
	TicketTypeExchange:     "Exchange",
	TicketTypeCancellation: "Cancellation",
}

var statusLabels = map[TicketStatus]string{
	TicketStatusOpen:             "Open",
	TicketStatusInReview:         "In review",
	TicketStatusAwaitingCustomer: "Awaiting customer",
	TicketStatusResolved:         "Resolved",
	TicketStatusCancelled:        "Cancelled",
}

// TypeLabel returns the display name of a ticket type.
func TypeLabel(t TicketType) string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return string(t)
}

// StatusLabel returns the display name of a ticket status.
func StatusLabel(s TicketStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}
