package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/order-ticket-service/pkg/util/errorutil"
)

var (
	customer = Actor{ID: "cust-1", Type: PartyCustomer}
	reseller = Actor{ID: "res-1", Type: PartyReseller}
	supplier = Actor{ID: "sup-1", Type: PartySupplier}
	admin    = Actor{ID: "admin-1", Type: PartySuperadmin}
	stranger = Actor{ID: "res-9", Type: PartyReseller}
)

func newTicket(ticketType TicketType) *Ticket {
	resellerID := reseller.ID
	supplierID := supplier.ID
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Ticket{
		ID:                 "t-1",
		Type:               ticketType,
		Status:             TicketStatusOpen,
		CustomerID:         customer.ID,
		ResellerID:         &resellerID,
		SupplierID:         &supplierID,
		CurrentResponsible: resellerID,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func apply(t *testing.T, ticket *Ticket, req TransitionRequest) *Ticket {
	t.Helper()
	res, err := Apply(ticket, req, time.Now())
	require.NoError(t, err)
	return res.Ticket
}

func amount(v float64) *float64 { return &v }

func TestTakeOwnershipSetsResponsibleAndFirstResponse(t *testing.T) {
	ticket := newTicket(TicketTypeExchange)
	now := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)

	res, err := Apply(ticket, TransitionRequest{Event: EventTakeOwnership, Actor: reseller}, now)
	require.NoError(t, err)

	assert.Equal(t, TicketStatusOpen, res.OldStatus)
	assert.Equal(t, TicketStatusInReview, res.NewStatus)
	assert.Equal(t, reseller.ID, res.Ticket.CurrentResponsible)
	require.NotNil(t, res.Ticket.FirstRespondedAt)
	assert.Equal(t, now, *res.Ticket.FirstRespondedAt)
	assert.Equal(t, now, res.Ticket.UpdatedAt)
	assert.Contains(t, res.AuditMessage, "Open to In review")
	assert.Contains(t, res.AuditMessage, "reseller:res-1")
	assert.Equal(t, TicketStatusOpen, ticket.Status, "input ticket untouched")
}

func TestAdminTakesOwnershipOfPoolTicket(t *testing.T) {
	ticket := newTicket(TicketTypeExchange)
	ticket.ResellerID = nil
	ticket.SupplierID = nil
	ticket.CurrentResponsible = AdminPool

	_, err := Apply(ticket, TransitionRequest{Event: EventTakeOwnership, Actor: reseller}, time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	next := apply(t, ticket, TransitionRequest{Event: EventTakeOwnership, Actor: admin})
	assert.Equal(t, admin.ID, next.CurrentResponsible)
}

func TestNonResponsiblePartyIsForbidden(t *testing.T) {
	ticket := newTicket(TicketTypeRefund)

	for _, actor := range []Actor{supplier, stranger, customer} {
		_, err := Apply(ticket, TransitionRequest{Event: EventTakeOwnership, Actor: actor}, time.Now())
		assert.True(t, errors.Is(err, apperrors.ErrForbidden), actor.String())
	}
}

func TestRequestInfoAndCustomerReplyHandOff(t *testing.T) {
	ticket := apply(t, newTicket(TicketTypeExchange), TransitionRequest{Event: EventTakeOwnership, Actor: reseller})

	awaiting := apply(t, ticket, TransitionRequest{Event: EventRequestInfo, Actor: reseller})
	assert.Equal(t, TicketStatusAwaitingCustomer, awaiting.Status)
	assert.Equal(t, customer.ID, awaiting.CurrentResponsible)

	_, err := Apply(awaiting, TransitionRequest{Event: EventCustomerReply, Actor: reseller}, time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	back := apply(t, awaiting, TransitionRequest{Event: EventCustomerReply, Actor: customer})
	assert.Equal(t, TicketStatusInReview, back.Status)
	assert.Equal(t, reseller.ID, back.CurrentResponsible)
}

func TestFirstRespondedAtSetOnce(t *testing.T) {
	ticket := newTicket(TicketTypeExchange)
	first := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	res, err := Apply(ticket, TransitionRequest{Event: EventTakeOwnership, Actor: reseller}, first)
	require.NoError(t, err)

	reopened := res.Ticket.Clone()
	reopened.Status = TicketStatusOpen
	res, err = Apply(reopened, TransitionRequest{Event: EventTakeOwnership, Actor: reseller}, first.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, *res.Ticket.FirstRespondedAt)
}

func TestResolveRefundCreatesPendingRefund(t *testing.T) {
	ticket := apply(t, newTicket(TicketTypeRefund), TransitionRequest{Event: EventTakeOwnership, Actor: reseller})
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	res, err := Apply(ticket, TransitionRequest{
		Event:        EventResolve,
		Actor:        reseller,
		Resolution:   "  refund approved ",
		RefundAmount: amount(49.9),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, TicketStatusResolved, res.Ticket.Status)
	assert.Equal(t, "refund approved", *res.Ticket.Resolution)
	assert.Equal(t, now, *res.Ticket.ResolvedAt)
	assert.Equal(t, 49.9, *res.Ticket.RefundAmount)
	require.NotNil(t, res.Refund)
	assert.Equal(t, 49.9, res.Refund.Amount)
	assert.Equal(t, RefundStatusPending, res.Refund.Status)
	assert.Equal(t, customer.ID, res.Refund.CustomerID)
	assert.Equal(t, ticket.ID, res.Refund.TicketID)
}

func TestResolveValidation(t *testing.T) {
	refund := apply(t, newTicket(TicketTypeRefund), TransitionRequest{Event: EventTakeOwnership, Actor: reseller})
	exchange := apply(t, newTicket(TicketTypeExchange), TransitionRequest{Event: EventTakeOwnership, Actor: reseller})

	cases := []struct {
		name   string
		ticket *Ticket
		req    TransitionRequest
	}{
		{"empty resolution", exchange, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "   "}},
		{"refund amount on exchange", exchange, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "ok", RefundAmount: amount(5)}},
		{"refund without amount", refund, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "ok"}},
		{"refund with zero amount", refund, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "ok", RefundAmount: amount(0)}},
		{"refund below one cent", refund, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "ok", RefundAmount: amount(0.001)}},
		{"refund with sub-cent part", refund, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "ok", RefundAmount: amount(10.005)}},
		{"refund not a number", refund, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "ok", RefundAmount: amount(math.NaN())}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Apply(tc.ticket, tc.req, time.Now())
			assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
		})
	}

	res, err := Apply(exchange, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "replacement shipped"}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, res.Refund)
	assert.Nil(t, res.Ticket.RefundAmount)

	res, err = Apply(refund, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "ok", RefundAmount: amount(19.99)}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, res.Refund)
	assert.Equal(t, 19.99, res.Refund.Amount)
}

func TestCancelByAnyPartyFromEveryOpenState(t *testing.T) {
	open := newTicket(TicketTypeCancellation)
	review := apply(t, open, TransitionRequest{Event: EventTakeOwnership, Actor: reseller})
	awaiting := apply(t, review, TransitionRequest{Event: EventRequestInfo, Actor: reseller})

	for _, ticket := range []*Ticket{open, review, awaiting} {
		for _, actor := range []Actor{customer, reseller, supplier, admin} {
			res, err := Apply(ticket, TransitionRequest{Event: EventCancel, Actor: actor, Resolution: "no longer needed"}, time.Now())
			require.NoError(t, err, "%s from %s", actor, ticket.Status)
			assert.Equal(t, TicketStatusCancelled, res.Ticket.Status)
			assert.NotNil(t, res.Ticket.ResolvedAt)
			assert.Equal(t, "no longer needed", *res.Ticket.Resolution)
		}
	}

	_, err := Apply(open, TransitionRequest{Event: EventCancel, Actor: stranger, Resolution: "x"}, time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = Apply(open, TransitionRequest{Event: EventCancel, Actor: customer}, time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestTerminalTicketsRejectEverything(t *testing.T) {
	review := apply(t, newTicket(TicketTypeExchange), TransitionRequest{Event: EventTakeOwnership, Actor: reseller})
	resolved := apply(t, review, TransitionRequest{Event: EventResolve, Actor: reseller, Resolution: "done"})

	for _, event := range []TransitionEvent{EventTakeOwnership, EventRequestInfo, EventCustomerReply, EventResolve, EventCancel} {
		_, err := Apply(resolved, TransitionRequest{Event: event, Actor: admin, Resolution: "again"}, time.Now())
		assert.True(t, errors.Is(err, apperrors.ErrTicketClosed), event)
	}
}

func TestInvalidPairsRejected(t *testing.T) {
	open := newTicket(TicketTypeExchange)
	for _, event := range []TransitionEvent{EventRequestInfo, EventCustomerReply, EventResolve} {
		_, err := Apply(open, TransitionRequest{Event: event, Actor: admin, Resolution: "r"}, time.Now())
		assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition), event)
	}

	_, err := Apply(open, TransitionRequest{Event: "reopen", Actor: admin}, time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = Apply(open, TransitionRequest{Event: EventTakeOwnership}, time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}
