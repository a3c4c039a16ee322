// Package memory keeps tickets in process memory. It backs the service when
// no Postgres DSN is configured and is used throughout the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/order-ticket-service/internal/domain"
	"github.com/spec-kit/order-ticket-service/internal/repository"
)

// Store implements every repository interface plus repository.Transactor.
type Store struct {
	// txMu serializes units of work; mu guards the maps.
	txMu sync.Mutex
	mu   sync.RWMutex

	orders    map[string]domain.Order
	tickets   map[string]*domain.Ticket
	messages  map[string][]domain.Message
	refunds   map[string][]domain.PendingRefund
	ticketSeq int64
	msgSeq    int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		tickets:  make(map[string]*domain.Ticket),
		messages: make(map[string][]domain.Message),
		refunds:  make(map[string][]domain.PendingRefund),
	}
}

// Repositories returns repositories operating directly on the store.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Tickets:  ticketRepo{s},
		Messages: messageRepo{s},
		Refunds:  refundRepo{s},
	}
}

// Orders returns the read-only order repository.
func (s *Store) Orders() repository.OrderRepository {
	return orderRepo{s}
}

// PutOrder seeds or replaces an order.
func (s *Store) PutOrder(order domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

// WithinTx runs fn while holding the unit-of-work lock and restores the
// previous state if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s.Repositories()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	tickets   map[string]*domain.Ticket
	messages  map[string][]domain.Message
	refunds   map[string][]domain.PendingRefund
	ticketSeq int64
	msgSeq    int64
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		tickets:   make(map[string]*domain.Ticket, len(s.tickets)),
		messages:  make(map[string][]domain.Message, len(s.messages)),
		refunds:   make(map[string][]domain.PendingRefund, len(s.refunds)),
		ticketSeq: s.ticketSeq,
		msgSeq:    s.msgSeq,
	}
	for id, t := range s.tickets {
		snap.tickets[id] = t.Clone()
	}
	for id, msgs := range s.messages {
		snap.messages[id] = append([]domain.Message(nil), msgs...)
	}
	for id, refunds := range s.refunds {
		snap.refunds[id] = append([]domain.PendingRefund(nil), refunds...)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = snap.tickets
	s.messages = snap.messages
	s.refunds = snap.refunds
	s.ticketSeq = snap.ticketSeq
	s.msgSeq = snap.msgSeq
}

type orderRepo struct{ s *Store }

func (r orderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	order, ok := r.s.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &order, nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.ticketSeq++
	ticket.ID = uuid.NewString()
	ticket.TicketNumber = fmt.Sprintf("TKT-%06d", r.s.ticketSeq)
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket.Clone(), nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	var matched []domain.Ticket
	for _, ticket := range r.s.tickets {
		if matchesFilter(ticket, filter) {
			matched = append(matched, *ticket.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	limit, offset := repository.NormalizePage(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matchesFilter(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.ResellerID != nil && (ticket.ResellerID == nil || *ticket.ResellerID != *filter.ResellerID) {
		return false
	}
	if filter.SupplierID != nil && (ticket.SupplierID == nil || *ticket.SupplierID != *filter.SupplierID) {
		return false
	}
	if filter.OrderID != nil && ticket.OrderID != *filter.OrderID {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Types) > 0 && !containsType(filter.Types, ticket.Type) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(ticket.TicketNumber), term) &&
			!strings.Contains(strings.ToLower(ticket.Reason), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsType(list []domain.TicketType, v domain.TicketType) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}

func (r ticketRepo) CompareAndSwap(_ context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus, expectedUpdatedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return false, nil
	}
	if stored.Status != expectedStatus || !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return false, nil
	}
	r.s.tickets[ticket.ID] = ticket.Clone()
	return true, nil
}

func (r ticketRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if stored, ok := r.s.tickets[id]; ok && stored.UpdatedAt.Before(at) {
		stored.UpdatedAt = at
	}
	return nil
}

func (r ticketRepo) ListPastDeadline(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	r.s.mu.RLock()
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if ticket.Status.Terminal() {
			continue
		}
		if domain.Breached(ticket, now).Any() {
			result = append(result, *ticket.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].SLAFirstResponse.Before(result[j].SLAFirstResponse)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.msgSeq++
	msg.ID = uuid.NewString()
	msg.Seq = r.s.msgSeq
	r.s.messages[msg.TicketID] = append(r.s.messages[msg.TicketID], *msg)
	return nil
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	r.s.mu.RLock()
	msgs := append([]domain.Message(nil), r.s.messages[ticketID]...)
	r.s.mu.RUnlock()

	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].Seq < msgs[j].Seq
	})
	return msgs, nil
}

type refundRepo struct{ s *Store }

func (r refundRepo) Create(_ context.Context, refund *domain.PendingRefund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	refund.ID = uuid.NewString()
	r.s.refunds[refund.TicketID] = append(r.s.refunds[refund.TicketID], *refund)
	return nil
}

func (r refundRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.PendingRefund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.PendingRefund(nil), r.s.refunds[ticketID]...), nil
}
