package repository

import (
	"context"

	"github.com/spec-kit/order-ticket-service/internal/domain"
)

// TicketMessageRepository manages ticket thread messages. Messages are
// append-only.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListByTicket returns the thread ordered by created_at, ties broken by
	// insertion sequence.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
}

type ticketMessageRepository struct {
	db querier
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, author_id, author_type, message, is_internal, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, seq`
	return r.db.QueryRow(ctx, query,
		msg.TicketID,
		msg.AuthorID,
		msg.AuthorType,
		msg.Body,
		msg.IsInternal,
		msg.CreatedAt,
	).Scan(&msg.ID, &msg.Seq)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, author_id, author_type, message, is_internal, seq, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.AuthorID,
			&msg.AuthorType,
			&msg.Body,
			&msg.IsInternal,
			&msg.Seq,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
