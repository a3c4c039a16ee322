package repository

import (
	"context"

	"github.com/spec-kit/order-ticket-service/internal/domain"
)

// PendingRefundRepository is the refund ledger written on refund resolution.
type PendingRefundRepository interface {
	Create(ctx context.Context, refund *domain.PendingRefund) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.PendingRefund, error)
}

type pendingRefundRepository struct {
	db querier
}

func (r *pendingRefundRepository) Create(ctx context.Context, refund *domain.PendingRefund) error {
	const query = `
        INSERT INTO pending_refunds (ticket_id, customer_id, amount, status, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		refund.TicketID,
		refund.CustomerID,
		refund.Amount,
		refund.Status,
		refund.CreatedAt,
	).Scan(&refund.ID)
}

func (r *pendingRefundRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.PendingRefund, error) {
	const query = `
        SELECT id, ticket_id, customer_id, amount, status, processed_at, processed_by, created_at
        FROM pending_refunds WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PendingRefund
	for rows.Next() {
		var refund domain.PendingRefund
		if err := rows.Scan(
			&refund.ID,
			&refund.TicketID,
			&refund.CustomerID,
			&refund.Amount,
			&refund.Status,
			&refund.ProcessedAt,
			&refund.ProcessedBy,
			&refund.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, refund)
	}
	return result, rows.Err()
}
