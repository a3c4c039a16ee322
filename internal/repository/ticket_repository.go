package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/order-ticket-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CustomerID *string
	ResellerID *string
	SupplierID *string
	OrderID    *string
	Statuses   []domain.TicketStatus
	Types      []domain.TicketType
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create inserts the ticket and assigns ID and TicketNumber.
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// CompareAndSwap writes the mutable ticket fields only if the stored row
	// still has expectedStatus and expectedUpdatedAt. It reports whether the
	// row was written.
	CompareAndSwap(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus, expectedUpdatedAt time.Time) (bool, error)
	// Touch bumps updated_at after thread activity.
	Touch(ctx context.Context, id string, at time.Time) error
	// ListPastDeadline returns non-terminal tickets with a breached SLA at now.
	ListPastDeadline(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db querier
}

const ticketColumns = `id, order_id, ticket_number, type, status, customer_id, reseller_id, supplier_id,
               current_responsible, prior_responsible, reason, resolution, refund_amount,
               sla_first_response, sla_resolution, first_responded_at, resolved_at, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (order_id, ticket_number, type, status, customer_id, reseller_id, supplier_id,
            current_responsible, reason, sla_first_response, sla_resolution, created_at, updated_at)
        VALUES ($1, 'TKT-' || lpad(nextval('ticket_number_seq')::text, 6, '0'), $2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, ticket_number`
	return r.db.QueryRow(ctx, query,
		ticket.OrderID,
		ticket.Type,
		ticket.Status,
		ticket.CustomerID,
		ticket.ResellerID,
		ticket.SupplierID,
		ticket.CurrentResponsible,
		ticket.Reason,
		ticket.SLAFirstResponse,
		ticket.SLAResolution,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.ID, &ticket.TicketNumber)
}

func (r *ticketRepository) CompareAndSwap(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus, expectedUpdatedAt time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET status=$1, current_responsible=$2, prior_responsible=$3, resolution=$4,
            refund_amount=$5, first_responded_at=$6, resolved_at=$7, updated_at=$8
        WHERE id=$9 AND status=$10 AND updated_at=$11`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Status,
		ticket.CurrentResponsible,
		ticket.PriorResponsible,
		ticket.Resolution,
		ticket.RefundAmount,
		ticket.FirstRespondedAt,
		ticket.ResolvedAt,
		ticket.UpdatedAt,
		ticket.ID,
		expectedStatus,
		expectedUpdatedAt,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE tickets SET updated_at=$1 WHERE id=$2 AND updated_at < $1`, at, id)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.ResellerID != nil {
		args = append(args, *filter.ResellerID)
		clauses = append(clauses, fmt.Sprintf("reseller_id=$%d", len(args)))
	}
	if filter.SupplierID != nil {
		args = append(args, *filter.SupplierID)
		clauses = append(clauses, fmt.Sprintf("supplier_id=$%d", len(args)))
	}
	if filter.OrderID != nil {
		args = append(args, *filter.OrderID)
		clauses = append(clauses, fmt.Sprintf("order_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(ticket_number) LIKE %s OR LOWER(reason) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListPastDeadline(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE status NOT IN ('resolved','cancelled')
          AND ((first_responded_at IS NULL AND sla_first_response < $1)
            OR (resolved_at IS NULL AND sla_resolution < $1))
        ORDER BY sla_first_response ASC
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// NormalizePage clamps a page size to 1..100 (default 20) and offset to >= 0.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.OrderID,
			&ticket.TicketNumber,
			&ticket.Type,
			&ticket.Status,
			&ticket.CustomerID,
			&ticket.ResellerID,
			&ticket.SupplierID,
			&ticket.CurrentResponsible,
			&ticket.PriorResponsible,
			&ticket.Reason,
			&ticket.Resolution,
			&ticket.RefundAmount,
			&ticket.SLAFirstResponse,
			&ticket.SLAResolution,
			&ticket.FirstRespondedAt,
			&ticket.ResolvedAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
