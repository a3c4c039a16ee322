package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/order-ticket-service/internal/domain"
)

// OrderRepository reads storefront orders. Orders are owned elsewhere and
// never written by this service.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

type orderRepository struct {
	db querier
}

// NewOrderRepository instantiates repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{db: pool}
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	const query = `
        SELECT id, customer_id, reseller_id, supplier_id, status, payment_status, total_amount
        FROM orders WHERE id=$1`
	var order domain.Order
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.CustomerID,
		&order.ResellerID,
		&order.SupplierID,
		&order.Status,
		&order.PaymentStatus,
		&order.TotalAmount,
	); err != nil {
		return nil, err
	}
	return &order, nil
}
