package domain

// Order status values relevant to ticket eligibility.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"

	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// Order is the read-only view of a storefront order.
type Order struct {
	ID            string
	CustomerID    string
	ResellerID    *string
	SupplierID    *string
	Status        string
	PaymentStatus string
	TotalAmount   float64
}

// InitialResponsible returns the party expected to act on a new ticket.
func (o *Order) InitialResponsible() string {
	if o.ResellerID != nil && *o.ResellerID != "" {
		return *o.ResellerID
	}
	if o.SupplierID != nil && *o.SupplierID != "" {
		return *o.SupplierID
	}
	return AdminPool
}
