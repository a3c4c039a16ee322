package domain

import "time"

// RefundStatus tracks processing of a pending refund.
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusCancelled  RefundStatus = "cancelled"
)

// PendingRefund is created exactly once when a refund ticket is resolved.
type PendingRefund struct {
	ID          string
	TicketID    string
	CustomerID  string
	Amount      float64
	Status      RefundStatus
	ProcessedAt *time.Time
	ProcessedBy *string
	CreatedAt   time.Time
}
