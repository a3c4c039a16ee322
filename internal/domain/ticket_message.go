package domain

import "time"

// Message is an append-only entry in a ticket thread.
type Message struct {
	ID         string
	TicketID   string
	AuthorID   *string
	AuthorType PartyType
	Body       string
	// IsInternal hides the message from the customer.
	IsInternal bool
	// Seq breaks created_at ties in insertion order.
	Seq       int64
	CreatedAt time.Time
}

// VisibleTo reports whether the actor may read the message.
func (m Message) VisibleTo(actor Actor) bool {
	if !m.IsInternal {
		return true
	}
	return actor.Type != PartyCustomer
}
