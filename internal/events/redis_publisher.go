package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher forwards events to per-ticket Redis pub/sub channels so
// open ticket views can refresh in real time.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher builds a publisher writing to "<prefix>:<ticket_id>".
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "ticket"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel for a ticket.
func (p *RedisPublisher) Channel(ticketID string) string {
	return fmt.Sprintf("%s:%s", p.prefix, ticketID)
}

// Handle is an EventHandler.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.client.Publish(ctx, p.Channel(event.TicketID), body).Err()
}

// Subscribe opens a subscription to a ticket's channel. Callers must close
// the returned PubSub.
func (p *RedisPublisher) Subscribe(ctx context.Context, ticketID string) *redis.PubSub {
	return p.client.Subscribe(ctx, p.Channel(ticketID))
}
