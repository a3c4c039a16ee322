package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/order-ticket-service/internal/config"
)

func TestDispatcherSwallowsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	var seen []string
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		seen = append(seen, "first")
		return errors.New("webhook down")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		seen = append(seen, "second")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestSubscribeAllReceivesEveryType(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	got := map[EventType]int{}
	SubscribeAll(d, func(_ context.Context, e Event) error {
		got[e.Type]++
		return nil
	})
	for _, eventType := range AllEventTypes {
		require.NoError(t, d.Publish(context.Background(), Event{Type: eventType}))
	}
	assert.Len(t, got, len(AllEventTypes))
}

func TestKafkaPublisherDisabledWithoutBrokers(t *testing.T) {
	assert.Nil(t, NewKafkaPublisher(config.KafkaConfig{Topic: "x"}))

	var p *KafkaPublisher
	assert.NoError(t, p.Close())
}

func TestRedisChannelNaming(t *testing.T) {
	p := NewRedisPublisher(nil, "")
	assert.Equal(t, "ticket:abc", p.Channel("abc"))
}
