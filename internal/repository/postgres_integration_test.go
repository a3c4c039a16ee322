//go:build integration
// +build integration

package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/order-ticket-service/internal/domain"
	"github.com/spec-kit/order-ticket-service/internal/persistence"
	"github.com/spec-kit/order-ticket-service/internal/repository"
)

// Run with: TEST_POSTGRES_DSN=postgres://... go test -tags integration ./internal/repository/...
func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load(".env")
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	return pool
}

func seedPostgresTicket(t *testing.T, pool *pgxpool.Pool, ticketType domain.TicketType) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	orderID := uuid.NewString()
	_, err := pool.Exec(ctx, `INSERT INTO orders (id, customer_id, reseller_id, status, payment_status, total_amount)
        VALUES ($1, 'c-1', 'r-1', 'shipped', 'paid', 100)`, orderID)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	resellerID := "r-1"
	ticket := &domain.Ticket{
		OrderID:            orderID,
		Type:               ticketType,
		Status:             domain.TicketStatusInReview,
		CustomerID:         "c-1",
		ResellerID:         &resellerID,
		CurrentResponsible: resellerID,
		Reason:             "damaged parcel",
		SLAFirstResponse:   now.Add(time.Hour),
		SLAResolution:      now.Add(72 * time.Hour),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, repository.NewPostgresRepositories(pool).Tickets.Create(ctx, ticket))
	return ticket
}

func resolved(ticket *domain.Ticket, resolution string) *domain.Ticket {
	next := ticket.Clone()
	at := ticket.UpdatedAt.Add(time.Second)
	next.Status = domain.TicketStatusResolved
	next.Resolution = &resolution
	next.ResolvedAt = &at
	next.UpdatedAt = at
	return next
}

func TestPostgresConcurrentResolveOnlyOneWins(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	ticket := seedPostgresTicket(t, pool, domain.TicketTypeExchange)
	transactor := repository.NewTransactor(pool)

	var (
		ready sync.WaitGroup
		done  sync.WaitGroup
		mu    sync.Mutex
		wins  int
	)
	ready.Add(2)
	for _, resolution := range []string{"first", "second"} {
		done.Add(1)
		go func(resolution string) {
			defer done.Done()
			err := transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
				ready.Done()
				ready.Wait()
				ok, err := repos.Tickets.CompareAndSwap(ctx, resolved(ticket, resolution), ticket.Status, ticket.UpdatedAt)
				if err != nil {
					return err
				}
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
				return nil
			})
			assert.NoError(t, err)
		}(resolution)
	}
	done.Wait()

	assert.Equal(t, 1, wins)
	stored, err := repository.NewPostgresRepositories(pool).Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
}

func TestPostgresTouchInvalidatesPendingSwap(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	ticket := seedPostgresTicket(t, pool, domain.TicketTypeExchange)
	tickets := repository.NewPostgresRepositories(pool).Tickets

	require.NoError(t, tickets.Touch(ctx, ticket.ID, ticket.UpdatedAt.Add(-time.Minute)))
	stored, err := tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(ticket.UpdatedAt), "touch never moves updated_at backwards")

	require.NoError(t, tickets.Touch(ctx, ticket.ID, ticket.UpdatedAt.Add(time.Millisecond)))
	ok, err := tickets.CompareAndSwap(ctx, resolved(ticket, "late"), ticket.Status, ticket.UpdatedAt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresTransactorRollsBackOnRefundFailure(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	ticket := seedPostgresTicket(t, pool, domain.TicketTypeRefund)
	repos := repository.NewPostgresRepositories(pool)

	err := repository.NewTransactor(pool).WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		next := resolved(ticket, "refund approved")
		ok, err := tx.Tickets.CompareAndSwap(ctx, next, ticket.Status, ticket.UpdatedAt)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.Messages.Create(ctx, &domain.Message{
			TicketID:   ticket.ID,
			AuthorType: domain.PartySystem,
			Body:       "Status changed",
			CreatedAt:  next.UpdatedAt,
		}))
		// amount > 0 is enforced by the table.
		return tx.Refunds.Create(ctx, &domain.PendingRefund{
			TicketID:   ticket.ID,
			CustomerID: ticket.CustomerID,
			Amount:     0,
			Status:     domain.RefundStatusPending,
			CreatedAt:  next.UpdatedAt,
		})
	})
	require.Error(t, err)

	stored, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInReview, stored.Status)
	assert.Nil(t, stored.Resolution)
	msgs, err := repos.Messages.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	refunds, err := repos.Refunds.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}
