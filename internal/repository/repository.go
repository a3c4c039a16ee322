package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups the stores written during a ticket transition.
type Repositories struct {
	Tickets  TicketRepository
	Messages TicketMessageRepository
	Refunds  PendingRefundRepository
}

// Transactor runs fn inside a single unit of work. A non-nil error from fn
// rolls back every write made through repos.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// NewPostgresRepositories builds pool-backed repositories.
func NewPostgresRepositories(pool *pgxpool.Pool) Repositories {
	return newRepositories(pool)
}

func newRepositories(db querier) Repositories {
	return Repositories{
		Tickets:  &ticketRepository{db: db},
		Messages: &ticketMessageRepository{db: db},
		Refunds:  &pendingRefundRepository{db: db},
	}
}

type pgTransactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Postgres-backed Transactor.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return &pgTransactor{pool: pool}
}

func (t *pgTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
