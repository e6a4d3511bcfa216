package uow

import (
	"context"

	"github.com/corray333/backend-labs/pharmacy/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/pharmacy/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/pharmacy/internal/dal/postgres"
	orderrepo "github.com/corray333/backend-labs/pharmacy/internal/dal/repositories/order/postgres"
	outboxrepo "github.com/corray333/backend-labs/pharmacy/internal/dal/repositories/outbox/postgres"
	"github.com/jackc/pgx/v5"
)

// UnitOfWork groups the order write and its outbox change record in one transaction.
type UnitOfWork struct {
	client     *postgres.Client
	table      string
	tx         pgx.Tx
	orderRepo  iorderrepo.IOrderRepository
	outboxRepo ioutboxrepo.IOutboxRepository
}

// NewUnitOfWork creates a unit of work whose repositories initially run on the pool.
func NewUnitOfWork(client *postgres.Client, table string) *UnitOfWork {
	return &UnitOfWork{
		client:     client,
		table:      table,
		orderRepo:  orderrepo.NewPostgresOrderRepository(client.Pool(), table),
		outboxRepo: outboxrepo.NewOutboxRepository(client.Pool()),
	}
}

func (u *UnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	// Rebind repositories to the transaction
	u.orderRepo = orderrepo.NewPostgresOrderRepository(tx, u.table)
	u.outboxRepo = outboxrepo.NewOutboxRepository(tx)

	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

// Rollback aborts the transaction started by Begin.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Rollback(ctx)
}
