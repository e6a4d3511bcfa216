package ordersvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/pharmacy/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/pharmacy/internal/dal/postgres"
	"github.com/corray333/backend-labs/pharmacy/internal/dal/uow"
	"github.com/corray333/backend-labs/pharmacy/internal/metrics"
	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/changeevent"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/order"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/outbox"
	"go.opentelemetry.io/otel"
)

const defaultOutboxMaxRetries = 10

// UnitOfWork is the transactional view of the order store.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// OrderService is a service for managing orders.
type OrderService struct {
	newUOW           func() UnitOfWork
	now              func() time.Time
	outboxMaxRetries int
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		now:              time.Now,
		outboxMaxRetries: defaultOutboxMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: a store is required")
	}

	return s
}

// WithPostgresClient makes the OrderService store orders in table through pgClient.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client, table string) option {
	return func(s *OrderService) {
		s.newUOW = func() UnitOfWork {
			return uow.NewUnitOfWork(pgClient, table)
		}
	}
}

// WithUnitOfWork sets the unit of work factory for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(factory func() UnitOfWork) option {
	return func(s *OrderService) {
		s.newUOW = factory
	}
}

// WithClock sets the time source used for timestamps.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *OrderService) {
		s.now = now
	}
}

// WithOutboxMaxRetries sets how many relay attempts a change record gets.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutboxMaxRetries(n int) option {
	return func(s *OrderService) {
		if n > 0 {
			s.outboxMaxRetries = n
		}
	}
}

// CreateOrder validates and stores a new order and records an insert on the change stream.
func (s *OrderService) CreateOrder(
	ctx context.Context,
	medicamentos []string,
	cliente string,
	total float64,
) (order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	now := s.now()
	o, err := order.New(medicamentos, cliente, total, now)
	if err != nil {
		return order.Order{}, err
	}

	err = s.inTx(ctx, func(work UnitOfWork) error {
		if err := work.OrderRepository().Put(ctx, o); err != nil {
			return err
		}

		return s.recordChange(ctx, work, changeevent.KindInserted, nil, &o, now)
	})
	if err != nil {
		return order.Order{}, err
	}

	metrics.OrdersCreatedTotal.Inc()
	slog.Info("Order created", "order_id", o.ID, "cliente", o.Cliente)

	return o, nil
}

// MarkDelivered sets the delivered flag of an order. Already delivered orders are saved again.
func (s *OrderService) MarkDelivered(ctx context.Context, id string) (order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.MarkDelivered")
	defer span.End()

	return s.updateStatus(ctx, id, "delivered", func(o *order.Order) {
		o.Entregue = true
	})
}

// MarkReceived sets the received flag of an order.
func (s *OrderService) MarkReceived(ctx context.Context, id string) (order.Order, error) {
	ctx, span := otel.Tracer("ordersvc").Start(ctx, "OrderService.MarkReceived")
	defer span.End()

	return s.updateStatus(ctx, id, "received", func(o *order.Order) {
		o.Recebido = true
	})
}

func (s *OrderService) updateStatus(
	ctx context.Context,
	id string,
	status string,
	mutate func(o *order.Order),
) (order.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return order.Order{}, errs.New(errs.ErrValidation, errs.WithMsg(order.MsgOrderIDRequired))
	}

	var updated order.Order
	err := s.inTx(ctx, func(work UnitOfWork) error {
		before, err := work.OrderRepository().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		updated = before
		mutate(&updated)
		updated.Touch(now)

		if err := work.OrderRepository().Update(ctx, updated); err != nil {
			return err
		}

		return s.recordChange(ctx, work, changeevent.KindModified, &before, &updated, now)
	})
	if err != nil {
		return order.Order{}, err
	}

	metrics.OrderStatusUpdatesTotal.WithLabelValues(status).Inc()
	slog.Info("Order status updated", "order_id", updated.ID, "status", status)

	return updated, nil
}

// recordChange writes the stream record of a mutation into the outbox.
func (s *OrderService) recordChange(
	ctx context.Context,
	work UnitOfWork,
	kind changeevent.Kind,
	before, after *order.Order,
	now time.Time,
) error {
	rec := changeevent.NewRecord(kind, before, after)
	payload, err := json.Marshal(rec)
	if err != nil {
		return errs.New(errs.ErrStore, errs.WithOp("OrderService.recordChange"),
			errs.WithCause(fmt.Errorf("failed to marshal change record: %w", err)))
	}

	err = work.OutboxRepository().Insert(ctx, outbox.ChangeRecord{
		OrderID:     after.ID,
		EventName:   rec.EventName,
		Payload:     payload,
		MaxRetries:  s.outboxMaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	})
	if err != nil {
		return errs.New(errs.ErrStore, errs.WithOp("OrderService.recordChange"), errs.WithCause(err))
	}

	return nil
}

// inTx runs fn inside a fresh unit of work and commits when fn succeeds.
func (s *OrderService) inTx(ctx context.Context, fn func(work UnitOfWork) error) error {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return errs.New(errs.ErrStore, errs.WithOp("OrderService.Begin"), errs.WithCause(err))
	}

	if err := fn(work); err != nil {
		if rbErr := work.Rollback(ctx); rbErr != nil {
			slog.Error("Failed to rollback transaction", "error", rbErr)
		}

		return err
	}

	if err := work.Commit(ctx); err != nil {
		return errs.New(errs.ErrStore, errs.WithOp("OrderService.Commit"), errs.WithCause(err))
	}

	return nil
}
