package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/pharmacy/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/changeevent"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/order"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is shared by every unit of work of a test and applies writes on commit.
type memStore struct {
	orders    map[string]order.Order
	outbox    []outbox.ChangeRecord
	writes    int
	putErr    error
	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]order.Order{}}
}

type memUOW struct {
	store   *memStore
	pending map[string]order.Order
	records []outbox.ChangeRecord
}

func (u *memUOW) Begin(context.Context) error {
	u.pending = map[string]order.Order{}

	return nil
}

func (u *memUOW) Commit(context.Context) error {
	for id, o := range u.pending {
		u.store.orders[id] = o
		u.store.writes++
	}
	u.store.outbox = append(u.store.outbox, u.records...)
	u.store.commits++

	return nil
}

func (u *memUOW) Rollback(context.Context) error {
	u.pending = nil
	u.records = nil
	u.store.rollbacks++

	return nil
}

func (u *memUOW) OrderRepository() iorderrepo.IOrderRepository {
	return (*memOrders)(u)
}

func (u *memUOW) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return (*memOutbox)(u)
}

type memOrders memUOW

func (r *memOrders) Get(_ context.Context, id string) (order.Order, error) {
	o, ok := r.store.orders[id]
	if !ok {
		return order.Order{}, errs.New(errs.ErrNotFound, errs.WithMsg("order not found"))
	}

	return o, nil
}

func (r *memOrders) GetForUpdate(ctx context.Context, id string) (order.Order, error) {
	return r.Get(ctx, id)
}

func (r *memOrders) Put(_ context.Context, o order.Order) error {
	if r.store.putErr != nil {
		return r.store.putErr
	}
	r.pending[o.ID] = o

	return nil
}

func (r *memOrders) Update(_ context.Context, o order.Order) error {
	if _, ok := r.store.orders[o.ID]; !ok {
		return errs.New(errs.ErrNotFound, errs.WithMsg("order not found"))
	}
	r.pending[o.ID] = o

	return nil
}

type memOutbox memUOW

func (r *memOutbox) Insert(_ context.Context, rec outbox.ChangeRecord) error {
	r.records = append(r.records, rec)

	return nil
}

func (r *memOutbox) GetPendingRecords(context.Context, int) ([]outbox.ChangeRecord, error) {
	return nil, nil
}

func (r *memOutbox) Delete(context.Context, ...int64) error {
	return nil
}

func (r *memOutbox) UpdateRetry(context.Context, int64, int, string, time.Time) error {
	return nil
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func newTestService(store *memStore, c *clock) *OrderService {
	return MustNewOrderService(
		WithUnitOfWork(func() UnitOfWork { return &memUOW{store: store} }),
		WithClock(c.Now),
	)
}

func decodeRecord(t *testing.T, rec outbox.ChangeRecord) changeevent.ChangeEvent {
	t.Helper()

	var r changeevent.Record
	require.NoError(t, json.Unmarshal(rec.Payload, &r))
	ev, err := r.Event()
	require.NoError(t, err)

	return ev
}

func TestCreateOrder(t *testing.T) {
	store := newMemStore()
	c := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, c)

	first, err := svc.CreateOrder(context.Background(), []string{"Dipirona"}, " Maria ", 20)
	require.NoError(t, err)
	second, err := svc.CreateOrder(context.Background(), []string{"Dipirona"}, "Maria", 20)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "Maria", first.Cliente)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)
	assert.Len(t, store.orders, 2)

	require.Len(t, store.outbox, 2)
	rec := store.outbox[0]
	assert.Equal(t, first.ID, rec.OrderID)
	assert.Equal(t, changeevent.EventInsert, rec.EventName)
	assert.Equal(t, defaultOutboxMaxRetries, rec.MaxRetries)

	ev := decodeRecord(t, rec)
	assert.Equal(t, changeevent.KindInserted, ev.Kind)
	assert.Nil(t, ev.Before)
	require.NotNil(t, ev.After)
	assert.Equal(t, first, *ev.After)
}

func TestCreateOrderValidation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &clock{now: time.Now()})

	tests := []struct {
		name         string
		medicamentos []string
		cliente      string
		total        float64
	}{
		{"no medicamentos", nil, "Maria", 20},
		{"blank cliente", []string{"Dipirona"}, " ", 20},
		{"zero total", []string{"Dipirona"}, "Maria", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), tt.medicamentos, tt.cliente, tt.total)
			assert.True(t, errors.Is(err, errs.ErrValidation))
		})
	}

	assert.Zero(t, store.writes)
	assert.Empty(t, store.outbox)
	assert.Zero(t, store.commits)
}

func TestCreateOrderStoreFailureRollsBack(t *testing.T) {
	store := newMemStore()
	store.putErr = errs.New(errs.ErrStore)
	svc := newTestService(store, &clock{now: time.Now()})

	_, err := svc.CreateOrder(context.Background(), []string{"Dipirona"}, "Maria", 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrStore))
	assert.Equal(t, 1, store.rollbacks)
	assert.Zero(t, store.commits)
	assert.Empty(t, store.outbox)
}

func TestMarkDelivered(t *testing.T) {
	store := newMemStore()
	c := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, c)

	created, err := svc.CreateOrder(context.Background(), []string{"Dipirona"}, "Maria", 20)
	require.NoError(t, err)

	c.now = c.now.Add(time.Hour)
	updated, err := svc.MarkDelivered(context.Background(), created.ID)
	require.NoError(t, err)

	assert.True(t, updated.Entregue)
	assert.False(t, updated.Recebido)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, updated, store.orders[created.ID])

	require.Len(t, store.outbox, 2)
	ev := decodeRecord(t, store.outbox[1])
	assert.Equal(t, changeevent.KindModified, ev.Kind)
	require.NotNil(t, ev.Before)
	assert.False(t, ev.Before.Entregue)
	assert.True(t, ev.After.Entregue)

	t.Run("already delivered is saved again", func(t *testing.T) {
		c.now = c.now.Add(time.Hour)
		again, err := svc.MarkDelivered(context.Background(), created.ID)
		require.NoError(t, err)
		assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))
		assert.Len(t, store.outbox, 3)
	})
}

func TestMarkReceived(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &clock{now: time.Now()})

	created, err := svc.CreateOrder(context.Background(), []string{"Dipirona"}, "Maria", 20)
	require.NoError(t, err)

	updated, err := svc.MarkReceived(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, updated.Recebido)
	assert.False(t, updated.Entregue)
}

func TestMarkDeliveredNotFound(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &clock{now: time.Now()})

	_, err := svc.MarkDelivered(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Zero(t, store.writes)
	assert.Empty(t, store.outbox)
}

func TestMarkDeliveredRequiresID(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &clock{now: time.Now()})

	_, err := svc.MarkDelivered(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	msg, ok := errs.Message(err)
	require.True(t, ok)
	assert.Equal(t, order.MsgOrderIDRequired, msg)
}

func TestMustNewOrderServiceRequiresStore(t *testing.T) {
	assert.Panics(t, func() { MustNewOrderService() })
}
