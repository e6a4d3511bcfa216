package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/corray333/backend-labs/pharmacy/internal/service/models/changeevent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	batches []changeevent.Batch
	err     error
}

func (f *fakeService) ProcessBatch(_ context.Context, batch changeevent.Batch) error {
	f.batches = append(f.batches, batch)

	return f.err
}

type fakeDelivery struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (d *fakeDelivery) Ack(bool) error {
	d.acked = true

	return nil
}

func (d *fakeDelivery) Nack(_, requeue bool) error {
	d.nacked = true
	d.requeue = requeue

	return nil
}

func TestHandle(t *testing.T) {
	t.Run("processed batch is acked", func(t *testing.T) {
		svc := &fakeService{}
		c := &Consumer{service: svc}
		d := &fakeDelivery{}

		c.handle(context.Background(), 1, []byte(`{"Records":[{"eventName":"INSERT"},{"eventName":"REMOVE"}]}`), d)

		require.Len(t, svc.batches, 1)
		assert.Len(t, svc.batches[0].Records, 2)
		assert.True(t, d.acked)
		assert.False(t, d.nacked)
	})

	t.Run("failed batch is requeued", func(t *testing.T) {
		svc := &fakeService{err: errors.New("publish failed")}
		c := &Consumer{service: svc}
		d := &fakeDelivery{}

		c.handle(context.Background(), 2, []byte(`{"Records":[]}`), d)

		assert.False(t, d.acked)
		assert.True(t, d.nacked)
		assert.True(t, d.requeue)
	})

	t.Run("malformed envelope is dropped", func(t *testing.T) {
		svc := &fakeService{}
		c := &Consumer{service: svc}
		d := &fakeDelivery{}

		c.handle(context.Background(), 3, []byte(`{"Records":"nope"}`), d)

		assert.Empty(t, svc.batches)
		assert.True(t, d.nacked)
		assert.False(t, d.requeue)
	})
}
