package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/metrics"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/changeevent"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/outbox"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// outboxRepository is the part of the outbox store the relay needs.
type outboxRepository interface {
	GetPendingRecords(ctx context.Context, limit int) ([]outbox.ChangeRecord, error)
	Delete(ctx context.Context, ids ...int64) error
	UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error
}

// publisher is satisfied by *rabbitmq.Client.
type publisher interface {
	Publish(exchange, routingKey string, msg amqp.Publishing) error
}

// Config tunes the relay loop.
type Config struct {
	Queue         string
	PollInterval  time.Duration
	BatchSize     int
	RetryInterval time.Duration
}

// Worker relays change records from the outbox table onto the change stream queue.
// Every poll packs the pending records into one batch.
type Worker struct {
	outboxRepo outboxRepository
	publisher  publisher
	cfg        Config
	now        func() time.Time
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewWorker creates a new outbox worker.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewWorker(outboxRepo outboxRepository, publisher publisher, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}

	return &Worker{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start relays pending records until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started",
		"queue", w.cfg.Queue,
		"poll_interval", w.cfg.PollInterval,
		"batch_size", w.cfg.BatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.relay(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// relay publishes one batch of pending records.
// The records are deleted on success and rescheduled with exponential backoff on failure.
func (w *Worker) relay(ctx context.Context) {
	records, err := w.outboxRepo.GetPendingRecords(ctx, w.cfg.BatchSize)
	if err != nil {
		slog.Error("Failed to get pending records from outbox", "error", err)

		return
	}

	records = dueRecords(records, w.now())
	if len(records) == 0 {
		return
	}

	slog.Info("Relaying outbox records", "count", len(records))

	batch := changeevent.Batch{Records: make([]json.RawMessage, len(records))}
	ids := make([]int64, len(records))
	for i, rec := range records {
		batch.Records[i] = json.RawMessage(rec.Payload)
		ids[i] = rec.ID
	}

	body, err := json.Marshal(batch)
	if err == nil {
		err = w.publisher.Publish("", w.cfg.Queue, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    w.now().UTC(),
			Body:         body,
		})
	}

	if err != nil {
		w.reschedule(ctx, records, err)

		return
	}

	if err := w.outboxRepo.Delete(ctx, ids...); err != nil {
		slog.Error("Failed to delete records from outbox after successful publish",
			"count", len(ids),
			"error", err,
		)

		return
	}

	metrics.OutboxRelayedTotal.Add(float64(len(records)))
	slog.Info("Records successfully published and removed from outbox", "count", len(records))
}

// dueRecords returns the leading records whose retry time has come.
// The batch stops at the first record that is still backing off, so a later
// change is never relayed ahead of an earlier one.
func dueRecords(records []outbox.ChangeRecord, now time.Time) []outbox.ChangeRecord {
	for i, rec := range records {
		if rec.NextRetryAt.After(now) {
			return records[:i]
		}
	}

	return records
}

func (w *Worker) reschedule(ctx context.Context, records []outbox.ChangeRecord, cause error) {
	for _, rec := range records {
		newRetryCount := rec.RetryCount + 1
		backoff := time.Duration(math.Pow(2, float64(newRetryCount))) * w.cfg.RetryInterval
		nextRetryAt := w.now().Add(backoff)

		slog.Warn("Failed to publish record from outbox, will retry",
			"outbox_id", rec.ID,
			"order_id", rec.OrderID,
			"retry_count", newRetryCount,
			"next_retry", nextRetryAt,
			"error", cause,
		)

		if err := w.outboxRepo.UpdateRetry(ctx, rec.ID, newRetryCount, cause.Error(), nextRetryAt); err != nil {
			slog.Error("Failed to update retry information", "outbox_id", rec.ID, "error", err)
		}
	}
}
