package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/changeevent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// service represents the service layer interface.
type service interface {
	ProcessBatch(ctx context.Context, batch changeevent.Batch) error
}

// delivery is the part of amqp.Delivery the consumer settles.
type delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Config describes the change stream queue.
type Config struct {
	Queue       string
	ConsumerTag string
}

// Consumer reads change stream batches from RabbitMQ one at a time.
type Consumer struct {
	client  *rabbitmq.Client
	service service
	cfg     Config
	stop    chan struct{}
	done    chan struct{}
}

// NewConsumer creates a new Consumer and declares its queue.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewConsumer(client *rabbitmq.Client, service service, cfg Config) *Consumer {
	if cfg.Queue == "" {
		panic("stream.queue is not set in config")
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "pharmacy-notify"
	}

	_, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:    cfg.Queue,
		Durable: true,
	})
	if err != nil {
		panic(err)
	}

	return &Consumer{
		client:  client,
		service: service,
		cfg:     cfg,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run consumes batches until ctx is cancelled, Shutdown is called or the channel closes.
// Batches are handled strictly in delivery order.
func (c *Consumer) Run(ctx context.Context) error {
	defer close(c.done)

	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    c.cfg.Queue,
		Consumer: c.cfg.ConsumerTag,
		Prefetch: 1,
	})
	if err != nil {
		return err
	}

	slog.Info("Consumer started", "queue", c.cfg.Queue, "consumer_tag", c.cfg.ConsumerTag)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Consumer context cancelled")

			return nil
		case <-c.stop:
			slog.Info("Stopping consumer")

			return nil
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("Message channel closed")

				return nil
			}

			c.handle(ctx, msg.DeliveryTag, msg.Body, msg)
		}
	}
}

// handle processes one batch and settles its delivery.
// A batch that cannot be parsed is dropped, a failed batch is requeued.
func (c *Consumer) handle(ctx context.Context, tag uint64, body []byte, d delivery) {
	ctx, span := otel.Tracer("consumer").Start(ctx, "Consumer.handle")
	defer span.End()

	slog.Info("Received batch", "delivery_tag", tag)

	var batch changeevent.Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		slog.Error("Failed to unmarshal batch", "delivery_tag", tag, "error", err)
		if err := d.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return
	}
	span.SetAttributes(attribute.Int("records", len(batch.Records)))

	if err := c.service.ProcessBatch(ctx, batch); err != nil {
		slog.Error("Failed to process batch", "delivery_tag", tag, "error", err)
		span.RecordError(err)
		if err := d.Nack(false, true); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return
	}

	if err := d.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err)

		return
	}

	slog.Info("Batch processed successfully", "delivery_tag", tag, "records", len(batch.Records))
}

// Shutdown stops the consumer and waits for the batch in flight.
func (c *Consumer) Shutdown() error {
	slog.Info("Shutting down consumer")
	close(c.stop)

	select {
	case <-c.done:
		slog.Info("Consumer stopped successfully")
	case <-time.After(10 * time.Second):
		slog.Warn("Consumer shutdown timeout")
	}

	return nil
}
