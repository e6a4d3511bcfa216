package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/service/models/notification"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
)

// amqpPublisher is satisfied by *rabbitmq.Client.
type amqpPublisher interface {
	Publish(exchange, routingKey string, msg amqp.Publishing) error
}

// NotificationRabbitMQRepository publishes owner notifications to a topic exchange.
// The envelope destination is the exchange name.
type NotificationRabbitMQRepository struct {
	client amqpPublisher
}

// NewNotificationRabbitMQRepository creates a new notification publisher.
func NewNotificationRabbitMQRepository(client amqpPublisher) *NotificationRabbitMQRepository {
	return &NotificationRabbitMQRepository{
		client: client,
	}
}

// Publish sends the envelope and returns the message id assigned to it.
func (r *NotificationRabbitMQRepository) Publish(
	ctx context.Context,
	env notification.Envelope,
	routingKey string,
) (string, error) {
	_, span := otel.Tracer("notification-publisher").Start(ctx, "NotificationRepository.Publish")
	defer span.End()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return "", fmt.Errorf("failed to marshal notification: %w", err)
	}

	messageID := uuid.NewString()
	err := r.client.Publish(env.Destination, routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Headers:      amqp.Table{"subject": env.Subject},
		Body:         bytes.TrimRight(buf.Bytes(), "\n"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish notification: %w", err)
	}

	return messageID, nil
}
