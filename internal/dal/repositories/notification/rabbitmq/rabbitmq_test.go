package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/corray333/backend-labs/pharmacy/internal/service/models/notification"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	exchange   string
	routingKey string
	msg        amqp.Publishing
	err        error
}

func (f *fakeClient) Publish(exchange, routingKey string, msg amqp.Publishing) error {
	f.exchange, f.routingKey, f.msg = exchange, routingKey, msg

	return f.err
}

func envelope() notification.Envelope {
	return notification.Envelope{
		Destination: "owner-topic",
		Subject:     "New order received",
	}
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	repo := NewNotificationRabbitMQRepository(client)

	id, err := repo.Publish(context.Background(), envelope(), "NEW_ORDER")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "owner-topic", client.exchange)
	assert.Equal(t, "NEW_ORDER", client.routingKey)
	assert.Equal(t, id, client.msg.MessageId)
	assert.Equal(t, "New order received", client.msg.Headers["subject"])

	var got notification.Envelope
	require.NoError(t, json.Unmarshal(client.msg.Body, &got))
	assert.Equal(t, "owner-topic", got.Destination)
}

func TestPublishReportsRejectedMessage(t *testing.T) {
	brokerErr := errors.New("publish 1 was nacked by the broker")
	repo := NewNotificationRabbitMQRepository(&fakeClient{err: brokerErr})

	id, err := repo.Publish(context.Background(), envelope(), "NEW_ORDER")
	require.Error(t, err)
	assert.ErrorIs(t, err, brokerErr)
	assert.Empty(t, id)
}
