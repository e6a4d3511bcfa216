package rabbitmq

import (
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitConfirm(t *testing.T) {
	tests := []struct {
		name    string
		confirm *amqp.Confirmation
		ret     *amqp.Return
		closed  bool
		wantErr string
	}{
		{
			name:    "ack",
			confirm: &amqp.Confirmation{DeliveryTag: 1, Ack: true},
		},
		{
			name:    "nack",
			confirm: &amqp.Confirmation{DeliveryTag: 2, Ack: false},
			wantErr: "nacked",
		},
		{
			name:    "returned before ack",
			confirm: &amqp.Confirmation{DeliveryTag: 3, Ack: true},
			ret:     &amqp.Return{Exchange: "owner-topic", RoutingKey: "NEW_ORDER", ReplyText: "NO_ROUTE"},
			wantErr: "NO_ROUTE",
		},
		{
			name:    "channel closed",
			closed:  true,
			wantErr: "closed",
		},
		{
			name:    "no confirmation",
			wantErr: "timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirms := make(chan amqp.Confirmation, 1)
			returns := make(chan amqp.Return, 1)
			if tt.ret != nil {
				returns <- *tt.ret
			}
			if tt.confirm != nil {
				confirms <- *tt.confirm
			}
			if tt.closed {
				close(confirms)
			}

			err := awaitConfirm(confirms, returns, 50*time.Millisecond)
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAwaitConfirmIgnoresClosedReturns(t *testing.T) {
	confirms := make(chan amqp.Confirmation, 1)
	returns := make(chan amqp.Return)
	close(returns)
	confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: true}

	assert.NoError(t, awaitConfirm(confirms, returns, 50*time.Millisecond))
}
