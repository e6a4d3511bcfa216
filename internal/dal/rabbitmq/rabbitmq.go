package rabbitmq

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

// publishConfirmTimeout bounds the wait for the broker to settle a publish.
const publishConfirmTimeout = 10 * time.Second

// Client represents a RabbitMQ client.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	confirm  bool
	mu       sync.Mutex
	confirms chan amqp.Confirmation
	returns  chan amqp.Return
}

// option is a function that configures the Client.
type option func(*Client)

// WithPublisherConfirms puts the channel into confirm mode. Publish then
// waits for the broker and reports unroutable or rejected messages.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPublisherConfirms() option {
	return func(c *Client) {
		c.confirm = true
	}
}

// Close closes the channel and connection for graceful shutdown.
func (r *Client) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return err
		}
	}
	if r.conn != nil {
		return r.conn.Close()
	}

	return nil
}

// MustNewClient creates a new RabbitMQ client.
func MustNewClient(opts ...option) *Client {
	host := viper.GetString("rabbitmq.host")
	port := viper.GetInt("rabbitmq.port")

	if host == "" {
		host = "rabbitmq"
	}
	if port == 0 {
		port = 5672
	}

	connStr := fmt.Sprintf(
		"amqp://%s:%s@%s:%d/",
		os.Getenv("RABBITMQ_DEFAULT_USER"),
		os.Getenv("RABBITMQ_DEFAULT_PASS"),
		host,
		port,
	)

	conn, err := amqp.Dial(connStr)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to RabbitMQ: %v", err))
	}

	channel, err := conn.Channel()
	if err != nil {
		err := conn.Close()
		if err != nil {
			panic(fmt.Sprintf("Failed to close a connection: %v", err))
		}
		panic(fmt.Sprintf("Failed to open a channel: %v", err))
	}

	client := &Client{
		conn:    conn,
		channel: channel,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.confirm {
		if err := channel.Confirm(false); err != nil {
			panic(fmt.Sprintf("Failed to enable publisher confirms: %v", err))
		}
		client.confirms = channel.NotifyPublish(make(chan amqp.Confirmation, 1))
		client.returns = channel.NotifyReturn(make(chan amqp.Return, 1))
	}

	slog.Info("RabbitMQ connected", "host", host, "port", port, "confirms", client.confirm)

	return client
}

type DeclareQueueConfig struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp.Table
}

// DeclareQueue declares a queue with the given configuration.
func (r *Client) DeclareQueue(cfg DeclareQueueConfig) (amqp.Queue, error) {
	return r.channel.QueueDeclare(
		cfg.Name,
		cfg.Durable,
		cfg.AutoDelete,
		cfg.Exclusive,
		cfg.NoWait,
		cfg.Args,
	)
}

type DeclareExchangeConfig struct {
	Name       string
	Kind       string
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Args       amqp.Table
}

// DeclareExchange declares an exchange with the given configuration.
func (r *Client) DeclareExchange(cfg DeclareExchangeConfig) error {
	return r.channel.ExchangeDeclare(
		cfg.Name,
		cfg.Kind,
		cfg.Durable,
		cfg.AutoDelete,
		cfg.Internal,
		cfg.NoWait,
		cfg.Args,
	)
}

type ConsumeConfig struct {
	Queue     string
	Consumer  string
	AutoAck   bool
	Exclusive bool
	NoLocal   bool
	NoWait    bool
	Prefetch  int
	Args      amqp.Table
}

// Consume starts consuming messages from the queue.
// A positive Prefetch limits the number of unacknowledged deliveries.
func (r *Client) Consume(cfg ConsumeConfig) (<-chan amqp.Delivery, error) {
	if cfg.Prefetch > 0 {
		if err := r.channel.Qos(cfg.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("failed to set prefetch: %w", err)
		}
	}

	return r.channel.Consume(
		cfg.Queue,
		cfg.Consumer,
		cfg.AutoAck,
		cfg.Exclusive,
		cfg.NoLocal,
		cfg.NoWait,
		cfg.Args,
	)
}

// Publish sends a message to the exchange with the given routing key.
// In confirm mode the message is mandatory and Publish returns only after the
// broker acked it. A returned or nacked message is an error.
func (r *Client) Publish(exchange, routingKey string, msg amqp.Publishing) error {
	if !r.confirm {
		return r.channel.Publish(exchange, routingKey, false, false, msg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.Publish(exchange, routingKey, true, false, msg); err != nil {
		return err
	}

	return awaitConfirm(r.confirms, r.returns, publishConfirmTimeout)
}

// awaitConfirm waits for the confirmation of a single publish.
// The broker sends basic.return before the ack of an unroutable message.
func awaitConfirm(confirms <-chan amqp.Confirmation, returns <-chan amqp.Return, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var returned *amqp.Return
	for {
		select {
		case ret, ok := <-returns:
			if !ok {
				returns = nil

				continue
			}
			returned = &ret
		case conf, ok := <-confirms:
			if !ok {
				return errors.New("channel closed before publish was confirmed")
			}
			if !conf.Ack {
				return fmt.Errorf("publish %d was nacked by the broker", conf.DeliveryTag)
			}
			if returned == nil {
				select {
				case ret, ok := <-returns:
					if ok {
						returned = &ret
					}
				default:
				}
			}
			if returned != nil {
				return fmt.Errorf("message to %q with key %q was returned: %s",
					returned.Exchange, returned.RoutingKey, returned.ReplyText)
			}

			return nil
		case <-timer.C:
			return errors.New("timed out waiting for publish confirmation")
		}
	}
}
