package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/dal/postgres"
	"github.com/corray333/backend-labs/pharmacy/internal/dal/rabbitmq"
	notificationrepo "github.com/corray333/backend-labs/pharmacy/internal/dal/repositories/notification/rabbitmq"
	outboxrepo "github.com/corray333/backend-labs/pharmacy/internal/dal/repositories/outbox/postgres"
	"github.com/corray333/backend-labs/pharmacy/internal/metrics"
	"github.com/corray333/backend-labs/pharmacy/internal/otel"
	"github.com/corray333/backend-labs/pharmacy/internal/service/services/notifysvc"
	"github.com/corray333/backend-labs/pharmacy/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/pharmacy/internal/transport/consumer"
	httptransport "github.com/corray333/backend-labs/pharmacy/internal/transport/http"
	outboxworker "github.com/corray333/backend-labs/pharmacy/internal/worker/outbox"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const defaultOrderTable = "orders"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// orderTable returns the configured order table or the default one.
// The name is interpolated into migrations and queries, so it must be a plain identifier.
func orderTable(configured string) (string, error) {
	if configured == "" {
		return defaultOrderTable, nil
	}
	if !tableName.MatchString(configured) {
		return "", fmt.Errorf("invalid order table name %q", configured)
	}

	return configured, nil
}

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	notifySvc      *notifysvc.NotifyService
	transport      *httptransport.HTTPTransport
	consumerTransp *consumer.Consumer
	outboxWorker   *outboxworker.Worker
	publishClient  *rabbitmq.Client
	consumeClient  *rabbitmq.Client
	postgresClient *postgres.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	metrics.Register()

	table, err := orderTable(viper.GetString("store.table"))
	if err != nil {
		panic(err)
	}
	// Migrations create the order table from ORDER_TABLE.
	if err := os.Setenv("ORDER_TABLE", table); err != nil {
		panic(fmt.Sprintf("Failed to export order table: %v", err))
	}

	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	publishClient := rabbitmq.MustNewClient(rabbitmq.WithPublisherConfirms())
	consumeClient := rabbitmq.MustNewClient()

	streamQueue := viper.GetString("stream.queue")
	destination := viper.GetString("notification.destination")

	if destination != "" {
		err := publishClient.DeclareExchange(rabbitmq.DeclareExchangeConfig{
			Name:    destination,
			Kind:    "topic",
			Durable: true,
		})
		if err != nil {
			panic(err)
		}
	} else {
		slog.Warn("Notification destination is not configured, notifications will be skipped")
	}

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient, table),
		ordersvc.WithOutboxMaxRetries(viper.GetInt("outbox.max_retries")),
	)

	dispatcher := notifysvc.NewDispatcher(
		notificationrepo.NewNotificationRabbitMQRepository(publishClient),
		destination,
	)
	notifySvc := notifysvc.MustNewNotifyService(
		notifysvc.WithDispatcher(dispatcher),
	)

	transport := httptransport.NewHTTPTransport(orderSvc)
	transport.RegisterRoutes()

	consumerTransp := consumer.NewConsumer(consumeClient, notifySvc, consumer.Config{
		Queue:       streamQueue,
		ConsumerTag: viper.GetString("stream.consumer_tag"),
	})

	outboxWorker := outboxworker.NewWorker(
		outboxrepo.NewOutboxRepository(postgresClient.Pool()),
		publishClient,
		outboxworker.Config{
			Queue:         streamQueue,
			PollInterval:  time.Duration(viper.GetInt("outbox.poll_interval_seconds")) * time.Second,
			BatchSize:     viper.GetInt("outbox.batch_size"),
			RetryInterval: time.Duration(viper.GetInt("outbox.retry_interval_seconds")) * time.Second,
		},
	)

	return &App{
		orderSvc:       orderSvc,
		notifySvc:      notifySvc,
		transport:      transport,
		consumerTransp: consumerTransp,
		outboxWorker:   outboxWorker,
		publishClient:  publishClient,
		consumeClient:  consumeClient,
		postgresClient: postgresClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		slog.Info("Starting consumer")

		return a.consumerTransp.Run(gctx)
	})

	g.Go(func() error {
		slog.Info("Starting outbox worker")
		a.outboxWorker.Start(gctx)

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received")
		a.gracefulShutdown()

		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Application stopped with error", "error", err)
	}

	slog.Info("Application shutdown complete")
}

// gracefulShutdown stops the HTTP server, the worker and the consumer first,
// then closes RabbitMQ, PostgreSQL and the trace provider.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.outboxWorker.Stop()
	slog.Info("Outbox worker stopped gracefully")

	if err := a.consumerTransp.Shutdown(); err != nil {
		slog.Error("Consumer shutdown error", "error", err)
	}

	if err := a.consumeClient.Close(); err != nil {
		slog.Error("RabbitMQ consumer connection close error", "error", err)
	}
	if err := a.publishClient.Close(); err != nil {
		slog.Error("RabbitMQ publisher connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connections closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(ctx); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}
}
