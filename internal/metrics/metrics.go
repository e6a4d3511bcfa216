package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the order and notification pipeline
var (
	OrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pharmacy_orders_created_total",
			Help: "Total number of orders created",
		},
	)

	OrderStatusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmacy_order_status_updates_total",
			Help: "Total number of order status updates by status",
		},
		[]string{"status"},
	)

	StreamRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmacy_stream_records_total",
			Help: "Total number of change stream records processed by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmacy_notifications_total",
			Help: "Total number of owner notifications by kind and result",
		},
		[]string{"kind", "result"},
	)

	OutboxRelayedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pharmacy_outbox_relayed_total",
			Help: "Total number of change records relayed from the outbox",
		},
	)

	BatchProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pharmacy_stream_batch_duration_seconds",
			Help:    "Duration of change stream batch processing",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(OrdersCreatedTotal)
	prometheus.MustRegister(OrderStatusUpdatesTotal)
	prometheus.MustRegister(StreamRecordsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(OutboxRelayedTotal)
	prometheus.MustRegister(BatchProcessingDuration)
}
