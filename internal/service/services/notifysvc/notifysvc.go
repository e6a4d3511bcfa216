package notifysvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/metrics"
	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/changeevent"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/notification"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// dispatcher is an interface for the notification dispatcher.
type dispatcher interface {
	Dispatch(ctx context.Context, intent notification.Intent) error
}

// NotifyService turns change stream batches into owner notifications.
type NotifyService struct {
	dispatcher dispatcher
}

// option is a function that configures the NotifyService.
type option func(*NotifyService)

// MustNewNotifyService creates a new NotifyService.
func MustNewNotifyService(opts ...option) *NotifyService {
	s := &NotifyService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.dispatcher == nil {
		panic("notifysvc: dispatcher is required")
	}

	return s
}

// WithDispatcher sets the dispatcher for the NotifyService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithDispatcher(d dispatcher) option {
	return func(s *NotifyService) {
		s.dispatcher = d
	}
}

// ProcessBatch classifies and dispatches the records of one batch in order.
// Records that cannot be decoded or encoded are logged and skipped, as are
// intents that cannot be sent because no destination is configured. Any other
// dispatch failure stops the batch and is returned so the batch is redelivered.
func (s *NotifyService) ProcessBatch(ctx context.Context, batch changeevent.Batch) error {
	ctx, span := otel.Tracer("notifysvc").Start(ctx, "NotifyService.ProcessBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("records", len(batch.Records)))

	start := time.Now()
	defer func() {
		metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	slog.Info("Processing change stream batch", "records", len(batch.Records))

	for i, raw := range batch.Records {
		intent, kind, err := ClassifyRecord(raw)
		if err != nil {
			slog.Error("Failed to process record", "index", i, "event", kind.String(), "error", err)
			metrics.StreamRecordsTotal.WithLabelValues(kind.String(), "invalid").Inc()

			continue
		}

		if intent == nil {
			slog.Info("Ignoring record", "index", i, "event", kind.String())
			metrics.StreamRecordsTotal.WithLabelValues(kind.String(), "ignored").Inc()

			continue
		}

		if err := s.dispatcher.Dispatch(ctx, *intent); err != nil {
			if errors.Is(err, errs.ErrConfiguration) {
				slog.Error("Skipping notification", "index", i, "kind", intent.Kind, "error", err)
				metrics.StreamRecordsTotal.WithLabelValues(kind.String(), "skipped").Inc()

				continue
			}
			if errors.Is(err, errs.ErrDecode) {
				slog.Error("Failed to process record", "index", i, "event", kind.String(), "error", err)
				metrics.StreamRecordsTotal.WithLabelValues(kind.String(), "invalid").Inc()

				continue
			}

			metrics.StreamRecordsTotal.WithLabelValues(kind.String(), "failed").Inc()
			span.RecordError(err)

			return fmt.Errorf("failed to dispatch notification for record %d: %w", i, err)
		}

		metrics.StreamRecordsTotal.WithLabelValues(kind.String(), "notified").Inc()
	}

	return nil
}
