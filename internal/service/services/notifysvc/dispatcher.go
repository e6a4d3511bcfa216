package notifysvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corray333/backend-labs/pharmacy/internal/metrics"
	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/notification"
	"go.opentelemetry.io/otel"
)

// publisher is an interface for the outbound message channel.
type publisher interface {
	Publish(ctx context.Context, env notification.Envelope, routingKey string) (string, error)
}

// Dispatcher formats intents into multi-channel messages and publishes them
// to the destination configured at startup.
type Dispatcher struct {
	publisher   publisher
	destination string
}

// NewDispatcher creates a new Dispatcher.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewDispatcher(publisher publisher, destination string) *Dispatcher {
	return &Dispatcher{
		publisher:   publisher,
		destination: destination,
	}
}

// BuildEnvelope builds the publish request for an intent.
func BuildEnvelope(destination string, intent notification.Intent) (notification.Envelope, error) {
	details := intent.Details
	if details == nil {
		details = map[string]any{}
	}

	email, err := marshalNoEscape(notification.EmailBody{
		Subject: intent.Title,
		Body:    intent.Body,
		Details: details,
	})
	if err != nil {
		return notification.Envelope{}, fmt.Errorf("failed to marshal email body: %w", err)
	}

	return notification.Envelope{
		Destination: destination,
		Subject:     intent.Title,
		Message: notification.Message{
			Default: intent.Body,
			SMS:     intent.Title + ": " + intent.Body,
			Email:   email,
		},
	}, nil
}

// Dispatch publishes one intent. A missing destination yields an
// errs.ErrConfiguration error, an intent that cannot be encoded an errs.ErrDecode
// error and a failed or unconfirmed publish an errs.ErrDispatch error.
func (d *Dispatcher) Dispatch(ctx context.Context, intent notification.Intent) error {
	const op = "Dispatcher.Dispatch"

	ctx, span := otel.Tracer("notifysvc").Start(ctx, op)
	defer span.End()

	if d.destination == "" {
		slog.Error("Notification destination is not configured", "kind", intent.Kind)
		metrics.NotificationsTotal.WithLabelValues(string(intent.Kind), "skipped").Inc()

		return errs.New(errs.ErrConfiguration, errs.WithOp(op),
			errs.WithMsg("notification destination is not configured"))
	}

	env, err := BuildEnvelope(d.destination, intent)
	if err != nil {
		slog.Error("Failed to build notification", "kind", intent.Kind, "error", err)
		metrics.NotificationsTotal.WithLabelValues(string(intent.Kind), "invalid").Inc()

		return errs.New(errs.ErrDecode, errs.WithOp(op), errs.WithCause(err))
	}

	messageID, err := d.publisher.Publish(ctx, env, string(intent.Kind))
	if err != nil {
		slog.Error("Failed to send notification", "kind", intent.Kind, "error", err)
		metrics.NotificationsTotal.WithLabelValues(string(intent.Kind), "failed").Inc()

		return errs.New(errs.ErrDispatch, errs.WithOp(op), errs.WithCause(err))
	}

	metrics.NotificationsTotal.WithLabelValues(string(intent.Kind), "sent").Inc()
	slog.Info("Notification sent",
		"message_id", messageID,
		"kind", intent.Kind,
		"message", intent.Body,
	)

	return nil
}

// marshalNoEscape keeps non-ASCII and HTML characters readable in the email body.
func marshalNoEscape(v any) (string, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}

	return strings.TrimSuffix(sb.String(), "\n"), nil
}
