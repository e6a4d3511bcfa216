package markstatus

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/order"
	"github.com/corray333/backend-labs/pharmacy/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
)

const (
	MsgDelivered = "Order marked as delivered"
	MsgReceived  = "Order marked as received"
	MsgInternal  = "internal error while updating order status"
)

// service is an interface for the service layer.
type service interface {
	MarkDelivered(ctx context.Context, id string) (order.Order, error)
	MarkReceived(ctx context.Context, id string) (order.Order, error)
}

// MarkDelivered handles the delivery confirmation of the pharmacy.
func MarkDelivered(r *http.Request, service service) (response.Response, error) {
	return markStatus(r, "delivered", MsgDelivered, service.MarkDelivered)
}

// MarkReceived handles the receipt confirmation of the customer.
func MarkReceived(r *http.Request, service service) (response.Response, error) {
	return markStatus(r, "received", MsgReceived, service.MarkReceived)
}

func markStatus(
	r *http.Request,
	status string,
	msg string,
	mark func(ctx context.Context, id string) (order.Order, error),
) (response.Response, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	slog.Info("Order status request received", "method", r.Method, "path", r.URL.Path, "status", status, "order_id", id)

	if id == "" {
		return response.Response{}, errs.New(errs.ErrValidation, errs.WithMsg(order.MsgOrderIDRequired))
	}

	updated, err := mark(r.Context(), id)
	if err != nil {
		return response.Response{}, err
	}

	return response.Success(map[string]any{
		"mensagem": msg,
		"pedido":   updated.ToMap(),
	})
}
