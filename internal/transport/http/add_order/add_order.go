package addorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/order"
	"github.com/corray333/backend-labs/pharmacy/internal/transport/http/response"
	"github.com/go-playground/validator/v10"
)

const (
	// MsgCreated is returned with the stored order.
	MsgCreated = "Order created successfully"
	// MsgInternal is returned for failures that are not the client's fault.
	MsgInternal = "internal error while creating order"
	// MsgInvalidBody is returned when the body is not a JSON object.
	MsgInvalidBody = "invalid request body"
)

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, medicamentos []string, cliente string, total float64) (order.Order, error)
}

var validate = validator.New()

// wireRequest keeps every field raw so a type mismatch is reported per field.
type wireRequest struct {
	Medicamentos json.RawMessage `json:"medicamentos"`
	Cliente      json.RawMessage `json:"cliente"`
	Total        json.RawMessage `json:"total"`
}

// addOrderRequest represents a create order request.
type addOrderRequest struct {
	Medicamentos []string `validate:"required,min=1"`
	Cliente      string   `validate:"required"`
	Total        float64  `validate:"gt=0"`
}

// fieldMessages maps request fields to the message returned when they are invalid.
var fieldMessages = map[string]string{
	"Medicamentos": order.MsgMedicamentosRequired,
	"Cliente":      order.MsgClienteRequired,
	"Total":        order.MsgTotalPositive,
}

// parseRequest decodes and validates the body of a create order request.
func parseRequest(body []byte) (addOrderRequest, error) {
	var wire wireRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return addOrderRequest{}, errs.New(errs.ErrValidation, errs.WithMsg(MsgInvalidBody), errs.WithCause(err))
	}

	var req addOrderRequest
	if !decodeField(wire.Medicamentos, &req.Medicamentos) {
		return addOrderRequest{}, errs.New(errs.ErrValidation, errs.WithMsg(order.MsgMedicamentosRequired))
	}
	if !decodeField(wire.Cliente, &req.Cliente) {
		return addOrderRequest{}, errs.New(errs.ErrValidation, errs.WithMsg(order.MsgClienteRequired))
	}
	if !decodeField(wire.Total, &req.Total) {
		return addOrderRequest{}, errs.New(errs.ErrValidation, errs.WithMsg(order.MsgTotalPositive))
	}
	req.Cliente = strings.TrimSpace(req.Cliente)

	if err := req.Validate(); err != nil {
		return addOrderRequest{}, err
	}

	return req, nil
}

// decodeField decodes raw into dst. An absent or null field leaves dst at its zero value.
func decodeField(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return true
	}

	return json.Unmarshal(raw, dst) == nil
}

// Validate validates the create order request.
func (r *addOrderRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := fieldMessages[verrs[0].Field()]; ok {
			return errs.New(errs.ErrValidation, errs.WithMsg(msg), errs.WithCause(err))
		}
	}

	return errs.New(errs.ErrValidation, errs.WithMsg(MsgInvalidBody), errs.WithCause(err))
}

// AddOrder handles the create order request.
func AddOrder(r *http.Request, service service) (response.Response, error) {
	slog.Info("Add order request received", "method", r.Method, "path", r.URL.Path)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return response.Response{}, errs.New(errs.ErrValidation, errs.WithMsg(MsgInvalidBody), errs.WithCause(err))
	}

	req, err := parseRequest(buf.Bytes())
	if err != nil {
		return response.Response{}, err
	}

	created, err := service.CreateOrder(r.Context(), req.Medicamentos, req.Cliente, req.Total)
	if err != nil {
		return response.Response{}, err
	}

	slog.Info("Order created successfully", "order_id", created.ID, "cliente", created.Cliente)

	return response.Success(map[string]any{
		"mensagem": MsgCreated,
		"pedido":   created.ToMap(),
	})
}
