package order

import (
	"strings"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/google/uuid"
)

// Validation messages returned to clients.
const (
	MsgMedicamentosRequired = "medicamentos list is required"
	MsgClienteRequired      = "cliente name is required"
	MsgTotalPositive        = "total must be greater than zero"
	MsgOrderIDRequired      = "order id is required"
)

// Order represents a pharmacy order.
type Order struct {
	ID           string    `json:"id"`
	Medicamentos []string  `json:"medicamentos"`
	Cliente      string    `json:"cliente"`
	Total        float64   `json:"total"`
	Entregue     bool      `json:"entregue"`
	Recebido     bool      `json:"recebido"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// New validates the required fields and builds an order with a fresh id.
// Both timestamps are set to now.
func New(medicamentos []string, cliente string, total float64, now time.Time) (Order, error) {
	cliente = strings.TrimSpace(cliente)

	switch {
	case len(medicamentos) == 0:
		return Order{}, errs.New(errs.ErrValidation, errs.WithMsg(MsgMedicamentosRequired))
	case cliente == "":
		return Order{}, errs.New(errs.ErrValidation, errs.WithMsg(MsgClienteRequired))
	case total <= 0:
		return Order{}, errs.New(errs.ErrValidation, errs.WithMsg(MsgTotalPositive))
	}

	o := Order{
		ID:           uuid.NewString(),
		Medicamentos: append([]string(nil), medicamentos...),
		Cliente:      cliente,
		Total:        total,
	}
	o.Touch(now)

	return o, nil
}

// Touch refreshes the timestamps before a save. CreatedAt is only set once.
func (o *Order) Touch(now time.Time) {
	now = now.UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
}

// ToMap returns the flat projection sent to clients.
func (o Order) ToMap() map[string]any {
	medicamentos := o.Medicamentos
	if medicamentos == nil {
		medicamentos = []string{}
	}

	return map[string]any{
		"id":           o.ID,
		"medicamentos": medicamentos,
		"cliente":      o.Cliente,
		"total":        o.Total,
		"entregue":     o.Entregue,
		"recebido":     o.Recebido,
		"created_at":   formatTime(o.CreatedAt),
		"updated_at":   formatTime(o.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}
