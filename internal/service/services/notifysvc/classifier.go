package notifysvc

import (
	"encoding/json"
	"fmt"

	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/changeevent"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/notification"
)

// fallbackCliente names the customer when the image carries no cliente.
const fallbackCliente = "customer"

// ClassifyRecord parses one raw stream record and decides whether it warrants a
// notification. Records other than inserts and modifications are ignored
// before their images are decoded.
func ClassifyRecord(raw json.RawMessage) (*notification.Intent, changeevent.Kind, error) {
	var head struct {
		EventName string `json:"eventName"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, changeevent.KindOther, errs.New(errs.ErrDecode, errs.WithOp("ClassifyRecord"),
			errs.WithCause(fmt.Errorf("failed to parse record: %w", err)))
	}

	kind := changeevent.ParseKind(head.EventName)
	if kind != changeevent.KindInserted && kind != changeevent.KindModified {
		return nil, kind, nil
	}

	var rec changeevent.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, kind, errs.New(errs.ErrDecode, errs.WithOp("ClassifyRecord"),
			errs.WithCause(fmt.Errorf("failed to parse record: %w", err)))
	}

	ev, err := rec.Event()
	if err != nil {
		return nil, kind, errs.New(errs.ErrDecode, errs.WithOp("ClassifyRecord"), errs.WithCause(err))
	}

	intent, err := Classify(ev)
	if err != nil {
		return nil, kind, err
	}

	return intent, kind, nil
}

// Classify applies the notification policy to a decoded change event.
// At most one intent is returned; delivery takes priority over receipt.
func Classify(ev changeevent.ChangeEvent) (*notification.Intent, error) {
	switch ev.Kind {
	case changeevent.KindInserted:
		if ev.After == nil {
			return nil, errs.New(errs.ErrDecode, errs.WithOp("Classify"),
				errs.WithMsg("insert record without new image"))
		}
		cliente := clienteOf(ev)

		return &notification.Intent{
			Kind:  notification.KindNewOrder,
			Title: "New order received",
			Body:  fmt.Sprintf("New order from %s", cliente),
			Details: map[string]any{
				"cliente":      cliente,
				"medicamentos": nonNil(ev.After.Medicamentos),
				"total":        ev.After.Total,
			},
		}, nil

	case changeevent.KindModified:
		if ev.After == nil {
			return nil, errs.New(errs.ErrDecode, errs.WithOp("Classify"),
				errs.WithMsg("modify record without new image"))
		}
		// Without the old image no transition can be detected.
		if ev.Before == nil {
			return nil, nil
		}
		cliente := clienteOf(ev)

		if !ev.Before.Entregue && ev.After.Entregue {
			return &notification.Intent{
				Kind:  notification.KindDelivered,
				Title: "Order delivered",
				Body:  fmt.Sprintf("Order for %s has been delivered", cliente),
				Details: map[string]any{
					"cliente": cliente,
					"id":      ev.After.ID,
				},
			}, nil
		}

		if !ev.Before.Recebido && ev.After.Recebido {
			return &notification.Intent{
				Kind:  notification.KindReceived,
				Title: "Order confirmed",
				Body:  fmt.Sprintf("%s confirmed receipt of the order", cliente),
				Details: map[string]any{
					"cliente": cliente,
					"id":      ev.After.ID,
				},
			}, nil
		}

		return nil, nil

	default:
		return nil, nil
	}
}

func clienteOf(ev changeevent.ChangeEvent) string {
	if ev.After != nil && ev.After.Cliente != "" {
		return ev.After.Cliente
	}

	return fallbackCliente
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
