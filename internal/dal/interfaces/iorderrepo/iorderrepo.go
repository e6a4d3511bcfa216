package iorderrepo

import (
	"context"

	"github.com/corray333/backend-labs/pharmacy/internal/service/models/order"
)

// IOrderRepository is an interface for the order store.
type IOrderRepository interface {
	// Get returns the order with the given id or an errs.ErrNotFound error
	Get(ctx context.Context, id string) (order.Order, error)

	// GetForUpdate is Get with a row lock held until the transaction ends
	GetForUpdate(ctx context.Context, id string) (order.Order, error)

	// Put inserts a new order
	Put(ctx context.Context, o order.Order) error

	// Update overwrites the mutable fields of an existing order
	Update(ctx context.Context, o order.Order) error
}
