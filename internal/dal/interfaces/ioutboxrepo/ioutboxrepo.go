package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/pharmacy/internal/service/models/outbox"
)

// IOutboxRepository defines the interface for change record outbox operations.
type IOutboxRepository interface {
	// Insert adds a new change record to the outbox
	Insert(ctx context.Context, rec outbox.ChangeRecord) error

	// GetPendingRecords retrieves records that still have to be relayed, oldest first
	GetPendingRecords(ctx context.Context, limit int) ([]outbox.ChangeRecord, error)

	// Delete removes relayed records from the outbox
	Delete(ctx context.Context, ids ...int64) error

	// UpdateRetry updates retry count and error information
	UpdateRetry(
		ctx context.Context,
		id int64,
		retryCount int,
		lastError string,
		nextRetryAt time.Time,
	) error
}
