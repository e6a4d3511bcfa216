package outbox

import (
	"time"
)

// ChangeRecord is a stream record waiting in the store outbox to be relayed
// onto the change stream. Payload is one JSON-encoded changeevent.Record.
type ChangeRecord struct {
	ID          int64
	OrderID     string
	EventName   string
	Payload     []byte
	RetryCount  int
	MaxRetries  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	NextRetryAt time.Time
}
