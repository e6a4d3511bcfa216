package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/pharmacy/internal/dal/postgres"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/outbox"
)

// OutboxRepository implements the change record outbox for PostgreSQL.
type OutboxRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewOutboxRepository creates a new outbox repository bound to conn.
func NewOutboxRepository(conn postgres.Conn) *OutboxRepository {
	return &OutboxRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert adds a new change record to the outbox.
func (r *OutboxRepository) Insert(ctx context.Context, rec outbox.ChangeRecord) error {
	query, args, err := r.sb.Insert("outbox").
		Columns(
			"order_id",
			"event_name",
			"payload",
			"retry_count",
			"max_retries",
			"last_error",
			"created_at",
			"updated_at",
			"next_retry_at",
		).
		Values(
			rec.OrderID,
			rec.EventName,
			rec.Payload,
			rec.RetryCount,
			rec.MaxRetries,
			rec.LastError,
			rec.CreatedAt,
			rec.UpdatedAt,
			rec.NextRetryAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err = r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert outbox record: %w", err)
	}

	return nil
}

// GetPendingRecords retrieves unrelayed records in insertion order, due or not.
// Records that used up their retries are left out.
func (r *OutboxRepository) GetPendingRecords(
	ctx context.Context,
	limit int,
) ([]outbox.ChangeRecord, error) {
	query, args, err := r.sb.Select(
		"id",
		"order_id",
		"event_name",
		"payload",
		"retry_count",
		"max_retries",
		"last_error",
		"created_at",
		"updated_at",
		"next_retry_at",
	).
		From("outbox").
		Where(sq.Expr("retry_count < max_retries")).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox records: %w", err)
	}
	defer rows.Close()

	var records []outbox.ChangeRecord
	for rows.Next() {
		var rec outbox.ChangeRecord
		err := rows.Scan(
			&rec.ID,
			&rec.OrderID,
			&rec.EventName,
			&rec.Payload,
			&rec.RetryCount,
			&rec.MaxRetries,
			&rec.LastError,
			&rec.CreatedAt,
			&rec.UpdatedAt,
			&rec.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox records: %w", err)
	}

	return records, nil
}

// Delete removes records from the outbox after they were relayed.
func (r *OutboxRepository) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := r.sb.Delete("outbox").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err = r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete outbox records: %w", err)
	}

	return nil
}

// UpdateRetry updates retry count and error information.
func (r *OutboxRepository) UpdateRetry(
	ctx context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	query, args, err := r.sb.Update("outbox").
		Set("retry_count", retryCount).
		Set("last_error", lastError).
		Set("next_retry_at", nextRetryAt).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err = r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox record: %w", err)
	}

	return nil
}
