package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/pharmacy/internal/dal/postgres"
	"github.com/corray333/backend-labs/pharmacy/internal/service/errs"
	"github.com/corray333/backend-labs/pharmacy/internal/service/models/order"
	"github.com/jackc/pgx/v5"
)

// MsgOrderNotFound is returned to clients when the id has no matching row.
const MsgOrderNotFound = "order not found"

var orderColumns = []string{
	"id",
	"medicamentos",
	"cliente",
	"total",
	"entregue",
	"recebido",
	"created_at",
	"updated_at",
}

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id           string    `db:"id"`
	Medicamentos []string  `db:"medicamentos"`
	Cliente      string    `db:"cliente"`
	Total        float64   `db:"total"`
	Entregue     bool      `db:"entregue"`
	Recebido     bool      `db:"recebido"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model.
func (o *OrderDal) ToModel() order.Order {
	return order.Order{
		ID:           o.Id,
		Medicamentos: o.Medicamentos,
		Cliente:      o.Cliente,
		Total:        o.Total,
		Entregue:     o.Entregue,
		Recebido:     o.Recebido,
		CreatedAt:    o.CreatedAt.UTC(),
		UpdatedAt:    o.UpdatedAt.UTC(),
	}
}

// OrderDalFromModel converts service layer Order model to OrderDal.
func OrderDalFromModel(o order.Order) OrderDal {
	medicamentos := o.Medicamentos
	if medicamentos == nil {
		medicamentos = []string{}
	}

	return OrderDal{
		Id:           o.ID,
		Medicamentos: medicamentos,
		Cliente:      o.Cliente,
		Total:        o.Total,
		Entregue:     o.Entregue,
		Recebido:     o.Recebido,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

// PostgresOrderRepository stores orders in the configured table.
type PostgresOrderRepository struct {
	conn  postgres.Conn
	table string
	sb    sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new order repository bound to conn.
func NewPostgresOrderRepository(conn postgres.Conn, table string) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn:  conn,
		table: table,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Get retrieves a single order by id.
func (r *PostgresOrderRepository) Get(ctx context.Context, id string) (order.Order, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate retrieves a single order by id and locks its row.
func (r *PostgresOrderRepository) GetForUpdate(ctx context.Context, id string) (order.Order, error) {
	return r.get(ctx, id, true)
}

func (r *PostgresOrderRepository) get(ctx context.Context, id string, lock bool) (order.Order, error) {
	const op = "PostgresOrderRepository.Get"

	query := r.sb.Select(orderColumns...).
		From(r.table).
		Where(sq.Eq{"id": id})
	if lock {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return order.Order{}, errs.New(errs.ErrStore, errs.WithOp(op), errs.WithCause(
			fmt.Errorf("failed to build select query: %w", err),
		))
	}

	var dal OrderDal
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&dal.Id,
		&dal.Medicamentos,
		&dal.Cliente,
		&dal.Total,
		&dal.Entregue,
		&dal.Recebido,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Order{}, errs.New(errs.ErrNotFound, errs.WithOp(op), errs.WithMsg(MsgOrderNotFound))
	}
	if err != nil {
		return order.Order{}, errs.New(errs.ErrStore, errs.WithOp(op), errs.WithCause(
			fmt.Errorf("failed to scan order: %w", err),
		))
	}

	return dal.ToModel(), nil
}

// Put inserts a new order.
func (r *PostgresOrderRepository) Put(ctx context.Context, o order.Order) error {
	const op = "PostgresOrderRepository.Put"

	dal := OrderDalFromModel(o)
	sql, args, err := r.sb.Insert(r.table).
		Columns(orderColumns...).
		Values(
			dal.Id,
			dal.Medicamentos,
			dal.Cliente,
			dal.Total,
			dal.Entregue,
			dal.Recebido,
			dal.CreatedAt,
			dal.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return errs.New(errs.ErrStore, errs.WithOp(op), errs.WithCause(
			fmt.Errorf("failed to build insert query: %w", err),
		))
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return errs.New(errs.ErrStore, errs.WithOp(op), errs.WithCause(
			fmt.Errorf("failed to insert order: %w", err),
		))
	}

	return nil
}

// Update overwrites every mutable column of the order. created_at is never touched.
func (r *PostgresOrderRepository) Update(ctx context.Context, o order.Order) error {
	const op = "PostgresOrderRepository.Update"

	dal := OrderDalFromModel(o)
	sql, args, err := r.sb.Update(r.table).
		SetMap(map[string]any{
			"medicamentos": dal.Medicamentos,
			"cliente":      dal.Cliente,
			"total":        dal.Total,
			"entregue":     dal.Entregue,
			"recebido":     dal.Recebido,
			"updated_at":   dal.UpdatedAt,
		}).
		Where(sq.Eq{"id": dal.Id}).
		ToSql()
	if err != nil {
		return errs.New(errs.ErrStore, errs.WithOp(op), errs.WithCause(
			fmt.Errorf("failed to build update query: %w", err),
		))
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return errs.New(errs.ErrStore, errs.WithOp(op), errs.WithCause(
			fmt.Errorf("failed to update order: %w", err),
		))
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.ErrNotFound, errs.WithOp(op), errs.WithMsg(MsgOrderNotFound))
	}

	return nil
}
