package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/beautivra/internal/domain/order"
	"github.com/xenking/beautivra/internal/domain/payment"
)

const orderColumns = `id, order_number, items, shipping_address, subtotal, shipping_cost,
	tax, total, status, payment_status, payment_session_id, created_at`

const (
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12)`

	getOrderByIDSQL     = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	linkSessionSQL = `UPDATE orders SET payment_session_id = $2
	WHERE id = $1 AND (payment_session_id IS NULL OR payment_session_id = '')`

	markPaidSQL = `UPDATE orders
	SET payment_status = 'paid',
	    status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END
	WHERE id = $1 AND payment_status <> 'paid'`

	listPendingSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE payment_status <> 'paid' AND status = 'pending' AND created_at < $1
	ORDER BY created_at
	LIMIT $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items and the shipping address are stored as
// JSONB snapshots.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshal shipping address")
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.Number, items, addr,
		o.Subtotal, o.ShippingCost, o.Tax, o.Total,
		string(o.Status), string(o.PaymentStatus), o.PaymentSessionID, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// GetByID returns the order with the given id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderByIDSQL, id))
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return o, nil
}

// GetByNumber returns the order with the given human-readable number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderByNumberSQL, number))
	if err != nil {
		return nil, errors.Wrapf(err, "get order by number %q", number)
	}
	return o, nil
}

func (r *OrderRepository) LinkPaymentSession(ctx context.Context, id, sessionID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, linkSessionSQL, id, sessionID)
	if err != nil {
		return false, errors.Wrapf(err, "link payment session to order %q", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) MarkPaid(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, markPaidSQL, id)
	if err != nil {
		return false, errors.Wrapf(err, "mark order %q paid", id)
	}
	return tag.RowsAffected() == 1, nil
}

// ListPending returns unpaid pending orders created before the cutoff, oldest
// first.
func (r *OrderRepository) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listPendingSQL, createdBefore, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list pending orders")
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "list pending orders")
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate pending orders")
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o             order.Order
		items, addr   []byte
		status, pstat string
		sessionID     *string
	)
	err := row.Scan(
		&o.ID, &o.Number, &items, &addr,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total,
		&status, &pstat, &sessionID, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, errors.Wrap(err, "unmarshal order items")
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return nil, errors.Wrap(err, "unmarshal shipping address")
	}
	o.Status = order.Status(status)
	o.PaymentStatus = payment.PaymentStatus(pstat)
	if sessionID != nil {
		o.PaymentSessionID = *sessionID
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}
