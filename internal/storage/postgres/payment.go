package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/beautivra/internal/domain/payment"
)

const (
	createTransactionSQL = `INSERT INTO payment_transactions
	(id, session_id, order_id, amount, currency, status, payment_status, metadata, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getTransactionSQL = `SELECT id, session_id, order_id, amount, currency, status,
	payment_status, metadata, created_at, updated_at
	FROM payment_transactions WHERE session_id = $1`

	swapTransactionSQL = `UPDATE payment_transactions
	SET status = $4, payment_status = $5, updated_at = $6
	WHERE session_id = $1 AND status = $2 AND payment_status = $3`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *payment.Transaction) error {
	meta := tx.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "marshal metadata")
	}

	_, err = r.pool.Exec(ctx, createTransactionSQL,
		tx.ID, tx.SessionID, tx.OrderID, tx.Amount, tx.Currency,
		string(tx.Status), string(tx.PaymentStatus), metaJSON, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(err, "payment session %q already recorded", tx.SessionID)
		}
		return errors.Wrapf(err, "create payment transaction %q", tx.SessionID)
	}
	return nil
}

func (r *PaymentRepository) GetBySession(ctx context.Context, sessionID string) (*payment.Transaction, error) {
	var (
		tx            payment.Transaction
		status, pstat string
		meta          []byte
	)
	err := r.pool.QueryRow(ctx, getTransactionSQL, sessionID).Scan(
		&tx.ID, &tx.SessionID, &tx.OrderID, &tx.Amount, &tx.Currency,
		&status, &pstat, &meta, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get payment transaction %q", sessionID)
	}
	if err := json.Unmarshal(meta, &tx.Metadata); err != nil {
		return nil, errors.Wrap(err, "unmarshal metadata")
	}
	tx.Status = payment.SessionStatus(status)
	tx.PaymentStatus = payment.PaymentStatus(pstat)
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return &tx, nil
}

// CompareAndSwap updates the stored state only when it still matches prev.
// Concurrent reconcilers racing on the same session serialize on the row
// lock and the loser sees zero rows affected.
func (r *PaymentRepository) CompareAndSwap(ctx context.Context, sessionID string, prev, next payment.State, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, swapTransactionSQL,
		sessionID,
		string(prev.Status), string(prev.PaymentStatus),
		string(next.Status), string(next.PaymentStatus),
		at,
	)
	if err != nil {
		return false, errors.Wrapf(err, "update payment transaction %q", sessionID)
	}
	return tag.RowsAffected() == 1, nil
}
