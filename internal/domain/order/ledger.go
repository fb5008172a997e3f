// Package order owns the Order lifecycle: creation from a cart with
// server-computed totals, linking to a payment session and confirmation once
// paid.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/payment"
	"github.com/xenking/beautivra/internal/domain/pricing"
)

// ErrEmptyCart is returned when checking out a cart with no items.
var ErrEmptyCart = &failure.ValidationError{Field: "items", Reason: "cart is empty"}

// Ledger is the single source of truth for order state.
type Ledger struct {
	orders  Repository
	pricing *pricing.Engine
	now     func() time.Time
}

// NewLedger creates a Ledger backed by the given repository.
func NewLedger(orders Repository, engine *pricing.Engine) *Ledger {
	return &Ledger{
		orders:  orders,
		pricing: engine,
		now:     time.Now,
	}
}

// Quote validates items and prices them without persisting anything.
func (l *Ledger) Quote(items []CartItem) (pricing.Quote, error) {
	if err := ValidateItems(items); err != nil {
		return pricing.Quote{}, err
	}
	return l.pricing.Quote(Lines(items)), nil
}

// Create prices the cart and persists a pending order.
func (l *Ledger) Create(ctx context.Context, items []CartItem, addr ShippingAddress) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if addr.Country == "" {
		addr.Country = DefaultCountry
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	quote, err := l.Quote(items)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	snapshot := make([]CartItem, len(items))
	copy(snapshot, items)

	o := &Order{
		ID:              uuid.New().String(),
		Number:          NewNumber(now),
		Items:           snapshot,
		ShippingAddress: addr,
		Subtotal:        quote.Subtotal,
		ShippingCost:    quote.Shipping,
		Tax:             quote.Tax,
		Total:           quote.Total,
		Status:          StatusPending,
		PaymentStatus:   payment.PaymentPending,
		CreatedAt:       now,
	}
	if err := l.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// AttachPaymentSession links sessionID to the order. Linking the same session
// again is a no-op; linking a different one is a conflict.
func (l *Ledger) AttachPaymentSession(ctx context.Context, orderID, sessionID string) error {
	if sessionID == "" {
		return failure.Invalid("session_id", "is required")
	}

	linked, err := l.orders.LinkPaymentSession(ctx, orderID, sessionID)
	if err != nil {
		return errors.Wrap(err, "link payment session")
	}
	if linked {
		return nil
	}

	o, err := l.get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.PaymentSessionID == sessionID {
		return nil
	}
	return &failure.ConflictError{
		Entity: "order",
		Key:    orderID,
		Reason: "already linked to a different payment session",
	}
}

// MarkPaid confirms the order. Calling it on an already paid order is a
// no-op. It reports whether the order changed.
func (l *Ledger) MarkPaid(ctx context.Context, orderID string) (bool, error) {
	changed, err := l.orders.MarkPaid(ctx, orderID)
	if err != nil {
		return false, errors.Wrap(err, "mark order paid")
	}
	if changed {
		return true, nil
	}
	// Distinguish "already paid" from "no such order".
	if _, err := l.get(ctx, orderID); err != nil {
		return false, err
	}
	return false, nil
}

// Find looks an order up by id, falling back to its order number.
func (l *Ledger) Find(ctx context.Context, key string) (*Order, error) {
	if key == "" {
		return nil, failure.NotFound("order", key)
	}

	lookups := []func(context.Context, string) (*Order, error){l.orders.GetByID, l.orders.GetByNumber}
	if LooksLikeNumber(key) {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}
	for _, lookup := range lookups {
		o, err := lookup(ctx, key)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrapf(err, "find order %q", key)
		}
	}
	return nil, failure.NotFound("order", key)
}

// ListPending returns pending orders created more than olderThan ago, oldest
// first. These are candidates for manual recovery.
func (l *Ledger) ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	orders, err := l.orders.ListPending(ctx, l.now().Add(-olderThan), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list pending orders")
	}
	return orders, nil
}

func (l *Ledger) get(ctx context.Context, id string) (*Order, error) {
	o, err := l.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, failure.NotFound("order", id)
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return o, nil
}
