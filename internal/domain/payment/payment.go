// Package payment models hosted payment sessions and the local record of what
// the payment provider last reported about them.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by Repository when no transaction matches.
var ErrNotFound = errors.New("payment transaction not found")

// ErrUnhandledEvent is returned by Gateway.ParseWebhook for authentic events
// that carry nothing to reconcile.
var ErrUnhandledEvent = errors.New("unhandled webhook event")

// Metadata keys carried on every payment session.
const (
	MetaOrderID       = "order_id"
	MetaOrderNumber   = "order_number"
	MetaCustomerEmail = "customer_email"
)

// Transaction is the local mirror of a provider payment session.
type Transaction struct {
	ID            string
	SessionID     string
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	Status        SessionStatus
	PaymentStatus PaymentStatus
	Metadata      map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// State returns the reconcilable part of the transaction.
func (t Transaction) State() State {
	return State{Status: t.Status, PaymentStatus: t.PaymentStatus}
}

// Repository persists payment transactions.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetBySession(ctx context.Context, sessionID string) (*Transaction, error)
	// CompareAndSwap replaces the state of the transaction identified by
	// sessionID with next only if its stored state still equals prev. It
	// reports whether the row was updated.
	CompareAndSwap(ctx context.Context, sessionID string, prev, next State, at time.Time) (bool, error)
}

// SessionRequest describes a hosted payment session to open.
type SessionRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// Session is a freshly opened hosted payment session.
type Session struct {
	ID  string
	URL string
}

// SessionReport is what the provider reports about a session when polled.
// Status and PaymentStatus are kept in provider terminology.
type SessionReport struct {
	Status        string
	PaymentStatus string
	// AmountTotal is in the currency's minor unit.
	AmountTotal int64
	Currency    string
	Metadata    map[string]string
}

// WebhookEvent is an authenticated provider notification about a session.
type WebhookEvent struct {
	ID            string
	Type          string
	SessionID     string
	Status        string
	PaymentStatus string
}

// Gateway drives the external payment provider.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetStatus(ctx context.Context, sessionID string) (*SessionReport, error)
	// ParseWebhook verifies the signature of payload and extracts the session
	// update. It returns an error wrapping failure.ErrSignature on forgery or
	// tampering, and ErrUnhandledEvent for events that carry nothing to
	// reconcile.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
