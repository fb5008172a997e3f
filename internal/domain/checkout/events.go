package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderPaid is emitted once, when an order first transitions to paid.
type OrderPaid struct {
	OrderID       string
	OrderNumber   string
	SessionID     string
	CustomerEmail string
	Amount        decimal.Decimal
	Currency      string
	PaidAt        time.Time
}

// Publisher delivers domain events to downstream consumers.
type Publisher interface {
	PublishOrderPaid(ctx context.Context, e OrderPaid) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) PublishOrderPaid(context.Context, OrderPaid) error { return nil }
