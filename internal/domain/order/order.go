package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/payment"
	"github.com/xenking/beautivra/internal/domain/pricing"
)

// ErrNotFound is returned by Repository when no order matches.
var ErrNotFound = errors.New("order not found")

// Status is the fulfilment lifecycle of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	// StatusCancelled is only ever set by operators outside this service.
	StatusCancelled Status = "cancelled"
)

// Order is a checked-out cart with server-computed totals.
type Order struct {
	ID               string
	Number           string
	Items            []CartItem
	ShippingAddress  ShippingAddress
	Subtotal         decimal.Decimal
	ShippingCost     decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
	Status           Status
	PaymentStatus    payment.PaymentStatus
	PaymentSessionID string
	CreatedAt        time.Time
}

// MarkPaid records payment and confirms a pending order. A cancelled order
// keeps its status. It reports whether anything changed.
func (o *Order) MarkPaid() bool {
	if o.PaymentStatus == payment.PaymentPaid {
		return false
	}
	o.PaymentStatus = payment.PaymentPaid
	if o.Status == StatusPending {
		o.Status = StatusConfirmed
	}
	return true
}

// CartItem is a snapshot of a product line taken when it was added to the cart.
type CartItem struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image"`
	Variant      string          `json:"variant,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
}

// Line returns the pricing view of the item.
func (c CartItem) Line() pricing.Line {
	return pricing.Line{Price: c.Price, Quantity: c.Quantity}
}

// Lines converts cart items to pricing lines.
func Lines(items []CartItem) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, item := range items {
		lines[i] = item.Line()
	}
	return lines
}

// ShippingAddress is the delivery destination captured at checkout.
type ShippingAddress struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// DefaultCountry is used when the address omits a country.
const DefaultCountry = "Canada"

// Cart bounds. MaxSubtotal leaves room for tax and shipping inside the
// NUMERIC(12,2) money columns.
const MaxQuantity = 10000

var MaxSubtotal = decimal.RequireFromString("100000000.00")

// ValidateItems checks every line is billable. Empty carts are allowed here;
// Ledger.Create rejects them separately.
func ValidateItems(items []CartItem) error {
	subtotal := decimal.Zero
	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return &InvalidItemError{Index: i, Reason: "product_id is required"}
		}
		if strings.TrimSpace(item.ProductName) == "" {
			return &InvalidItemError{Index: i, ProductID: item.ProductID, Reason: "product_name is required"}
		}
		if item.Quantity < 1 {
			return &InvalidItemError{Index: i, ProductID: item.ProductID, Reason: "quantity must be at least 1"}
		}
		if item.Quantity > MaxQuantity {
			return &InvalidItemError{Index: i, ProductID: item.ProductID, Reason: "quantity must be at most 10000"}
		}
		if !item.Price.IsPositive() {
			return &InvalidItemError{Index: i, ProductID: item.ProductID, Reason: "price must be greater than 0"}
		}
		if !item.Price.Equal(item.Price.Round(2)) {
			return &InvalidItemError{Index: i, ProductID: item.ProductID, Reason: "price must have at most 2 decimal places"}
		}
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		if subtotal.GreaterThan(MaxSubtotal) {
			return &InvalidItemError{Index: i, ProductID: item.ProductID, Reason: "order subtotal exceeds " + MaxSubtotal.StringFixed(2)}
		}
	}
	return nil
}

// Validate checks every address field is present.
func (a ShippingAddress) Validate() error {
	return failure.First(
		failure.Required("shipping_address.first_name", a.FirstName),
		failure.Required("shipping_address.last_name", a.LastName),
		failure.Email("shipping_address.email", a.Email),
		failure.Required("shipping_address.phone", a.Phone),
		failure.Required("shipping_address.address", a.Address),
		failure.Required("shipping_address.city", a.City),
		failure.Required("shipping_address.province", a.Province),
		failure.Required("shipping_address.postal_code", a.PostalCode),
		failure.Required("shipping_address.country", a.Country),
	)
}

// InvalidItemError indicates a cart line that cannot be billed.
type InvalidItemError struct {
	Index     int
	ProductID string
	Reason    string
}

func (e *InvalidItemError) Error() string {
	if e.ProductID == "" {
		return e.Reason
	}
	return e.Reason + " for product " + e.ProductID
}

// Unwrap exposes the error as a validation failure.
func (e *InvalidItemError) Unwrap() error {
	return &failure.ValidationError{Field: "items", Reason: e.Error()}
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	// LinkPaymentSession sets the session id of an order that has none and
	// reports whether it did.
	LinkPaymentSession(ctx context.Context, id, sessionID string) (bool, error)
	// MarkPaid applies Order.MarkPaid atomically and reports whether the
	// order changed.
	MarkPaid(ctx context.Context, id string) (bool, error)
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]Order, error)
}
