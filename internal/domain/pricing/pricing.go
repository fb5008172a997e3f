// Package pricing computes cart totals. It is pure and deterministic: the same
// lines always produce the same quote, whether the caller is estimating a cart
// or committing a checkout. Client-supplied totals are never an input.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Default rates used by the storefront.
var (
	DefaultFreeShippingThreshold = decimal.RequireFromString("75.00")
	DefaultFlatRate              = decimal.RequireFromString("9.95")
	DefaultTaxRate               = decimal.RequireFromString("0.13")
)

// Line is a single priced cart line.
type Line struct {
	Price    decimal.Decimal
	Quantity int
}

// Quote holds the computed money fields, each rounded to 2 decimal places.
type Quote struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	// FreeShippingThreshold and TaxRate echo the rates used.
	FreeShippingThreshold decimal.Decimal
	TaxRate               decimal.Decimal
}

// Rates configures the Engine.
type Rates struct {
	FreeShippingThreshold decimal.Decimal
	FlatRate              decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultRates returns the storefront defaults (75.00 threshold, 9.95 flat
// shipping, 13% tax).
func DefaultRates() Rates {
	return Rates{
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		FlatRate:              DefaultFlatRate,
		TaxRate:               DefaultTaxRate,
	}
}

// Validate checks that all rates are non-negative.
func (r Rates) Validate() error {
	if r.FreeShippingThreshold.IsNegative() {
		return errors.New("free shipping threshold must not be negative")
	}
	if r.FlatRate.IsNegative() {
		return errors.New("flat shipping rate must not be negative")
	}
	if r.TaxRate.IsNegative() {
		return errors.New("tax rate must not be negative")
	}
	return nil
}

// Engine applies Rates to cart lines.
type Engine struct {
	rates Rates
}

// NewEngine creates an Engine with the given rates.
func NewEngine(rates Rates) *Engine {
	return &Engine{rates: rates}
}

// Rates returns the configured rates.
func (e *Engine) Rates() Rates {
	return e.rates
}

// Quote prices the given lines.
//
// The subtotal is accumulated at full precision and shipping is decided on
// that unrounded value. Tax applies to goods and shipping. Total is the sum of
// the rounded components, so Total == round(Subtotal+Shipping+Tax, 2) holds
// exactly.
func (e *Engine) Quote(lines []Line) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	shipping := e.rates.FlatRate
	if subtotal.GreaterThanOrEqual(e.rates.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Add(shipping).Mul(e.rates.TaxRate)

	q := Quote{
		Subtotal:              subtotal.Round(2),
		Shipping:              shipping.Round(2),
		Tax:                   tax.Round(2),
		FreeShippingThreshold: e.rates.FreeShippingThreshold,
		TaxRate:               e.rates.TaxRate,
	}
	q.Total = q.Subtotal.Add(q.Shipping).Add(q.Tax)
	return q
}
