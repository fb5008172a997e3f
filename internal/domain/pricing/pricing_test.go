package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name     string
		lines    []Line
		subtotal string
		shipping string
		tax      string
		total    string
	}{
		{
			name:     "single item below threshold",
			lines:    []Line{{Price: dec("42.00"), Quantity: 1}},
			subtotal: "42.00",
			shipping: "9.95",
			tax:      "6.75",
			total:    "58.70",
		},
		{
			name: "two items reaching threshold ship free",
			lines: []Line{
				{Price: dec("50.00"), Quantity: 1},
				{Price: dec("30.00"), Quantity: 1},
			},
			subtotal: "80.00",
			shipping: "0",
			tax:      "10.40",
			total:    "90.40",
		},
		{
			name:     "exactly at threshold ships free",
			lines:    []Line{{Price: dec("25.00"), Quantity: 3}},
			subtotal: "75.00",
			shipping: "0",
			tax:      "9.75",
			total:    "84.75",
		},
		{
			name:     "just below threshold pays shipping",
			lines:    []Line{{Price: dec("74.99"), Quantity: 1}},
			subtotal: "74.99",
			shipping: "9.95",
			tax:      "11.04",
			total:    "95.98",
		},
		{
			name:     "empty cart",
			lines:    nil,
			subtotal: "0",
			shipping: "9.95",
			tax:      "1.29",
			total:    "11.24",
		},
	}

	engine := NewEngine(DefaultRates())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := engine.Quote(tt.lines)
			assertDec(t, tt.subtotal, q.Subtotal, "subtotal")
			assertDec(t, tt.shipping, q.Shipping, "shipping")
			assertDec(t, tt.tax, q.Tax, "tax")
			assertDec(t, tt.total, q.Total, "total")
			assertDec(t, "75.00", q.FreeShippingThreshold, "threshold")
			assertDec(t, "0.13", q.TaxRate, "tax rate")
		})
	}
}

func TestQuote_TotalInvariant(t *testing.T) {
	engine := NewEngine(DefaultRates())
	threshold := dec("75.00")

	prices := []string{"0", "0.01", "1.99", "9.95", "12.345", "33.33", "74.99", "75", "100.10"}
	for _, p := range prices {
		for qty := 0; qty <= 5; qty++ {
			q := engine.Quote([]Line{{Price: dec(p), Quantity: qty}})

			sum := q.Subtotal.Add(q.Shipping).Add(q.Tax).Round(2)
			require.True(t, sum.Equal(q.Total), "price %s qty %d: total %s != %s", p, qty, q.Total, sum)

			unrounded := dec(p).Mul(decimal.NewFromInt(int64(qty)))
			if unrounded.GreaterThanOrEqual(threshold) {
				require.True(t, q.Shipping.IsZero(), "price %s qty %d should ship free", p, qty)
			} else {
				require.False(t, q.Shipping.IsZero(), "price %s qty %d should pay shipping", p, qty)
			}

			for _, v := range []decimal.Decimal{q.Subtotal, q.Shipping, q.Tax, q.Total} {
				require.True(t, v.Equal(v.Round(2)))
			}
		}
	}
}

func TestQuote_CustomRates(t *testing.T) {
	engine := NewEngine(Rates{
		FreeShippingThreshold: dec("50"),
		FlatRate:              dec("5"),
		TaxRate:               dec("0.05"),
	})

	q := engine.Quote([]Line{{Price: dec("10"), Quantity: 2}})
	assertDec(t, "20.00", q.Subtotal, "subtotal")
	assertDec(t, "5.00", q.Shipping, "shipping")
	assertDec(t, "1.25", q.Tax, "tax")
	assertDec(t, "26.25", q.Total, "total")
}

func TestRates_Validate(t *testing.T) {
	require.NoError(t, DefaultRates().Validate())

	r := DefaultRates()
	r.TaxRate = dec("-0.1")
	require.Error(t, r.Validate())
}
