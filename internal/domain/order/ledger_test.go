package order

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/payment"
	"github.com/xenking/beautivra/internal/domain/pricing"
)

// --- Mock implementations ---

type memOrderRepo struct {
	mu        sync.Mutex
	byID      map[string]*Order
	createErr error
	getErr    error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{byID: make(map[string]*Order)}
}

func (m *memOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) GetByNumber(_ context.Context, number string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.Number == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOrderRepo) LinkPaymentSession(_ context.Context, id, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.PaymentSessionID != "" {
		return false, nil
	}
	o.PaymentSessionID = sessionID
	return true, nil
}

func (m *memOrderRepo) MarkPaid(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	return o.MarkPaid(), nil
}

func (m *memOrderRepo) ListPending(_ context.Context, before time.Time, limit int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.byID {
		if o.Status == StatusPending && o.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, *o)
		}
	}
	return out, nil
}

// --- Helpers ---

func item(id, price string, qty int) CartItem {
	return CartItem{
		ProductID:    id,
		ProductName:  "Product " + id,
		ProductImage: "https://img.example.com/" + id + ".jpg",
		Price:        decimal.RequireFromString(price),
		Quantity:     qty,
	}
}

func named(c CartItem, name string) CartItem {
	c.ProductName = name
	return c
}

func address() ShippingAddress {
	return ShippingAddress{
		FirstName:  "Jane",
		LastName:   "Doe",
		Email:      "jane@example.com",
		Phone:      "+1 416 555 0100",
		Address:    "1 King St W",
		City:       "Toronto",
		Province:   "ON",
		PostalCode: "M5H 1A1",
	}
}

func newLedger(repo Repository) *Ledger {
	return NewLedger(repo, pricing.NewEngine(pricing.DefaultRates()))
}

var numberPattern = regexp.MustCompile(`^BV-\d{14}-[A-Z0-9]{6}$`)

// --- Tests ---

func TestLedger_Create(t *testing.T) {
	repo := newMemOrderRepo()
	l := newLedger(repo)
	fixed := time.Date(2025, 3, 9, 14, 5, 6, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	o, err := l.Create(context.Background(), []CartItem{item("p1", "42.00", 1)}, address())
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Regexp(t, numberPattern, o.Number)
	assert.Contains(t, o.Number, "BV-20250309140506-")
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, payment.PaymentPending, o.PaymentStatus)
	assert.Empty(t, o.PaymentSessionID)
	assert.Equal(t, DefaultCountry, o.ShippingAddress.Country)
	assert.True(t, decimal.RequireFromString("42.00").Equal(o.Subtotal))
	assert.True(t, decimal.RequireFromString("9.95").Equal(o.ShippingCost))
	assert.True(t, decimal.RequireFromString("6.75").Equal(o.Tax))
	assert.True(t, decimal.RequireFromString("58.70").Equal(o.Total))
	assert.Equal(t, fixed, o.CreatedAt)

	stored, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Number, stored.Number)
}

func TestLedger_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		items []CartItem
		addr  func(a *ShippingAddress)
	}{
		{name: "empty cart", items: nil},
		{name: "zero quantity", items: []CartItem{item("p1", "10", 0)}},
		{name: "negative quantity", items: []CartItem{item("p1", "10", -2)}},
		{name: "zero price", items: []CartItem{item("p1", "0", 1)}},
		{name: "negative price", items: []CartItem{item("p1", "-5", 1)}},
		{name: "missing product id", items: []CartItem{item("", "5", 1)}},
		{name: "blank product id", items: []CartItem{named(item("   ", "5", 1), "Jade Roller")}},
		{name: "missing product name", items: []CartItem{named(item("p1", "5", 1), "")}},
		{name: "blank product name", items: []CartItem{named(item("p1", "5", 1), " \t")}},
		{name: "sub-cent price", items: []CartItem{item("p1", "74.995", 1)}},
		{name: "quantity over limit", items: []CartItem{item("p1", "1", MaxQuantity+1)}},
		{name: "subtotal over limit", items: []CartItem{item("p1", "60000000.00", 1), item("p2", "40000000.01", 1)}},
		{name: "subtotal past money column", items: []CartItem{item("p1", "999999999.99", 2)}},
		{name: "missing city", items: []CartItem{item("p1", "5", 1)}, addr: func(a *ShippingAddress) { a.City = " " }},
		{name: "bad email", items: []CartItem{item("p1", "5", 1)}, addr: func(a *ShippingAddress) { a.Email = "jane" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemOrderRepo()
			l := newLedger(repo)
			addr := address()
			if tt.addr != nil {
				tt.addr(&addr)
			}

			_, err := l.Create(context.Background(), tt.items, addr)
			require.Error(t, err)
			assert.True(t, failure.IsValidation(err), "want validation error, got %v", err)
			assert.Empty(t, repo.byID, "nothing must be persisted")
		})
	}
}

func TestValidateItems_Bounds(t *testing.T) {
	require.NoError(t, ValidateItems([]CartItem{item("p1", "10000.00", MaxQuantity)}))
	require.NoError(t, ValidateItems([]CartItem{item("p1", "74.99", 1), item("p2", "0.1", 3)}))

	err := ValidateItems([]CartItem{item("p1", "74.995", 1)})
	var invalid *InvalidItemError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "p1", invalid.ProductID)
	assert.Contains(t, invalid.Reason, "2 decimal places")

	err = ValidateItems([]CartItem{item("p1", "50000000", 1), item("p2", "50000000", 1), item("p3", "0.01", 1)})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 2, invalid.Index)
}

func TestLedger_Quote_RejectsSubCentPrice(t *testing.T) {
	l := newLedger(newMemOrderRepo())

	_, err := l.Quote([]CartItem{item("p1", "74.995", 1)})
	require.Error(t, err)
	assert.True(t, failure.IsValidation(err))
}

func TestLedger_Create_InvalidItemCarriesProduct(t *testing.T) {
	l := newLedger(newMemOrderRepo())

	_, err := l.Create(context.Background(), []CartItem{item("p1", "5", 1), item("p2", "5", 0)}, address())

	var iiErr *InvalidItemError
	require.ErrorAs(t, err, &iiErr)
	assert.Equal(t, 1, iiErr.Index)
	assert.Equal(t, "p2", iiErr.ProductID)
}

func TestLedger_Create_RepoError(t *testing.T) {
	repo := newMemOrderRepo()
	repo.createErr = errors.New("db write failed")
	l := newLedger(repo)

	_, err := l.Create(context.Background(), []CartItem{item("p1", "5", 1)}, address())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestLedger_AttachPaymentSession(t *testing.T) {
	ctx := context.Background()
	repo := newMemOrderRepo()
	l := newLedger(repo)

	o, err := l.Create(ctx, []CartItem{item("p1", "5", 1)}, address())
	require.NoError(t, err)

	require.NoError(t, l.AttachPaymentSession(ctx, o.ID, "cs_1"))
	require.NoError(t, l.AttachPaymentSession(ctx, o.ID, "cs_1"), "same session is a no-op")

	err = l.AttachPaymentSession(ctx, o.ID, "cs_2")
	require.Error(t, err)
	assert.True(t, failure.IsConflict(err))

	stored, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", stored.PaymentSessionID)

	err = l.AttachPaymentSession(ctx, "missing", "cs_1")
	assert.True(t, failure.IsNotFound(err))
}

func TestLedger_MarkPaid(t *testing.T) {
	ctx := context.Background()
	repo := newMemOrderRepo()
	l := newLedger(repo)

	o, err := l.Create(ctx, []CartItem{item("p1", "5", 1)}, address())
	require.NoError(t, err)

	changed, err := l.MarkPaid(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	for range 3 {
		changed, err = l.MarkPaid(ctx, o.ID)
		require.NoError(t, err)
		assert.False(t, changed)
	}

	stored, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, stored.Status)
	assert.Equal(t, payment.PaymentPaid, stored.PaymentStatus)
	assert.True(t, o.Total.Equal(stored.Total))

	_, err = l.MarkPaid(ctx, "missing")
	assert.True(t, failure.IsNotFound(err))
}

func TestOrder_MarkPaidKeepsCancelled(t *testing.T) {
	o := &Order{Status: StatusCancelled, PaymentStatus: payment.PaymentPending}
	assert.True(t, o.MarkPaid())
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, payment.PaymentPaid, o.PaymentStatus)
}

func TestLedger_Find(t *testing.T) {
	ctx := context.Background()
	l := newLedger(newMemOrderRepo())

	o, err := l.Create(ctx, []CartItem{item("p1", "5", 1)}, address())
	require.NoError(t, err)

	byID, err := l.Find(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byID.ID)

	byNumber, err := l.Find(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byNumber.ID)

	_, err = l.Find(ctx, "BV-20000101000000-ZZZZZZ")
	assert.True(t, failure.IsNotFound(err))

	_, err = l.Find(ctx, "")
	assert.True(t, failure.IsNotFound(err))
}

func TestLedger_Find_RepoError(t *testing.T) {
	repo := newMemOrderRepo()
	repo.getErr = errors.New("db down")
	l := newLedger(repo)

	_, err := l.Find(context.Background(), "some-id")
	require.Error(t, err)
	assert.False(t, failure.IsNotFound(err))
}

func TestLedger_ListPending(t *testing.T) {
	ctx := context.Background()
	repo := newMemOrderRepo()
	l := newLedger(repo)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	old, err := l.Create(ctx, []CartItem{item("p1", "5", 1)}, address())
	require.NoError(t, err)

	l.now = func() time.Time { return base.Add(50 * time.Minute) }
	_, err = l.Create(ctx, []CartItem{item("p1", "5", 1)}, address())
	require.NoError(t, err)

	l.now = func() time.Time { return base.Add(time.Hour) }
	pending, err := l.ListPending(ctx, 30*time.Minute, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, old.ID, pending[0].ID)
}

func TestNewNumber(t *testing.T) {
	seen := make(map[string]struct{})
	now := time.Now()
	for range 100 {
		n := NewNumber(now)
		require.Regexp(t, numberPattern, n)
		seen[n] = struct{}{}
	}
	assert.Greater(t, len(seen), 90)
}
