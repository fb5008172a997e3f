package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/beautivra/internal/domain/failure"
)

func TestParseState(t *testing.T) {
	s, err := ParseState("complete", "paid")
	require.NoError(t, err)
	assert.Equal(t, State{Status: SessionComplete, PaymentStatus: PaymentPaid}, s)

	s, err = ParseState("open", "unpaid")
	require.NoError(t, err)
	assert.Equal(t, State{Status: SessionOpen, PaymentStatus: PaymentPending}, s)

	_, err = ParseState("processing", "paid")
	require.Error(t, err)
	assert.True(t, failure.IsValidation(err))

	_, err = ParseState("complete", "no_payment_required")
	require.Error(t, err)
	assert.True(t, failure.IsValidation(err))
}

func TestState_Advance(t *testing.T) {
	initiated := State{Status: SessionInitiated, PaymentStatus: PaymentPending}
	open := State{Status: SessionOpen, PaymentStatus: PaymentPending}
	paid := State{Status: SessionComplete, PaymentStatus: PaymentPaid}
	expired := State{Status: SessionExpired, PaymentStatus: PaymentPending}

	tests := []struct {
		name    string
		current State
		report  State
		want    State
	}{
		{"initiated to open", initiated, open, open},
		{"open to paid", open, paid, paid},
		{"paid stays paid on stale open", paid, open, paid},
		{"expired is terminal", expired, open, expired},
		{"complete outranks expired", expired, paid, paid},
		{"expired cannot replace complete", paid, expired, State{Status: SessionComplete, PaymentStatus: PaymentPaid}},
		{"same report is a no-op", paid, paid, paid},
		{"report cannot move back to initiated", open, initiated, open},
		{
			name:    "paid sticks even while status advances",
			current: State{Status: SessionOpen, PaymentStatus: PaymentPaid},
			report:  State{Status: SessionComplete, PaymentStatus: PaymentPending},
			want:    paid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.current.Advance(tt.report))
		})
	}
}

func TestState_AdvanceConverges(t *testing.T) {
	initiated := State{Status: SessionInitiated, PaymentStatus: PaymentPending}
	open := State{Status: SessionOpen, PaymentStatus: PaymentPending}
	paid := State{Status: SessionComplete, PaymentStatus: PaymentPaid}
	expired := State{Status: SessionExpired, PaymentStatus: PaymentPending}

	orders := [][]State{
		{open, paid, paid},
		{paid, open, paid},
		{paid, paid, open},
		{paid},
		{expired, open, paid},
		{paid, expired},
	}
	for _, reports := range orders {
		s := initiated
		for _, r := range reports {
			s = s.Advance(r)
		}
		assert.Equal(t, paid, s)
	}
}

func TestTransaction_State(t *testing.T) {
	txs := []Transaction{
		{Status: SessionInitiated, PaymentStatus: PaymentPending},
		{Status: SessionComplete, PaymentStatus: PaymentPaid},
	}
	for _, tx := range txs {
		assert.Equal(t, State{Status: tx.Status, PaymentStatus: tx.PaymentStatus}, tx.State())
	}
	assert.Equal(t, State{Status: SessionExpired}, Transaction{Status: SessionExpired}.State())
}
