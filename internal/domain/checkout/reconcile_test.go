package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/order"
	"github.com/xenking/beautivra/internal/domain/payment"
)

func TestReconcile_PaidConfirmsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.checkout(t)

	tx, err := f.svc.Reconcile(ctx, res.SessionID, "complete", "paid")
	require.NoError(t, err)
	assert.Equal(t, payment.SessionComplete, tx.Status)
	assert.Equal(t, payment.PaymentPaid, tx.PaymentStatus)

	o := f.orders.only(t)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, payment.PaymentPaid, o.PaymentStatus)

	require.Equal(t, 1, f.publisher.count())
	e := f.publisher.events[0]
	assert.Equal(t, o.ID, e.OrderID)
	assert.Equal(t, o.Number, e.OrderNumber)
	assert.Equal(t, "jane@example.com", e.CustomerEmail)
	assert.True(t, o.Total.Equal(e.Amount))
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.checkout(t)

	_, err := f.svc.Reconcile(ctx, res.SessionID, "complete", "paid")
	require.NoError(t, err)
	first := f.payments.get(t, res.SessionID)
	firstOrder := f.orders.only(t)

	for range 5 {
		_, err := f.svc.Reconcile(ctx, res.SessionID, "complete", "paid")
		require.NoError(t, err)
	}

	assert.Equal(t, first, f.payments.get(t, res.SessionID))
	assert.Equal(t, firstOrder, f.orders.only(t))
	assert.Equal(t, 1, f.payments.writes, "repeated reports must not rewrite the row")
	assert.Equal(t, 1, f.publisher.count())
}

func TestReconcile_PendingLeavesOrderAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.checkout(t)

	tx, err := f.svc.Reconcile(ctx, res.SessionID, "open", "unpaid")
	require.NoError(t, err)
	assert.Equal(t, payment.SessionOpen, tx.Status)
	assert.Equal(t, payment.PaymentPending, tx.PaymentStatus)

	o := f.orders.only(t)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, payment.PaymentPending, o.PaymentStatus)
	assert.Zero(t, f.publisher.count())
}

func TestReconcile_PaidIsSticky(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.checkout(t)

	_, err := f.svc.Reconcile(ctx, res.SessionID, "complete", "paid")
	require.NoError(t, err)

	tx, err := f.svc.Reconcile(ctx, res.SessionID, "open", "unpaid")
	require.NoError(t, err)
	assert.Equal(t, payment.SessionComplete, tx.Status)
	assert.Equal(t, payment.PaymentPaid, tx.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, f.orders.only(t).Status)
}

func TestReconcile_Commutative(t *testing.T) {
	reports := [][2]string{
		{"open", "unpaid"},
		{"complete", "paid"},
		{"expired", "unpaid"},
	}
	orders := [][]int{
		{0, 1, 2},
		{0, 2, 1},
		{1, 0, 2},
		{1, 2, 0},
		{2, 0, 1},
		{2, 1, 0},
	}

	var final *payment.State
	for _, perm := range orders {
		f := newFixture(t)
		res := f.checkout(t)

		for _, i := range perm {
			_, err := f.svc.Reconcile(context.Background(), res.SessionID, reports[i][0], reports[i][1])
			require.NoError(t, err)
		}

		got := f.payments.get(t, res.SessionID).State()
		if final == nil {
			final = &got
		}
		assert.Equal(t, *final, got, "order %v", perm)
		assert.Equal(t, order.StatusConfirmed, f.orders.only(t).Status, "order %v", perm)
		assert.Equal(t, 1, f.publisher.count(), "order %v", perm)
	}
	assert.Equal(t, payment.PaymentPaid, final.PaymentStatus)
}

func TestReconcile_InvalidStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.checkout(t)

	_, err := f.svc.Reconcile(ctx, res.SessionID, "bogus", "paid")
	require.Error(t, err)
	assert.True(t, failure.IsValidation(err))

	_, err = f.svc.Reconcile(ctx, res.SessionID, "complete", "refunded")
	require.Error(t, err)
	assert.True(t, failure.IsValidation(err))

	tx := f.payments.get(t, res.SessionID)
	assert.Equal(t, payment.SessionInitiated, tx.Status)
	assert.Zero(t, f.payments.writes)
}

func TestReconcile_UnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reconcile(context.Background(), "cs_missing", "complete", "paid")
	require.Error(t, err)
	assert.True(t, failure.IsNotFound(err))
}

func TestReconcile_Concurrent(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t)

	reports := [][2]string{
		{"complete", "paid"},
		{"open", "unpaid"},
		{"complete", "paid"},
		{"expired", "unpaid"},
	}

	var wg sync.WaitGroup
	for i := range 16 {
		r := reports[i%len(reports)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Losing every CAS round is possible under contention; the final
			// state is what matters.
			_, _ = f.svc.Reconcile(context.Background(), res.SessionID, r[0], r[1])
		}()
	}
	wg.Wait()

	// One more report settles any call that gave up after retries.
	_, err := f.svc.Reconcile(context.Background(), res.SessionID, "complete", "paid")
	require.NoError(t, err)

	tx := f.payments.get(t, res.SessionID)
	assert.Equal(t, payment.PaymentPaid, tx.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, f.orders.only(t).Status)
	assert.Equal(t, 1, f.publisher.count())
}

func TestReconcile_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	res := f.checkout(t)

	_, err := f.svc.Reconcile(context.Background(), res.SessionID, "complete", "paid")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, f.orders.only(t).Status)
}

// --- Poll path ---

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.checkout(t)

	f.gateway.reports[res.SessionID] = &payment.SessionReport{
		Status:        "complete",
		PaymentStatus: "paid",
		AmountTotal:   5870,
		Currency:      "cad",
		Metadata:      map[string]string{payment.MetaOrderID: res.OrderID},
	}

	report, err := f.svc.Status(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "complete", report.Status)
	assert.Equal(t, "paid", report.PaymentStatus)
	assert.Equal(t, int64(5870), report.AmountTotal)
	assert.Equal(t, res.OrderID, report.Metadata[payment.MetaOrderID])

	assert.Equal(t, order.StatusConfirmed, f.orders.only(t).Status)
}

func TestStatus_UnknownSession(t *testing.T) {
	f := newFixture(t)
	f.gateway.reports["cs_other"] = &payment.SessionReport{Status: "complete", PaymentStatus: "paid"}

	_, err := f.svc.Status(context.Background(), "cs_other")
	require.Error(t, err)
	assert.True(t, failure.IsNotFound(err))

	_, err = f.svc.Status(context.Background(), "cs_nowhere")
	require.Error(t, err)
	assert.True(t, failure.IsNotFound(err))
}

func TestStatus_ProviderErrors(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		f := newFixture(t)
		res := f.checkout(t)
		f.gateway.statusErr = errors.New("connection reset")

		_, err := f.svc.Status(context.Background(), res.SessionID)
		require.Error(t, err)
		assert.True(t, failure.IsUpstream(err))
		assert.Equal(t, payment.SessionInitiated, f.payments.get(t, res.SessionID).Status)
	})
	t.Run("unexpected status", func(t *testing.T) {
		f := newFixture(t)
		res := f.checkout(t)
		f.gateway.reports[res.SessionID] = &payment.SessionReport{Status: "complete", PaymentStatus: "no_payment_required"}

		_, err := f.svc.Status(context.Background(), res.SessionID)
		require.Error(t, err)
		assert.True(t, failure.IsUpstream(err))
	})
	t.Run("empty id", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Status(context.Background(), "")
		require.Error(t, err)
		assert.True(t, failure.IsValidation(err))
	})
}

// --- Webhook path ---

func TestHandleWebhook(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t)
	f.gateway.event = &payment.WebhookEvent{
		ID:            "evt_1",
		Type:          "checkout.session.completed",
		SessionID:     res.SessionID,
		Status:        "complete",
		PaymentStatus: "paid",
	}

	ack, err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "valid")
	require.NoError(t, err)
	assert.Equal(t, "success", ack.Status)
	assert.Equal(t, order.StatusConfirmed, f.orders.only(t).Status)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t)
	f.gateway.event = &payment.WebhookEvent{SessionID: res.SessionID, Status: "complete", PaymentStatus: "paid"}

	ack, err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "forged")
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrSignature)
	assert.Equal(t, "error", ack.Status)

	assert.Equal(t, payment.SessionInitiated, f.payments.get(t, res.SessionID).Status)
	assert.Equal(t, order.StatusPending, f.orders.only(t).Status)
	assert.Zero(t, f.payments.writes)
}

func TestHandleWebhook_UnknownSessionAcks(t *testing.T) {
	f := newFixture(t)
	f.gateway.event = &payment.WebhookEvent{SessionID: "cs_foreign", Status: "complete", PaymentStatus: "paid"}

	ack, err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "valid")
	require.NoError(t, err)
	assert.Equal(t, "success", ack.Status)
}

func TestHandleWebhook_UnhandledEvent(t *testing.T) {
	f := newFixture(t)
	f.gateway.webhookErr = errors.Wrap(payment.ErrUnhandledEvent, "charge.refunded")

	ack, err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "valid")
	require.NoError(t, err)
	assert.Equal(t, "success", ack.Status)
}

func TestHandleWebhook_ProcessingErrorAcksWithMessage(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t)
	f.gateway.event = &payment.WebhookEvent{SessionID: res.SessionID, Status: "weird", PaymentStatus: "paid"}

	ack, err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "valid")
	require.NoError(t, err)
	assert.Equal(t, "error", ack.Status)
	assert.NotEmpty(t, ack.Message)
}

func TestPollThenWebhookEqualsWebhookThenPoll(t *testing.T) {
	run := func(t *testing.T, pollFirst bool) (payment.State, order.Order) {
		f := newFixture(t)
		res := f.checkout(t)
		f.gateway.reports[res.SessionID] = &payment.SessionReport{Status: "complete", PaymentStatus: "paid"}
		f.gateway.event = &payment.WebhookEvent{SessionID: res.SessionID, Status: "complete", PaymentStatus: "paid"}

		poll := func() {
			_, err := f.svc.Status(context.Background(), res.SessionID)
			require.NoError(t, err)
		}
		push := func() {
			ack, err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "valid")
			require.NoError(t, err)
			require.Equal(t, "success", ack.Status)
		}
		if pollFirst {
			poll()
			push()
		} else {
			push()
			poll()
		}
		assert.Equal(t, 1, f.publisher.count())
		return f.payments.get(t, res.SessionID).State(), f.orders.only(t)
	}

	s1, o1 := run(t, true)
	s2, o2 := run(t, false)
	assert.Equal(t, s1, s2)
	assert.Equal(t, o1.Status, o2.Status)
	assert.Equal(t, o1.PaymentStatus, o2.PaymentStatus)
}
