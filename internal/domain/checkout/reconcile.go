package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/payment"
)

// Source names the channel a payment status report arrived through.
type Source string

const (
	SourcePoll    Source = "poll"
	SourceWebhook Source = "webhook"
	SourceManual  Source = "manual"
)

// maxSwapAttempts bounds compare-and-swap retries against concurrent
// reconciliations of the same session.
const maxSwapAttempts = 3

// Reconcile merges a provider status report for sessionID into the local
// transaction and, once paid, confirms the owning order.
//
// Reconcile may be called any number of times, in any order, by any channel:
// the same set of reports always converges to the same final state.
func (s *Service) Reconcile(ctx context.Context, sessionID, status, paymentStatus string) (*payment.Transaction, error) {
	return s.reconcile(ctx, SourceManual, sessionID, status, paymentStatus)
}

func (s *Service) reconcile(ctx context.Context, src Source, sessionID, status, paymentStatus string) (_ *payment.Transaction, rerr error) {
	defer func() { s.record(ctx, src, rerr) }()

	report, err := payment.ParseState(status, paymentStatus)
	if err != nil {
		return nil, err
	}

	tx, err := s.advance(ctx, sessionID, report)
	if err != nil {
		return nil, err
	}
	if tx.PaymentStatus != payment.PaymentPaid {
		return tx, nil
	}

	// Runs even when the transaction was already paid so that an order left
	// behind by an interrupted earlier call still gets confirmed.
	changed, err := s.ledger.MarkPaid(ctx, tx.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "confirm order")
	}
	if changed {
		zctx.From(ctx).Info("Order paid",
			zap.String("order_id", tx.OrderID),
			zap.String("session_id", tx.SessionID),
			zap.String("source", string(src)),
		)
		s.publishPaid(ctx, tx)
	}
	return tx, nil
}

// advance applies report to the stored transaction with compare-and-swap,
// re-reading on concurrent modification. Unchanged state is not written.
func (s *Service) advance(ctx context.Context, sessionID string, report payment.State) (*payment.Transaction, error) {
	for range maxSwapAttempts {
		tx, err := s.payments.GetBySession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, payment.ErrNotFound) {
				return nil, failure.NotFound("payment session", sessionID)
			}
			return nil, errors.Wrapf(err, "get transaction for session %q", sessionID)
		}

		prev := tx.State()
		next := prev.Advance(report)
		if next == prev {
			return tx, nil
		}

		at := s.now().UTC()
		swapped, err := s.payments.CompareAndSwap(ctx, sessionID, prev, next, at)
		if err != nil {
			return nil, errors.Wrapf(err, "update transaction for session %q", sessionID)
		}
		if swapped {
			tx.Status = next.Status
			tx.PaymentStatus = next.PaymentStatus
			tx.UpdatedAt = at
			return tx, nil
		}
	}
	return nil, errors.Errorf("session %q modified concurrently %d times", sessionID, maxSwapAttempts)
}

func (s *Service) publishPaid(ctx context.Context, tx *payment.Transaction) {
	e := OrderPaid{
		OrderID:       tx.OrderID,
		OrderNumber:   tx.Metadata[payment.MetaOrderNumber],
		SessionID:     tx.SessionID,
		CustomerEmail: tx.Metadata[payment.MetaCustomerEmail],
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		PaidAt:        tx.UpdatedAt,
	}
	if err := s.publisher.PublishOrderPaid(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order.paid failed",
			zap.String("order_id", tx.OrderID),
			zap.Error(err),
		)
	}
}

func (s *Service) record(ctx context.Context, src Source, err error) {
	outcome := "applied"
	switch {
	case err == nil:
	case failure.IsNotFound(err):
		outcome = "unknown_session"
	case failure.IsValidation(err):
		outcome = "invalid_status"
	default:
		outcome = "error"
	}
	s.reconciled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", string(src)),
		attribute.String("outcome", outcome),
	))
}

// Status is the poll path: it asks the provider for the current state of
// sessionID, reconciles it and returns the provider's report. A session with
// no local transaction yields a *failure.NotFoundError.
func (s *Service) Status(ctx context.Context, sessionID string) (*payment.SessionReport, error) {
	if sessionID == "" {
		return nil, failure.Invalid("session_id", "is required")
	}

	report, err := s.getStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.reconcile(ctx, SourcePoll, sessionID, report.Status, report.PaymentStatus); err != nil {
		if failure.IsValidation(err) {
			// The provider, not the caller, sent something unexpected.
			return nil, failure.Upstream("get payment status", err)
		}
		return nil, err
	}
	return report, nil
}

func (s *Service) getStatus(ctx context.Context, sessionID string) (*payment.SessionReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.gateway.GetStatus(ctx, sessionID)
	if err != nil {
		if failure.IsNotFound(err) {
			return nil, err
		}
		return nil, asUpstream("get payment status", err)
	}
	return report, nil
}

// WebhookAck is the body acknowledged to the provider.
type WebhookAck struct {
	Status  string
	Message string
}

func ackSuccess() WebhookAck { return WebhookAck{Status: "success"} }

// HandleWebhook is the push path. Only a signature failure is returned as an
// error; every other problem is logged and acknowledged so the provider does
// not retry forever.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookAck, error) {
	lg := zctx.From(ctx)

	event, err := s.gateway.ParseWebhook(payload, signature)
	switch {
	case errors.Is(err, failure.ErrSignature):
		lg.Warn("Rejected webhook", zap.Error(err))
		return WebhookAck{Status: "error", Message: "invalid signature"}, err
	case errors.Is(err, payment.ErrUnhandledEvent):
		lg.Debug("Ignored webhook event", zap.Error(err))
		return ackSuccess(), nil
	case err != nil:
		lg.Error("Unreadable webhook payload", zap.Error(err))
		return WebhookAck{Status: "error", Message: err.Error()}, nil
	}

	lg = lg.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("session_id", event.SessionID),
	)

	if _, err := s.reconcile(ctx, SourceWebhook, event.SessionID, event.Status, event.PaymentStatus); err != nil {
		if failure.IsNotFound(err) {
			lg.Warn("Dropped webhook for unknown session")
			return ackSuccess(), nil
		}
		lg.Error("Webhook reconciliation failed", zap.Error(err))
		return WebhookAck{Status: "error", Message: err.Error()}, nil
	}
	return ackSuccess(), nil
}
