package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/payment"
)

// Recover is the operator path for a session the provider knows but the
// local store may not. It polls the provider like Status. When no local
// transaction exists it rebuilds one from the order named in the session
// metadata and reconciles again.
//
// This repairs a checkout whose transaction write failed after the session
// was opened and linked to its order.
func (s *Service) Recover(ctx context.Context, sessionID string) (*payment.SessionReport, error) {
	if sessionID == "" {
		return nil, failure.Invalid("session_id", "is required")
	}

	report, err := s.getStatus(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	_, err = s.reconcile(ctx, SourceManual, sessionID, report.Status, report.PaymentStatus)
	if failure.IsNotFound(err) {
		if rerr := s.restoreTransaction(ctx, sessionID, report); rerr != nil {
			return nil, rerr
		}
		_, err = s.reconcile(ctx, SourceManual, sessionID, report.Status, report.PaymentStatus)
	}
	if err != nil {
		if failure.IsValidation(err) {
			return nil, failure.Upstream("get payment status", err)
		}
		return nil, err
	}
	return report, nil
}

func (s *Service) restoreTransaction(ctx context.Context, sessionID string, report *payment.SessionReport) error {
	if _, err := s.payments.GetBySession(ctx, sessionID); err == nil {
		return nil
	} else if !errors.Is(err, payment.ErrNotFound) {
		return errors.Wrapf(err, "get transaction for session %q", sessionID)
	}

	orderID := report.Metadata[payment.MetaOrderID]
	if orderID == "" {
		return failure.NotFound("payment session", sessionID)
	}
	o, err := s.ledger.Find(ctx, orderID)
	if err != nil {
		return err
	}

	if want := o.Total.Shift(2).Round(0).IntPart(); report.AmountTotal != 0 && report.AmountTotal != want {
		return &failure.ConflictError{
			Entity: "payment session",
			Key:    sessionID,
			Reason: fmt.Sprintf("amount %d does not match order total %s", report.AmountTotal, o.Total.StringFixed(2)),
		}
	}
	if err := s.ledger.AttachPaymentSession(ctx, o.ID, sessionID); err != nil {
		return err
	}

	if err := s.payments.Create(ctx, s.newTransaction(o, sessionID)); err != nil {
		// Lost a race with another restore.
		if _, gerr := s.payments.GetBySession(ctx, sessionID); gerr == nil {
			return nil
		}
		return errors.Wrap(err, "restore payment transaction")
	}

	zctx.From(ctx).Warn("Restored missing payment transaction",
		zap.String("session_id", sessionID),
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
	)
	return nil
}
