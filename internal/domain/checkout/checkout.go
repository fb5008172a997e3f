// Package checkout turns carts into payable orders and reconciles payment
// state reported by the provider.
package checkout

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/order"
	"github.com/xenking/beautivra/internal/domain/payment"
	"github.com/xenking/beautivra/internal/domain/pricing"
)

// Config holds non-dependency settings for the Service.
type Config struct {
	// Currency is the ISO 4217 code used for every session (e.g. "cad").
	Currency string
	// ProviderTimeout bounds each call to the payment provider.
	ProviderTimeout time.Duration
	// Publisher receives order.paid events. Optional.
	Publisher Publisher
	// MeterProvider records reconciliation metrics. Optional.
	MeterProvider metric.MeterProvider
}

// Service orchestrates checkout and payment reconciliation.
type Service struct {
	ledger    *order.Ledger
	payments  payment.Repository
	gateway   payment.Gateway
	publisher Publisher
	currency  string
	timeout   time.Duration
	now       func() time.Time

	reconciled metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(
	cfg Config,
	ledger *order.Ledger,
	payments payment.Repository,
	gateway payment.Gateway,
) (*Service, error) {
	if cfg.Currency == "" {
		cfg.Currency = "cad"
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.Publisher == nil {
		cfg.Publisher = NopPublisher{}
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = noop.NewMeterProvider()
	}

	reconciled, err := cfg.MeterProvider.Meter("github.com/xenking/beautivra/internal/domain/checkout").
		Int64Counter("checkout.reconciliations",
			metric.WithDescription("Payment status reports merged into local state"),
		)
	if err != nil {
		return nil, errors.Wrap(err, "create reconciliation counter")
	}

	return &Service{
		ledger:     ledger,
		payments:   payments,
		gateway:    gateway,
		publisher:  cfg.Publisher,
		currency:   strings.ToLower(cfg.Currency),
		timeout:    cfg.ProviderTimeout,
		now:        time.Now,
		reconciled: reconciled,
	}, nil
}

// Quote prices a cart exactly as Checkout would.
func (s *Service) Quote(items []order.CartItem) (pricing.Quote, error) {
	return s.ledger.Quote(items)
}

// Request is a client checkout submission. Any totals the client computed are
// deliberately not part of it.
type Request struct {
	Items           []order.CartItem
	ShippingAddress order.ShippingAddress
	// OriginURL is the storefront origin the provider redirects back to.
	OriginURL string
}

// Result identifies the opened payment session and its order.
type Result struct {
	RedirectURL string
	SessionID   string
	OrderID     string
	OrderNumber string
}

// Checkout creates a pending order, opens a hosted payment session for its
// server-computed total and records the initiated transaction.
//
// When the provider call fails the order stays pending without a session and
// an *failure.UpstreamError is returned. Nothing is rolled back. When only the
// transaction write fails the order keeps its session; Recover repairs that.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	origin, err := parseOrigin(req.OriginURL)
	if err != nil {
		return nil, err
	}

	o, err := s.ledger.Create(ctx, req.Items, req.ShippingAddress)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
	)

	sess, err := s.createSession(ctx, payment.SessionRequest{
		Amount:      o.Total,
		Currency:    s.currency,
		Description: "Order " + o.Number,
		SuccessURL:  origin + "/order-confirmation?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   origin + "/cart",
		Metadata:    orderMetadata(o),
	})
	if err != nil {
		lg.Warn("Payment session not opened, order left pending", zap.Error(err))
		return nil, err
	}

	if err := s.ledger.AttachPaymentSession(ctx, o.ID, sess.ID); err != nil {
		return nil, errors.Wrap(err, "attach payment session")
	}

	tx := s.newTransaction(o, sess.ID)
	if err := s.payments.Create(ctx, tx); err != nil {
		lg.Error("Payment transaction not recorded, session needs recovery",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "create payment transaction")
	}

	lg.Info("Checkout session opened", zap.String("session_id", sess.ID))

	return &Result{
		RedirectURL: sess.URL,
		SessionID:   sess.ID,
		OrderID:     o.ID,
		OrderNumber: o.Number,
	}, nil
}

// orderMetadata is attached to the provider session and copied onto the
// local transaction. It is what lets Recover find the order again.
func orderMetadata(o *order.Order) map[string]string {
	return map[string]string{
		payment.MetaOrderID:       o.ID,
		payment.MetaOrderNumber:   o.Number,
		payment.MetaCustomerEmail: o.ShippingAddress.Email,
	}
}

// newTransaction is the initiated, unpaid record of sessionID for o.
func (s *Service) newTransaction(o *order.Order, sessionID string) *payment.Transaction {
	now := s.now().UTC()
	return &payment.Transaction{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		OrderID:       o.ID,
		Amount:        o.Total,
		Currency:      s.currency,
		Status:        payment.SessionInitiated,
		PaymentStatus: payment.PaymentPending,
		Metadata:      orderMetadata(o),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *Service) createSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sess, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		return nil, asUpstream("create payment session", err)
	}
	if sess.ID == "" || sess.URL == "" {
		return nil, failure.Upstream("create payment session", errors.New("provider returned an incomplete session"))
	}
	return sess, nil
}

func asUpstream(op string, err error) error {
	if failure.IsUpstream(err) {
		return err
	}
	return failure.Upstream(op, err)
}

func parseOrigin(raw string) (string, error) {
	origin := strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", failure.Invalid("origin_url", "must be an absolute http(s) URL")
	}
	return origin, nil
}
