// Package stripe adapts Stripe Checkout to payment.Gateway.
package stripe

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/payment"
)

// Webhook event types carrying a session update.
const (
	EventSessionCompleted      = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventSessionExpired        = "checkout.session.expired"
)

// Config configures the Stripe gateway.
type Config struct {
	APIKey        string
	WebhookSecret string
	// BaseURL overrides the API endpoint, e.g. for stripe-mock.
	BaseURL string

	// Breaker trips after MaxFailures consecutive failures and stays open
	// for OpenTimeout.
	MaxFailures uint32
	OpenTimeout time.Duration
}

var _ payment.Gateway = (*Gateway)(nil)

// Gateway opens and inspects hosted Checkout sessions.
type Gateway struct {
	api     *client.API
	secret  string
	breaker *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
}

// NewGateway creates a Stripe-backed payment gateway.
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("stripe api key is required")
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	var backends *stripe.Backends
	if cfg.BaseURL != "" {
		backends = &stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL:               stripe.String(cfg.BaseURL),
				MaxNetworkRetries: stripe.Int64(0),
			}),
		}
	}

	maxFailures := cfg.MaxFailures
	return &Gateway{
		api:    client.New(cfg.APIKey, backends),
		secret: cfg.WebhookSecret,
		breaker: gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
			Name:    "stripe",
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= maxFailures
			},
			// Client errors say nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil || isClientError(err)
			},
		}),
	}, nil
}

// CreateSession opens a hosted payment session with a single line item for
// the whole order total.
func (g *Gateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	amount, err := MinorUnits(req.Amount)
	if err != nil {
		return nil, failure.Invalid("amount", err.Error())
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		Metadata: req.Metadata,
	}
	params.Context = ctx

	sess, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return nil, g.mapError("create checkout session", "", err)
	}
	return &payment.Session{ID: sess.ID, URL: sess.URL}, nil
}

// GetStatus retrieves the session as the provider currently sees it.
func (g *Gateway) GetStatus(ctx context.Context, sessionID string) (*payment.SessionReport, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return g.api.CheckoutSessions.Get(sessionID, params)
	})
	if err != nil {
		return nil, g.mapError("get checkout session", sessionID, err)
	}

	return &payment.SessionReport{
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		Metadata:      sess.Metadata,
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the session
// update from checkout.session.* events.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if g.secret == "" {
		return nil, errors.Wrap(failure.ErrSignature, "webhook secret is not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrapf(failure.ErrSignature, "verify webhook: %v", err)
	}

	switch string(event.Type) {
	case EventSessionCompleted, EventAsyncPaymentSucceeded, EventAsyncPaymentFailed, EventSessionExpired:
	default:
		return nil, errors.Wrapf(payment.ErrUnhandledEvent, "event type %q", event.Type)
	}

	var sess stripe.CheckoutSession
	if event.Data == nil {
		return nil, errors.Errorf("event %s has no data", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, errors.Wrapf(err, "decode session of event %s", event.ID)
	}
	if sess.ID == "" {
		return nil, errors.Errorf("event %s carries no session id", event.ID)
	}

	return &payment.WebhookEvent{
		ID:            event.ID,
		Type:          string(event.Type),
		SessionID:     sess.ID,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
	}, nil
}

func (g *Gateway) mapError(op, sessionID string, err error) error {
	var serr *stripe.Error
	switch {
	case errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound && sessionID != "":
		return failure.NotFound("payment session", sessionID)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return failure.Upstream(op, errors.Wrap(err, "stripe circuit breaker"))
	default:
		return failure.Upstream(op, err)
	}
}

func isClientError(err error) bool {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.HTTPStatusCode >= 400 && serr.HTTPStatusCode < 500 &&
		serr.HTTPStatusCode != http.StatusTooManyRequests
}

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// MinorUnits converts a major-unit amount into integer cents, rounding half
// away from zero.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, errors.New("must be greater than 0")
	}
	minor := amount.Mul(hundred).Round(0)
	if minor.GreaterThan(maxMinor) {
		return 0, errors.Errorf("%s exceeds the largest chargeable amount", amount)
	}
	return minor.IntPart(), nil
}
