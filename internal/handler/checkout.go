package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/beautivra/internal/api"
	"github.com/xenking/beautivra/internal/domain/checkout"
	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/order"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "Stripe-Signature"

func (h *Handler) calculateShipping(w http.ResponseWriter, r *http.Request) {
	var items []order.CartItem
	if err := readBody(r, w, func(d *jx.Decoder) (err error) {
		items, err = api.DecodeCart(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.checkout.Quote(items)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeQuote(e, q) })
}

func (h *Handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := readBody(r, w, func(d *jx.Decoder) (err error) {
		req, err = api.DecodeCheckoutRequest(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.checkout.Checkout(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeCheckoutResult(e, *res) })
}

func (h *Handler) checkoutStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.checkout.Status(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeSessionReport(e, *report) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Find(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeOrder(e, *o) })
}

// stripeWebhook answers 200 for anything authentic so the provider stops
// retrying, and 400 for forged or tampered payloads.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		fail(w, r, failure.Invalid("body", err.Error()))
		return
	}

	ack, err := h.checkout.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	status := http.StatusOK
	if err != nil {
		if !errors.Is(err, failure.ErrSignature) {
			fail(w, r, err)
			return
		}
		status = http.StatusBadRequest
	}
	writeJSON(w, status, func(e *jx.Encoder) { api.EncodeWebhookAck(e, ack) })
}
