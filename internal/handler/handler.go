// Package handler serves the storefront JSON API.
package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/beautivra/internal/api"
	"github.com/xenking/beautivra/internal/domain/catalog"
	"github.com/xenking/beautivra/internal/domain/checkout"
	"github.com/xenking/beautivra/internal/domain/failure"
	"github.com/xenking/beautivra/internal/domain/order"
)

// Version is reported by the API root.
const Version = "1.0.0"

// maxBodyBytes caps request bodies, webhook payloads included.
const maxBodyBytes = 1 << 20

// WebhookPath is the provider callback route. It is exempt from rate
// limiting.
const WebhookPath = "/api/webhook/stripe"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// Seed is the catalog loaded by POST /admin/seed.
	Seed catalog.SeedData
}

// Handler binds HTTP routes to the catalog, checkout and order services.
type Handler struct {
	catalog  *catalog.Service
	checkout *checkout.Service
	orders   *order.Ledger
	seed     catalog.SeedData
}

// New constructs a Handler.
func New(cfg Config, catalogSvc *catalog.Service, checkoutSvc *checkout.Service, orders *order.Ledger) *Handler {
	return &Handler{
		catalog:  catalogSvc,
		checkout: checkoutSvc,
		orders:   orders,
		seed:     cfg.Seed,
	}
}

// Routes returns the API router. Paths are relative to the /api mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/", h.root)

	r.Get("/products", h.listProducts)
	r.Get("/products/{key}", h.getProduct)
	r.Get("/categories", h.listCategories)
	r.Get("/reviews/{productID}", h.listReviews)
	r.Post("/reviews", h.createReview)
	r.Post("/newsletter", h.subscribe)
	r.Post("/contact", h.contact)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)
		r.Post("/seed", h.seedCatalog)
		r.Get("/newsletter", h.listSubscribers)
	})

	r.Post("/calculate-shipping", h.calculateShipping)
	r.Post("/checkout", h.createCheckout)
	r.Get("/checkout/status/{sessionID}", h.checkoutStatus)
	r.Get("/orders/{key}", h.getOrder)
	r.Post("/webhook/stripe", h.stripeWebhook)

	return r
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str("Beautivra API")
		e.FieldStart("version")
		e.Str(Version)
		e.ObjEnd()
	})
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(api.Encode(fn))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) { api.EncodeError(e, status, msg) })
}

// readBody decodes the request body with fn.
func readBody(r *http.Request, w http.ResponseWriter, fn func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return failure.Invalid("body", err.Error())
	}
	return api.Decode(data, fn)
}

// fail maps err onto an HTTP status and writes it. Unclassified errors are
// logged and hidden from the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal server error"
	} else if status == http.StatusBadGateway {
		zctx.From(r.Context()).Warn("Upstream failure", zap.Error(err))
	}
	writeError(w, status, msg)
}

func statusOf(err error) int {
	var itemErr *order.InvalidItemError
	switch {
	case errors.As(err, &itemErr):
		return http.StatusUnprocessableEntity
	case failure.IsValidation(err):
		return http.StatusBadRequest
	case failure.IsNotFound(err):
		return http.StatusNotFound
	case failure.IsConflict(err):
		return http.StatusConflict
	case failure.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
