package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/beautivra/internal/api"
	"github.com/xenking/beautivra/internal/domain/catalog"
	"github.com/xenking/beautivra/internal/domain/failure"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := productFilter(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeProducts(e, products) })
}

func productFilter(r *http.Request) (catalog.ProductFilter, error) {
	q := r.URL.Query()
	f := catalog.ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			return f, failure.Invalid("featured", "must be a boolean")
		}
		f.Featured = &featured
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Skip, err = intParam(q.Get("skip"), "skip"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, failure.Invalid(name, "must be an integer")
	}
	return n, nil
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeProduct(e, *p) })
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.Product
	if err := readBody(r, w, func(d *jx.Decoder) (err error) {
		in, err = api.DecodeProduct(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeProduct(e, *p) })
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var patch catalog.ProductPatch
	if err := readBody(r, w, func(d *jx.Decoder) (err error) {
		patch, err = api.DecodeProductPatch(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeProduct(e, *p) })
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeMessage(e, "Product deleted successfully") })
}

func (h *Handler) seedCatalog(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalog.Seed(r.Context(), h.seed)
	if err != nil {
		fail(w, r, err)
		return
	}
	msg := fmt.Sprintf("Database already has %d products", res.Existing)
	if res.Seeded {
		msg = fmt.Sprintf("Seeded %d products and %d reviews", res.Products, res.Reviews)
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeSeedResult(e, msg, res.Seeded) })
}

func (h *Handler) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeCategories(e, catalog.Categories()) })
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.catalog.ListReviews(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeReviews(e, reviews) })
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	var in catalog.Review
	if err := readBody(r, w, func(d *jx.Decoder) (err error) {
		in, err = api.DecodeReview(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	review, err := h.catalog.CreateReview(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeReview(e, *review) })
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var email string
	if err := readBody(r, w, func(d *jx.Decoder) (err error) {
		email, err = api.DecodeEmail(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	created, err := h.catalog.Subscribe(r.Context(), email)
	if err != nil {
		fail(w, r, err)
		return
	}
	msg := "Thank you for subscribing!"
	if !created {
		msg = "You're already subscribed!"
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeMessage(e, msg) })
}

func (h *Handler) listSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.catalog.ListSubscribers(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { api.EncodeSubscribers(e, subs) })
}

func (h *Handler) contact(w http.ResponseWriter, r *http.Request) {
	var in catalog.ContactMessage
	if err := readBody(r, w, func(d *jx.Decoder) (err error) {
		in, err = api.DecodeContact(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if _, err := h.catalog.SubmitContact(r.Context(), in); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		api.EncodeMessage(e, "Thank you for your message. We'll get back to you soon!")
	})
}
