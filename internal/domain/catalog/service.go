package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/beautivra/internal/domain/failure"
)

// Listing bounds.
const (
	DefaultLimit   = 50
	MaxLimit       = 100
	MaxReviews     = 100
	MaxSubscribers = 1000
	MinRating      = 1
	MaxRating      = 5
)

const (
	productEntity      = "product"
	invalidLimitReason = "must be between 1 and 100"
)

// Service implements catalog use cases on top of a Repository.
type Service struct {
	repo  Repository
	cache ProductCache
	now   func() time.Time
}

// NewService creates a catalog Service. A nil cache disables caching.
func NewService(repo Repository, cache ProductCache) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		repo:  repo,
		cache: cache,
		now:   time.Now,
	}
}

// ListProducts returns products matching filter. A zero Limit means
// DefaultLimit.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxLimit {
		return nil, failure.Invalid("limit", invalidLimitReason)
	}
	if filter.Skip < 0 {
		return nil, failure.Invalid("skip", "must not be negative")
	}
	filter.Search = strings.TrimSpace(filter.Search)

	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// GetProduct looks a product up by id, falling back to slug.
func (s *Service) GetProduct(ctx context.Context, key string) (*Product, error) {
	if strings.TrimSpace(key) == "" {
		return nil, failure.NotFound(productEntity, key)
	}
	return s.cache.Get(ctx, key, func(ctx context.Context) (*Product, error) {
		return s.lookup(ctx, key)
	})
}

func (s *Service) lookup(ctx context.Context, key string) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, key)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrapf(err, "get product %q", key)
	}

	p, err = s.repo.GetProductBySlug(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, failure.NotFound(productEntity, key)
	case err != nil:
		return nil, errors.Wrapf(err, "get product by slug %q", key)
	}
	return p, nil
}

// CreateProduct validates p, assigns its id and timestamps and stores it.
func (s *Service) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.repo.CreateProduct(ctx, &p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &failure.ConflictError{Entity: productEntity, Key: p.Slug, Reason: "slug already in use"}
		}
		return nil, errors.Wrap(err, "create product")
	}
	return &p, nil
}

// UpdateProduct applies the supplied fields of patch to the product with id.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*Product, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	existing, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}

	matched, err := s.repo.UpdateProduct(ctx, id, patch, s.now().UTC())
	switch {
	case errors.Is(err, ErrDuplicate):
		return nil, &failure.ConflictError{Entity: productEntity, Key: *patch.Slug, Reason: "slug already in use"}
	case err != nil:
		return nil, errors.Wrapf(err, "update product %q", id)
	case !matched:
		return nil, failure.NotFound(productEntity, id)
	}

	keys := []string{id, existing.Slug}
	if patch.Slug != nil {
		keys = append(keys, *patch.Slug)
	}
	s.cache.Invalidate(ctx, keys...)

	return s.byID(ctx, id)
}

// DeleteProduct removes the product with id.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	existing, err := s.byID(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %q", id)
	}
	if !deleted {
		return failure.NotFound(productEntity, id)
	}
	s.cache.Invalidate(ctx, id, existing.Slug)
	return nil
}

func (s *Service) byID(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, failure.NotFound(productEntity, id)
	case err != nil:
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return p, nil
}

// ListReviews returns up to MaxReviews reviews of a product.
func (s *Service) ListReviews(ctx context.Context, productID string) ([]Review, error) {
	reviews, err := s.repo.ListReviews(ctx, productID, MaxReviews)
	if err != nil {
		return nil, errors.Wrapf(err, "list reviews of %q", productID)
	}
	return reviews, nil
}

// CreateReview stores a customer review.
func (s *Service) CreateReview(ctx context.Context, r Review) (*Review, error) {
	if err := failure.First(
		failure.Required("product_id", r.ProductID),
		failure.Required("author_name", r.AuthorName),
		failure.Required("title", r.Title),
		failure.Required("content", r.Content),
	); err != nil {
		return nil, err
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return nil, failure.Invalid("rating", "must be between 1 and 5")
	}

	r.ID = uuid.New().String()
	r.CreatedAt = s.now().UTC()
	if err := s.repo.CreateReview(ctx, &r); err != nil {
		return nil, errors.Wrap(err, "create review")
	}
	return &r, nil
}

// Subscribe signs email up for the newsletter. It reports false when the
// address was already subscribed, which is not an error.
func (s *Service) Subscribe(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := failure.Email("email", email); err != nil {
		return false, err
	}

	_, err := s.repo.FindSubscriber(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNotFound):
		return false, errors.Wrap(err, "find subscriber")
	}

	sub := &Subscriber{
		ID:           uuid.New().String(),
		Email:        email,
		SubscribedAt: s.now().UTC(),
		IsActive:     true,
	}
	if err := s.repo.CreateSubscriber(ctx, sub); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent sign-up.
			return false, nil
		}
		return false, errors.Wrap(err, "create subscriber")
	}

	zctx.From(ctx).Info("Newsletter subscription", zap.String("subscriber_id", sub.ID))
	return true, nil
}

// ListSubscribers returns up to MaxSubscribers newsletter subscribers.
func (s *Service) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	subs, err := s.repo.ListSubscribers(ctx, MaxSubscribers)
	if err != nil {
		return nil, errors.Wrap(err, "list subscribers")
	}
	return subs, nil
}

// SubmitContact stores a contact form message.
func (s *Service) SubmitContact(ctx context.Context, m ContactMessage) (*ContactMessage, error) {
	m.Email = strings.TrimSpace(m.Email)
	if err := failure.First(
		failure.Required("name", m.Name),
		failure.Email("email", m.Email),
		failure.Required("subject", m.Subject),
		failure.Required("message", m.Message),
	); err != nil {
		return nil, err
	}

	m.ID = uuid.New().String()
	m.CreatedAt = s.now().UTC()
	if err := s.repo.CreateContactMessage(ctx, &m); err != nil {
		return nil, errors.Wrap(err, "create contact message")
	}
	return &m, nil
}

func validateProduct(p Product) error {
	if err := failure.First(
		failure.Required("name", p.Name),
		failure.Required("slug", p.Slug),
		failure.Required("description", p.Description),
		failure.Required("short_description", p.ShortDescription),
		failure.Required("category", p.Category),
	); err != nil {
		return err
	}
	if !p.Price.IsPositive() {
		return failure.Invalid("price", "must be greater than 0")
	}
	if p.CompareAtPrice.Valid && p.CompareAtPrice.Decimal.IsNegative() {
		return failure.Invalid("compare_at_price", "must not be negative")
	}
	return nil
}

func validatePatch(p ProductPatch) error {
	for field, v := range map[string]*string{
		"name":              p.Name,
		"slug":              p.Slug,
		"description":       p.Description,
		"short_description": p.ShortDescription,
		"category":          p.Category,
	} {
		if v != nil {
			if err := failure.Required(field, *v); err != nil {
				return err
			}
		}
	}
	if p.Price != nil && !p.Price.IsPositive() {
		return failure.Invalid("price", "must be greater than 0")
	}
	if p.CompareAtPrice != nil && p.CompareAtPrice.IsNegative() {
		return failure.Invalid("compare_at_price", "must not be negative")
	}
	return nil
}
