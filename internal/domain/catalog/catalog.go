// Package catalog holds the storefront's product catalog and the content
// customers submit around it: reviews, newsletter sign-ups and contact
// messages.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by Repository when no document matches.
	ErrNotFound = errors.New("catalog document not found")
	// ErrDuplicate is returned by Repository when a unique key already exists.
	ErrDuplicate = errors.New("catalog document already exists")
)

// Product is a sellable catalog item.
type Product struct {
	ID               string
	Name             string
	Slug             string
	Description      string
	ShortDescription string
	Price            decimal.Decimal
	CompareAtPrice   decimal.NullDecimal
	Category         string
	Images           []Image
	Variants         []Variant
	Benefits         []string
	HowToUse         string
	WhyLoveIt        []string
	InStock          bool
	Featured         bool
	MetaTitle        string
	MetaDescription  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Image is a product picture.
type Image struct {
	URL       string
	Alt       string
	IsPrimary bool
}

// Variant is a selectable product option, e.g. Stone: Jade (+5.00).
type Variant struct {
	Name          string
	Value         string
	PriceModifier decimal.Decimal
}

// Review is a customer's rating of a product.
type Review struct {
	ID               string
	ProductID        string
	AuthorName       string
	Rating           int
	Title            string
	Content          string
	VerifiedPurchase bool
	CreatedAt        time.Time
}

// Subscriber is a newsletter sign-up. Email is stored lower-cased.
type Subscriber struct {
	ID           string
	Email        string
	SubscribedAt time.Time
	IsActive     bool
}

// ContactMessage is a message left through the storefront contact form.
type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
}

// Category is a fixed product grouping.
type Category struct {
	ID   string
	Name string
	Slug string
}

var categories = []Category{
	{ID: "ice-rollers", Name: "Ice Rollers", Slug: "ice-rollers"},
	{ID: "scalp-massagers", Name: "Scalp Massagers", Slug: "scalp-massagers"},
	{ID: "gua-sha", Name: "Gua Sha Tools", Slug: "gua-sha"},
	{ID: "face-rollers", Name: "Face Rollers", Slug: "face-rollers"},
	{ID: "hair-oil-applicators", Name: "Hair Oil Applicators", Slug: "hair-oil-applicators"},
	{ID: "under-eye-tools", Name: "Under Eye Tools", Slug: "under-eye-tools"},
	{ID: "cleansing-brushes", Name: "Cleansing Brushes", Slug: "cleansing-brushes"},
	{ID: "beauty-organizers", Name: "Beauty Organizers", Slug: "beauty-organizers"},
}

// Categories returns the catalog's categories in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ProductFilter narrows a product listing. Zero values mean "any".
type ProductFilter struct {
	Category string
	Featured *bool
	// Search matches name or description, case-insensitively.
	Search string
	Skip   int
	Limit  int
}

// ProductPatch carries the fields of a partial product update. Nil fields are
// left untouched.
type ProductPatch struct {
	Name             *string
	Slug             *string
	Description      *string
	ShortDescription *string
	Price            *decimal.Decimal
	CompareAtPrice   *decimal.Decimal
	Category         *string
	Images           *[]Image
	Variants         *[]Variant
	Benefits         *[]string
	HowToUse         *string
	WhyLoveIt        *[]string
	InStock          *bool
	Featured         *bool
	MetaTitle        *string
	MetaDescription  *string
}

// Repository persists catalog documents.
type Repository interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	// UpdateProduct applies patch and sets updated_at to at. It reports
	// whether a product with id existed.
	UpdateProduct(ctx context.Context, id string, patch ProductPatch, at time.Time) (bool, error)
	DeleteProduct(ctx context.Context, id string) (bool, error)
	CountProducts(ctx context.Context) (int64, error)

	ListReviews(ctx context.Context, productID string, limit int) ([]Review, error)
	CreateReview(ctx context.Context, r *Review) error

	FindSubscriber(ctx context.Context, email string) (*Subscriber, error)
	CreateSubscriber(ctx context.Context, s *Subscriber) error
	ListSubscribers(ctx context.Context, limit int) ([]Subscriber, error)

	CreateContactMessage(ctx context.Context, m *ContactMessage) error
}

// ProductLoader fetches a product on a cache miss.
type ProductLoader func(ctx context.Context) (*Product, error)

// ProductCache is a read-through cache of single product lookups keyed by id
// or slug.
type ProductCache interface {
	Get(ctx context.Context, key string, load ProductLoader) (*Product, error)
	Invalidate(ctx context.Context, keys ...string)
}

// NopCache always calls the loader.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, _ string, load ProductLoader) (*Product, error) {
	return load(ctx)
}

func (NopCache) Invalidate(context.Context, ...string) {}
