package mongodb

import (
	"context"
	"regexp"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/beautivra/internal/domain/catalog"
)

// Collection names.
const (
	Products        = "products"
	Reviews         = "reviews"
	Newsletter      = "newsletter"
	ContactMessages = "contact_messages"
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository on a Store.
type CatalogRepository struct {
	store *Store
}

// NewCatalogRepository returns a CatalogRepository backed by store.
func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

// EnsureIndexes creates the unique and lookup indexes the repository relies on.
func (r *CatalogRepository) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	for coll, models := range map[string][]mongo.IndexModel{
		Products: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "category", Value: 1}}},
		},
		Reviews: {
			{Keys: bson.D{{Key: "product_id", Value: 1}}},
		},
		Newsletter: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
	} {
		if err := r.store.EnsureIndexes(ctx, coll, models); err != nil {
			return err
		}
	}
	return nil
}

// Documents keep timestamps as RFC 3339 strings, the format the catalog has
// always been stored in.

type imageDoc struct {
	URL       string `bson:"url"`
	Alt       string `bson:"alt"`
	IsPrimary bool   `bson:"is_primary"`
}

type variantDoc struct {
	Name          string               `bson:"name"`
	Value         string               `bson:"value"`
	PriceModifier primitive.Decimal128 `bson:"price_modifier"`
}

type productDoc struct {
	ID               string                `bson:"id"`
	Name             string                `bson:"name"`
	Slug             string                `bson:"slug"`
	Description      string                `bson:"description"`
	ShortDescription string                `bson:"short_description"`
	Price            primitive.Decimal128  `bson:"price"`
	CompareAtPrice   *primitive.Decimal128 `bson:"compare_at_price"`
	Category         string                `bson:"category"`
	Images           []imageDoc            `bson:"images"`
	Variants         []variantDoc          `bson:"variants"`
	Benefits         []string              `bson:"benefits"`
	HowToUse         string                `bson:"how_to_use"`
	WhyLoveIt        []string              `bson:"why_love_it"`
	InStock          bool                  `bson:"in_stock"`
	Featured         bool                  `bson:"featured"`
	MetaTitle        *string               `bson:"meta_title"`
	MetaDescription  *string               `bson:"meta_description"`
	CreatedAt        string                `bson:"created_at"`
	UpdatedAt        string                `bson:"updated_at"`
}

type reviewDoc struct {
	ID               string `bson:"id"`
	ProductID        string `bson:"product_id"`
	AuthorName       string `bson:"author_name"`
	Rating           int    `bson:"rating"`
	Title            string `bson:"title"`
	Content          string `bson:"content"`
	VerifiedPurchase bool   `bson:"verified_purchase"`
	CreatedAt        string `bson:"created_at"`
}

type subscriberDoc struct {
	ID           string `bson:"id"`
	Email        string `bson:"email"`
	SubscribedAt string `bson:"subscribed_at"`
	IsActive     bool   `bson:"is_active"`
}

type contactDoc struct {
	ID        string `bson:"id"`
	Name      string `bson:"name"`
	Email     string `bson:"email"`
	Subject   string `bson:"subject"`
	Message   string `bson:"message"`
	CreatedAt string `bson:"created_at"`
}

func (r *CatalogRepository) ListProducts(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Featured != nil {
		filter["featured"] = *f.Featured
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}

	var docs []productDoc
	if err := r.store.Find(ctx, Products, filter, Page{Skip: int64(f.Skip), Limit: int64(f.Limit)}, &docs); err != nil {
		return nil, err
	}

	out := make([]catalog.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := doc.product()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	return r.findProduct(ctx, bson.M{"id": id})
}

func (r *CatalogRepository) GetProductBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	return r.findProduct(ctx, bson.M{"slug": slug})
}

func (r *CatalogRepository) findProduct(ctx context.Context, filter bson.M) (*catalog.Product, error) {
	var doc productDoc
	if err := r.store.FindOne(ctx, Products, filter, &doc); err != nil {
		return nil, mapErr(err)
	}
	p, err := doc.product()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *catalog.Product) error {
	doc, err := newProductDoc(p)
	if err != nil {
		return err
	}
	return mapErr(r.store.InsertOne(ctx, Products, doc))
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, id string, patch catalog.ProductPatch, at time.Time) (bool, error) {
	set, err := patchSet(patch)
	if err != nil {
		return false, err
	}
	set["updated_at"] = formatTime(at)

	matched, err := r.store.UpdateOne(ctx, Products, bson.M{"id": id}, bson.M{"$set": set})
	return matched, mapErr(err)
}

func (r *CatalogRepository) DeleteProduct(ctx context.Context, id string) (bool, error) {
	return r.store.DeleteOne(ctx, Products, bson.M{"id": id})
}

func (r *CatalogRepository) CountProducts(ctx context.Context) (int64, error) {
	return r.store.Count(ctx, Products, bson.M{})
}

func (r *CatalogRepository) ListReviews(ctx context.Context, productID string, limit int) ([]catalog.Review, error) {
	var docs []reviewDoc
	if err := r.store.Find(ctx, Reviews, bson.M{"product_id": productID}, Page{Limit: int64(limit)}, &docs); err != nil {
		return nil, err
	}
	out := make([]catalog.Review, 0, len(docs))
	for _, d := range docs {
		created, err := parseTime(d.CreatedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "review %q", d.ID)
		}
		out = append(out, catalog.Review{
			ID:               d.ID,
			ProductID:        d.ProductID,
			AuthorName:       d.AuthorName,
			Rating:           d.Rating,
			Title:            d.Title,
			Content:          d.Content,
			VerifiedPurchase: d.VerifiedPurchase,
			CreatedAt:        created,
		})
	}
	return out, nil
}

func (r *CatalogRepository) CreateReview(ctx context.Context, rv *catalog.Review) error {
	return mapErr(r.store.InsertOne(ctx, Reviews, reviewDoc{
		ID:               rv.ID,
		ProductID:        rv.ProductID,
		AuthorName:       rv.AuthorName,
		Rating:           rv.Rating,
		Title:            rv.Title,
		Content:          rv.Content,
		VerifiedPurchase: rv.VerifiedPurchase,
		CreatedAt:        formatTime(rv.CreatedAt),
	}))
}

func (r *CatalogRepository) FindSubscriber(ctx context.Context, email string) (*catalog.Subscriber, error) {
	var doc subscriberDoc
	if err := r.store.FindOne(ctx, Newsletter, bson.M{"email": email}, &doc); err != nil {
		return nil, mapErr(err)
	}
	return doc.subscriber()
}

func (r *CatalogRepository) CreateSubscriber(ctx context.Context, s *catalog.Subscriber) error {
	return mapErr(r.store.InsertOne(ctx, Newsletter, subscriberDoc{
		ID:           s.ID,
		Email:        s.Email,
		SubscribedAt: formatTime(s.SubscribedAt),
		IsActive:     s.IsActive,
	}))
}

func (r *CatalogRepository) ListSubscribers(ctx context.Context, limit int) ([]catalog.Subscriber, error) {
	var docs []subscriberDoc
	if err := r.store.Find(ctx, Newsletter, bson.M{}, Page{Limit: int64(limit)}, &docs); err != nil {
		return nil, err
	}
	out := make([]catalog.Subscriber, 0, len(docs))
	for _, d := range docs {
		s, err := d.subscriber()
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *CatalogRepository) CreateContactMessage(ctx context.Context, m *catalog.ContactMessage) error {
	return mapErr(r.store.InsertOne(ctx, ContactMessages, contactDoc{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Message:   m.Message,
		CreatedAt: formatTime(m.CreatedAt),
	}))
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNoDocument):
		return catalog.ErrNotFound
	case errors.Is(err, ErrDuplicateKey):
		return catalog.ErrDuplicate
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}
	return t.UTC(), nil
}

// toDecimal128 stores amounts with cent scale, so 12.5 is kept as 12.50.
func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.StringFixed(2))
	if err != nil {
		return primitive.Decimal128{}, errors.Wrapf(err, "encode amount %s", d)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "decode amount %s", v)
	}
	return d, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newProductDoc(p *catalog.Product) (*productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return nil, err
	}
	doc := &productDoc{
		ID:               p.ID,
		Name:             p.Name,
		Slug:             p.Slug,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		Price:            price,
		Category:         p.Category,
		Benefits:         nonNil(p.Benefits),
		HowToUse:         p.HowToUse,
		WhyLoveIt:        nonNil(p.WhyLoveIt),
		InStock:          p.InStock,
		Featured:         p.Featured,
		MetaTitle:        optString(p.MetaTitle),
		MetaDescription:  optString(p.MetaDescription),
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
	if p.CompareAtPrice.Valid {
		v, err := toDecimal128(p.CompareAtPrice.Decimal)
		if err != nil {
			return nil, err
		}
		doc.CompareAtPrice = &v
	}
	doc.Images = imageDocs(p.Images)
	if doc.Variants, err = variantDocs(p.Variants); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *productDoc) product() (catalog.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return catalog.Product{}, err
	}
	p := catalog.Product{
		ID:               d.ID,
		Name:             d.Name,
		Slug:             d.Slug,
		Description:      d.Description,
		ShortDescription: d.ShortDescription,
		Price:            price,
		Category:         d.Category,
		Benefits:         nonNil(d.Benefits),
		HowToUse:         d.HowToUse,
		WhyLoveIt:        nonNil(d.WhyLoveIt),
		InStock:          d.InStock,
		Featured:         d.Featured,
		MetaTitle:        derefString(d.MetaTitle),
		MetaDescription:  derefString(d.MetaDescription),
		Images:           make([]catalog.Image, 0, len(d.Images)),
		Variants:         make([]catalog.Variant, 0, len(d.Variants)),
	}
	if d.CompareAtPrice != nil {
		v, err := fromDecimal128(*d.CompareAtPrice)
		if err != nil {
			return catalog.Product{}, err
		}
		p.CompareAtPrice = decimal.NewNullDecimal(v)
	}
	for _, img := range d.Images {
		p.Images = append(p.Images, catalog.Image{URL: img.URL, Alt: img.Alt, IsPrimary: img.IsPrimary})
	}
	for _, v := range d.Variants {
		mod, err := fromDecimal128(v.PriceModifier)
		if err != nil {
			return catalog.Product{}, err
		}
		p.Variants = append(p.Variants, catalog.Variant{Name: v.Name, Value: v.Value, PriceModifier: mod})
	}
	if p.CreatedAt, err = parseTime(d.CreatedAt); err != nil {
		return catalog.Product{}, err
	}
	if p.UpdatedAt, err = parseTime(d.UpdatedAt); err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

func (d *subscriberDoc) subscriber() (*catalog.Subscriber, error) {
	at, err := parseTime(d.SubscribedAt)
	if err != nil {
		return nil, err
	}
	return &catalog.Subscriber{ID: d.ID, Email: d.Email, SubscribedAt: at, IsActive: d.IsActive}, nil
}

func imageDocs(images []catalog.Image) []imageDoc {
	out := make([]imageDoc, 0, len(images))
	for _, img := range images {
		out = append(out, imageDoc{URL: img.URL, Alt: img.Alt, IsPrimary: img.IsPrimary})
	}
	return out
}

func variantDocs(variants []catalog.Variant) ([]variantDoc, error) {
	out := make([]variantDoc, 0, len(variants))
	for _, v := range variants {
		mod, err := toDecimal128(v.PriceModifier)
		if err != nil {
			return nil, err
		}
		out = append(out, variantDoc{Name: v.Name, Value: v.Value, PriceModifier: mod})
	}
	return out, nil
}

func patchSet(p catalog.ProductPatch) (bson.M, error) {
	set := bson.M{}
	for key, v := range map[string]*string{
		"name":              p.Name,
		"slug":              p.Slug,
		"description":       p.Description,
		"short_description": p.ShortDescription,
		"category":          p.Category,
		"how_to_use":        p.HowToUse,
		"meta_title":        p.MetaTitle,
		"meta_description":  p.MetaDescription,
	} {
		if v != nil {
			set[key] = *v
		}
	}
	for key, v := range map[string]*decimal.Decimal{
		"price":            p.Price,
		"compare_at_price": p.CompareAtPrice,
	} {
		if v == nil {
			continue
		}
		d, err := toDecimal128(*v)
		if err != nil {
			return nil, err
		}
		set[key] = d
	}
	if p.Images != nil {
		set["images"] = imageDocs(*p.Images)
	}
	if p.Variants != nil {
		docs, err := variantDocs(*p.Variants)
		if err != nil {
			return nil, err
		}
		set["variants"] = docs
	}
	if p.Benefits != nil {
		set["benefits"] = nonNil(*p.Benefits)
	}
	if p.WhyLoveIt != nil {
		set["why_love_it"] = nonNil(*p.WhyLoveIt)
	}
	if p.InStock != nil {
		set["in_stock"] = *p.InStock
	}
	if p.Featured != nil {
		set["featured"] = *p.Featured
	}
	return set, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
