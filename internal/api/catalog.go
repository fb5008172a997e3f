package api

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/beautivra/internal/domain/catalog"
)

// EncodeProduct writes p in the storefront product shape.
func EncodeProduct(e *jx.Encoder, p catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("slug")
	e.Str(p.Slug)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("short_description")
	e.Str(p.ShortDescription)
	e.FieldStart("price")
	encodeMoney(e, p.Price)
	e.FieldStart("compare_at_price")
	if p.CompareAtPrice.Valid {
		encodeMoney(e, p.CompareAtPrice.Decimal)
	} else {
		e.Null()
	}
	e.FieldStart("category")
	e.Str(p.Category)

	e.FieldStart("images")
	e.ArrStart()
	for _, img := range p.Images {
		e.ObjStart()
		e.FieldStart("url")
		e.Str(img.URL)
		e.FieldStart("alt")
		e.Str(img.Alt)
		e.FieldStart("is_primary")
		e.Bool(img.IsPrimary)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("variants")
	e.ArrStart()
	for _, v := range p.Variants {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(v.Name)
		e.FieldStart("value")
		e.Str(v.Value)
		e.FieldStart("price_modifier")
		encodeMoney(e, v.PriceModifier)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("benefits")
	encodeStrings(e, p.Benefits)
	e.FieldStart("how_to_use")
	e.Str(p.HowToUse)
	e.FieldStart("why_love_it")
	encodeStrings(e, p.WhyLoveIt)
	e.FieldStart("in_stock")
	e.Bool(p.InStock)
	e.FieldStart("featured")
	e.Bool(p.Featured)
	e.FieldStart("meta_title")
	encodeOptString(e, p.MetaTitle)
	e.FieldStart("meta_description")
	encodeOptString(e, p.MetaDescription)
	e.FieldStart("created_at")
	encodeTime(e, p.CreatedAt)
	e.FieldStart("updated_at")
	encodeTime(e, p.UpdatedAt)
	e.ObjEnd()
}

// EncodeProducts writes a JSON array of products.
func EncodeProducts(e *jx.Encoder, products []catalog.Product) {
	e.ArrStart()
	for _, p := range products {
		EncodeProduct(e, p)
	}
	e.ArrEnd()
}

func encodeOptString(e *jx.Encoder, s string) {
	if s == "" {
		e.Null()
		return
	}
	e.Str(s)
}

// DecodeProduct reads a product definition. Server-owned fields (id and
// timestamps) are ignored. in_stock defaults to true.
func DecodeProduct(d *jx.Decoder) (catalog.Product, error) {
	p := catalog.Product{InStock: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			p.Name, err = d.Str()
		case "slug":
			p.Slug, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "short_description":
			p.ShortDescription, err = d.Str()
		case "price":
			p.Price, err = decodeMoney(d)
		case "compare_at_price":
			var null bool
			if null, err = isNull(d); err != nil || null {
				break
			}
			var v decimal.Decimal
			if v, err = decodeMoney(d); err == nil {
				p.CompareAtPrice = decimal.NewNullDecimal(v)
			}
		case "category":
			p.Category, err = d.Str()
		case "images":
			p.Images, err = decodeImages(d)
		case "variants":
			p.Variants, err = decodeVariants(d)
		case "benefits":
			p.Benefits, err = decodeStrings(d)
		case "how_to_use":
			p.HowToUse, err = d.Str()
		case "why_love_it":
			p.WhyLoveIt, err = decodeStrings(d)
		case "in_stock":
			p.InStock, err = d.Bool()
		case "featured":
			p.Featured, err = d.Bool()
		case "meta_title":
			p.MetaTitle, err = decodeOptString(d)
		case "meta_description":
			p.MetaDescription, err = decodeOptString(d)
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return p, err
}

// DecodeProductPatch reads a partial product update. Absent and null fields
// are left unset.
func DecodeProductPatch(d *jx.Decoder) (catalog.ProductPatch, error) {
	var p catalog.ProductPatch
	err := d.Obj(func(d *jx.Decoder, key string) error {
		null, err := isNull(d)
		if err != nil || null {
			return field(key, err)
		}
		switch key {
		case "name":
			p.Name, err = strPtr(d)
		case "slug":
			p.Slug, err = strPtr(d)
		case "description":
			p.Description, err = strPtr(d)
		case "short_description":
			p.ShortDescription, err = strPtr(d)
		case "price":
			p.Price, err = moneyPtr(d)
		case "compare_at_price":
			p.CompareAtPrice, err = moneyPtr(d)
		case "category":
			p.Category, err = strPtr(d)
		case "images":
			var v []catalog.Image
			if v, err = decodeImages(d); err == nil {
				p.Images = &v
			}
		case "variants":
			var v []catalog.Variant
			if v, err = decodeVariants(d); err == nil {
				p.Variants = &v
			}
		case "benefits":
			var v []string
			if v, err = decodeStrings(d); err == nil {
				p.Benefits = &v
			}
		case "how_to_use":
			p.HowToUse, err = strPtr(d)
		case "why_love_it":
			var v []string
			if v, err = decodeStrings(d); err == nil {
				p.WhyLoveIt = &v
			}
		case "in_stock":
			p.InStock, err = boolPtr(d)
		case "featured":
			p.Featured, err = boolPtr(d)
		case "meta_title":
			p.MetaTitle, err = strPtr(d)
		case "meta_description":
			p.MetaDescription, err = strPtr(d)
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return p, err
}

func decodeImages(d *jx.Decoder) ([]catalog.Image, error) {
	out := []catalog.Image{}
	err := d.Arr(func(d *jx.Decoder) error {
		var img catalog.Image
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "url":
				img.URL, err = d.Str()
			case "alt":
				img.Alt, err = d.Str()
			case "is_primary":
				img.IsPrimary, err = d.Bool()
			default:
				err = d.Skip()
			}
			return field(key, err)
		}); err != nil {
			return err
		}
		out = append(out, img)
		return nil
	})
	return out, err
}

func decodeVariants(d *jx.Decoder) ([]catalog.Variant, error) {
	out := []catalog.Variant{}
	err := d.Arr(func(d *jx.Decoder) error {
		v := catalog.Variant{PriceModifier: decimal.Zero}
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "name":
				v.Name, err = d.Str()
			case "value":
				v.Value, err = d.Str()
			case "price_modifier":
				v.PriceModifier, err = decodeMoney(d)
			default:
				err = d.Skip()
			}
			return field(key, err)
		}); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

func decodeOptString(d *jx.Decoder) (string, error) {
	if null, err := isNull(d); err != nil || null {
		return "", err
	}
	return d.Str()
}

func strPtr(d *jx.Decoder) (*string, error) {
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func boolPtr(d *jx.Decoder) (*bool, error) {
	b, err := d.Bool()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func moneyPtr(d *jx.Decoder) (*decimal.Decimal, error) {
	v, err := decodeMoney(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// EncodeReview writes a product review.
func EncodeReview(e *jx.Encoder, r catalog.Review) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("product_id")
	e.Str(r.ProductID)
	e.FieldStart("author_name")
	e.Str(r.AuthorName)
	e.FieldStart("rating")
	e.Int(r.Rating)
	e.FieldStart("title")
	e.Str(r.Title)
	e.FieldStart("content")
	e.Str(r.Content)
	e.FieldStart("verified_purchase")
	e.Bool(r.VerifiedPurchase)
	e.FieldStart("created_at")
	encodeTime(e, r.CreatedAt)
	e.ObjEnd()
}

// EncodeReviews writes a JSON array of reviews.
func EncodeReviews(e *jx.Encoder, reviews []catalog.Review) {
	e.ArrStart()
	for _, r := range reviews {
		EncodeReview(e, r)
	}
	e.ArrEnd()
}

// DecodeReview reads a customer review submission. verified_purchase is
// ignored because customers cannot assert it.
func DecodeReview(d *jx.Decoder) (catalog.Review, error) {
	return decodeReview(d, false)
}

func decodeReview(d *jx.Decoder, trusted bool) (catalog.Review, error) {
	var r catalog.Review
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			r.ProductID, err = d.Str()
		case "author_name":
			r.AuthorName, err = d.Str()
		case "rating":
			r.Rating, err = d.Int()
		case "title":
			r.Title, err = d.Str()
		case "content":
			r.Content, err = d.Str()
		case "verified_purchase":
			if !trusted {
				return d.Skip()
			}
			r.VerifiedPurchase, err = d.Bool()
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return r, err
}

// EncodeSubscribers writes newsletter subscribers.
func EncodeSubscribers(e *jx.Encoder, subs []catalog.Subscriber) {
	e.ArrStart()
	for _, s := range subs {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(s.ID)
		e.FieldStart("email")
		e.Str(s.Email)
		e.FieldStart("subscribed_at")
		encodeTime(e, s.SubscribedAt)
		e.FieldStart("is_active")
		e.Bool(s.IsActive)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// DecodeEmail reads {"email": "..."}.
func DecodeEmail(d *jx.Decoder) (string, error) {
	var email string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "email" {
			return d.Skip()
		}
		var err error
		email, err = d.Str()
		return field(key, err)
	})
	return email, err
}

// DecodeContact reads a contact form submission.
func DecodeContact(d *jx.Decoder) (catalog.ContactMessage, error) {
	var m catalog.ContactMessage
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			m.Name, err = d.Str()
		case "email":
			m.Email, err = d.Str()
		case "subject":
			m.Subject, err = d.Str()
		case "message":
			m.Message, err = d.Str()
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return m, err
}

// EncodeCategories writes the category list.
func EncodeCategories(e *jx.Encoder, cats []catalog.Category) {
	e.ArrStart()
	for _, c := range cats {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(c.ID)
		e.FieldStart("name")
		e.Str(c.Name)
		e.FieldStart("slug")
		e.Str(c.Slug)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// EncodeSeedResult writes the outcome of a catalog seed.
func EncodeSeedResult(e *jx.Encoder, msg string, seeded bool) {
	e.ObjStart()
	e.FieldStart("message")
	e.Str(msg)
	e.FieldStart("seeded")
	e.Bool(seeded)
	e.ObjEnd()
}
