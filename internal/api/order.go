package api

import (
	"maps"
	"slices"

	"github.com/go-faster/jx"

	"github.com/xenking/beautivra/internal/domain/checkout"
	"github.com/xenking/beautivra/internal/domain/order"
	"github.com/xenking/beautivra/internal/domain/payment"
	"github.com/xenking/beautivra/internal/domain/pricing"
)

// DecodeCart reads {"items": [...]}.
func DecodeCart(d *jx.Decoder) ([]order.CartItem, error) {
	var items []order.CartItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		var err error
		items, err = decodeCartItems(d)
		return field(key, err)
	})
	return items, err
}

// DecodeCheckoutRequest reads a checkout submission. Client-computed totals
// are skipped like any other unknown field.
func DecodeCheckoutRequest(d *jx.Decoder) (checkout.Request, error) {
	var req checkout.Request
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			req.Items, err = decodeCartItems(d)
		case "shipping_address":
			req.ShippingAddress, err = decodeAddress(d)
		case "origin_url":
			req.OriginURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return req, err
}

func decodeCartItems(d *jx.Decoder) ([]order.CartItem, error) {
	items := []order.CartItem{}
	err := d.Arr(func(d *jx.Decoder) error {
		var item order.CartItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				item.ProductID, err = d.Str()
			case "product_name":
				item.ProductName, err = d.Str()
			case "product_image":
				item.ProductImage, err = d.Str()
			case "variant":
				item.Variant, err = decodeOptString(d)
			case "price":
				item.Price, err = decodeMoney(d)
			case "quantity":
				item.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return field(key, err)
		}); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

func decodeAddress(d *jx.Decoder) (order.ShippingAddress, error) {
	var a order.ShippingAddress
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "first_name":
			a.FirstName, err = d.Str()
		case "last_name":
			a.LastName, err = d.Str()
		case "email":
			a.Email, err = d.Str()
		case "phone":
			a.Phone, err = d.Str()
		case "address":
			a.Address, err = d.Str()
		case "city":
			a.City, err = d.Str()
		case "province":
			a.Province, err = d.Str()
		case "postal_code":
			a.PostalCode, err = d.Str()
		case "country":
			a.Country, err = decodeOptString(d)
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return a, err
}

// EncodeQuote writes a shipping and tax estimate.
func EncodeQuote(e *jx.Encoder, q pricing.Quote) {
	e.ObjStart()
	e.FieldStart("subtotal")
	encodeMoney(e, q.Subtotal)
	e.FieldStart("shipping")
	encodeMoney(e, q.Shipping)
	e.FieldStart("tax")
	encodeMoney(e, q.Tax)
	e.FieldStart("total")
	encodeMoney(e, q.Total)
	e.FieldStart("free_shipping_threshold")
	encodeMoney(e, q.FreeShippingThreshold)
	e.FieldStart("tax_rate")
	e.Raw([]byte(q.TaxRate.String()))
	e.ObjEnd()
}

// EncodeCheckoutResult writes the redirect target of a new checkout.
func EncodeCheckoutResult(e *jx.Encoder, r checkout.Result) {
	e.ObjStart()
	e.FieldStart("checkout_url")
	e.Str(r.RedirectURL)
	e.FieldStart("session_id")
	e.Str(r.SessionID)
	e.FieldStart("order_id")
	e.Str(r.OrderID)
	e.FieldStart("order_number")
	e.Str(r.OrderNumber)
	e.ObjEnd()
}

// EncodeSessionReport writes the provider's view of a payment session.
// amount_total is in the currency's minor unit.
func EncodeSessionReport(e *jx.Encoder, r payment.SessionReport) {
	e.ObjStart()
	e.FieldStart("status")
	e.Str(r.Status)
	e.FieldStart("payment_status")
	e.Str(r.PaymentStatus)
	e.FieldStart("amount_total")
	e.Int64(r.AmountTotal)
	e.FieldStart("currency")
	e.Str(r.Currency)
	e.FieldStart("metadata")
	e.ObjStart()
	for _, k := range slices.Sorted(maps.Keys(r.Metadata)) {
		e.FieldStart(k)
		e.Str(r.Metadata[k])
	}
	e.ObjEnd()
	e.ObjEnd()
}

// EncodeOrder writes an order as shown on the confirmation page.
func EncodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("order_number")
	e.Str(o.Number)

	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(item.ProductID)
		e.FieldStart("product_name")
		e.Str(item.ProductName)
		e.FieldStart("product_image")
		e.Str(item.ProductImage)
		e.FieldStart("variant")
		encodeOptString(e, item.Variant)
		e.FieldStart("price")
		encodeMoney(e, item.Price)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()

	a := o.ShippingAddress
	e.FieldStart("shipping_address")
	e.ObjStart()
	for _, f := range [...]struct{ k, v string }{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"email", a.Email},
		{"phone", a.Phone},
		{"address", a.Address},
		{"city", a.City},
		{"province", a.Province},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	} {
		e.FieldStart(f.k)
		e.Str(f.v)
	}
	e.ObjEnd()

	e.FieldStart("subtotal")
	encodeMoney(e, o.Subtotal)
	e.FieldStart("shipping_cost")
	encodeMoney(e, o.ShippingCost)
	e.FieldStart("tax")
	encodeMoney(e, o.Tax)
	e.FieldStart("total")
	encodeMoney(e, o.Total)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("payment_status")
	e.Str(string(o.PaymentStatus))
	e.FieldStart("stripe_session_id")
	encodeOptString(e, o.PaymentSessionID)
	e.FieldStart("created_at")
	encodeTime(e, o.CreatedAt)
	e.ObjEnd()
}

// EncodeWebhookAck writes the acknowledgement returned to the provider.
func EncodeWebhookAck(e *jx.Encoder, ack checkout.WebhookAck) {
	e.ObjStart()
	e.FieldStart("status")
	e.Str(ack.Status)
	if ack.Message != "" {
		e.FieldStart("message")
		e.Str(ack.Message)
	}
	e.ObjEnd()
}
