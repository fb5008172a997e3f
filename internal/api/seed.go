package api

import (
	"github.com/go-faster/jx"

	"github.com/xenking/beautivra/internal/domain/catalog"
)

// DecodeSeed reads a catalog seed file: {"products": [...], "reviews": [...]}.
// Reviews may carry verified_purchase.
func DecodeSeed(data []byte) (catalog.SeedData, error) {
	var seed catalog.SeedData
	err := Decode(data, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "products":
				return field(key, d.Arr(func(d *jx.Decoder) error {
					p, err := DecodeProduct(d)
					if err != nil {
						return err
					}
					seed.Products = append(seed.Products, p)
					return nil
				}))
			case "reviews":
				return field(key, d.Arr(func(d *jx.Decoder) error {
					r, err := decodeReview(d, true)
					if err != nil {
						return err
					}
					seed.Reviews = append(seed.Reviews, r)
					return nil
				}))
			default:
				return d.Skip()
			}
		})
	})
	return seed, err
}
