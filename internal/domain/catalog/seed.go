package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SeedData is a demo catalog. Reviews without a ProductID are attached to the
// first product.
type SeedData struct {
	Products []Product
	Reviews  []Review
}

// SeedResult reports what Seed did.
type SeedResult struct {
	Seeded   bool
	Products int
	Reviews  int
	// Existing is the product count found when seeding was skipped.
	Existing int64
}

// Seed inserts data when the catalog has no products and does nothing
// otherwise.
func (s *Service) Seed(ctx context.Context, data SeedData) (*SeedResult, error) {
	count, err := s.repo.CountProducts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count products")
	}
	if count > 0 {
		return &SeedResult{Existing: count}, nil
	}

	now := s.now().UTC()
	var firstID string
	for i, p := range data.Products {
		if err := validateProduct(p); err != nil {
			return nil, errors.Wrapf(err, "seed product %d", i)
		}
		p.ID = uuid.New().String()
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := s.repo.CreateProduct(ctx, &p); err != nil {
			return nil, errors.Wrapf(err, "seed product %q", p.Slug)
		}
		if firstID == "" {
			firstID = p.ID
		}
	}

	reviews := 0
	if firstID != "" {
		for _, r := range data.Reviews {
			if r.ProductID == "" {
				r.ProductID = firstID
			}
			r.ID = uuid.New().String()
			r.CreatedAt = now
			if err := s.repo.CreateReview(ctx, &r); err != nil {
				return nil, errors.Wrap(err, "seed review")
			}
			reviews++
		}
	}

	zctx.From(ctx).Info("Seeded catalog",
		zap.Int("products", len(data.Products)),
		zap.Int("reviews", reviews),
	)
	return &SeedResult{Seeded: true, Products: len(data.Products), Reviews: reviews}, nil
}
