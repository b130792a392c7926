package seed

import (
	"context"
	"fmt"

	"analogue-shop/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Products is the demo catalogue. Stock levels are small so partial purchases
// are easy to reproduce by hand.
var Products = []domain.Product{
	{
		Code:        "DEMO-TSHIRT",
		Title:       "Demo T-Shirt",
		Description: "Soft cotton tee for demo purposes",
		Category:    "apparel",
		PriceCents:  1999,
		Stock:       25,
	},
	{
		Code:        "DEMO-MUG",
		Title:       "Demo Mug",
		Description: "Ceramic mug with demo logo",
		Category:    "kitchen",
		PriceCents:  1299,
		Stock:       10,
	},
	{
		Code:        "DEMO-POSTER",
		Title:       "Limited Poster",
		Description: "Signed print, few left",
		Category:    "decor",
		PriceCents:  4500,
		Stock:       2,
	},
	{
		Code:        "DEMO-STICKER",
		Title:       "Sticker",
		Description: "Free with any order",
		Category:    "apparel",
		PriceCents:  0,
		Stock:       100,
	},
}

// Apply upserts the demo catalogue. It is idempotent because products are
// matched by code; rerunning it resets their stock.
func Apply(ctx context.Context, repo ProductWriter) (int, error) {
	for i, p := range Products {
		if _, err := repo.Upsert(ctx, p); err != nil {
			return i, fmt.Errorf("upsert product %s: %w", p.Code, err)
		}
	}
	return len(Products), nil
}
