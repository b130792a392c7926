package cart

import (
	"context"

	"analogue-shop/internal/domain"
)

// Repository is the cart store. Every mutation returns the cart as persisted
// after the change, or domain.ErrNotFound when the cart does not exist.
// Callers validate quantities; stores assume lines are positive and unique.
type Repository interface {
	Create(ctx context.Context, lines []domain.LineItem) (*domain.Cart, error)
	Get(ctx context.Context, id string) (*domain.Cart, error)
	// AddItem sums qty into an existing line or appends a new one.
	AddItem(ctx context.Context, id, productID string, qty int) (*domain.Cart, error)
	// RemoveItem drops the product's line. Removing an absent line is not an error.
	RemoveItem(ctx context.Context, id, productID string) (*domain.Cart, error)
	SetItems(ctx context.Context, id string, lines []domain.LineItem) (*domain.Cart, error)
	// UpdateQuantity replaces the quantity of an existing line; a missing line is ErrNotFound.
	UpdateQuantity(ctx context.Context, id, productID string, qty int) (*domain.Cart, error)
	Clear(ctx context.Context, id string) (*domain.Cart, error)
}
