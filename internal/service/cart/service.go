package cart

import (
	"context"
	"fmt"
	"strings"

	"analogue-shop/internal/domain"
	cartrepo "analogue-shop/internal/repository/cart"
)

type Service struct {
	repo     cartrepo.Repository
	products productReader
}

type productReader interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
}

func New(repo cartrepo.Repository, products productReader) *Service {
	return &Service{repo: repo, products: products}
}

// Create opens a cart with optional initial lines. Duplicate products are merged.
func (s *Service) Create(ctx context.Context, lines []domain.LineItem) (*domain.Cart, error) {
	lines, err := prepare(lines)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, lines)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Cart, error) {
	return s.repo.Get(ctx, id)
}

// AddItem adds qty units of an existing product, summing into its line if present.
func (s *Service) AddItem(ctx context.Context, cartID, productID string, qty int) (*domain.Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.Invalid("productId required")
	}
	if !domain.ValidQuantity(qty) {
		return nil, domain.ErrInvalidQuantity
	}
	if s.products != nil {
		if _, err := s.products.Get(ctx, productID); err != nil {
			return nil, fmt.Errorf("product %s: %w", productID, err)
		}
	}
	return s.repo.AddItem(ctx, cartID, productID, qty)
}

func (s *Service) RemoveItem(ctx context.Context, cartID, productID string) (*domain.Cart, error) {
	return s.repo.RemoveItem(ctx, cartID, productID)
}

// SetItems replaces every line of the cart.
func (s *Service) SetItems(ctx context.Context, cartID string, lines []domain.LineItem) (*domain.Cart, error) {
	lines, err := prepare(lines)
	if err != nil {
		return nil, err
	}
	return s.repo.SetItems(ctx, cartID, lines)
}

func (s *Service) UpdateQuantity(ctx context.Context, cartID, productID string, qty int) (*domain.Cart, error) {
	if !domain.ValidQuantity(qty) {
		return nil, domain.ErrInvalidQuantity
	}
	return s.repo.UpdateQuantity(ctx, cartID, productID, qty)
}

func (s *Service) Clear(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.repo.Clear(ctx, cartID)
}

// prepare returns trimmed, validated and merged lines without touching the
// caller's slice.
func prepare(lines []domain.LineItem) ([]domain.LineItem, error) {
	out := make([]domain.LineItem, len(lines))
	for i, l := range lines {
		out[i] = domain.LineItem{ProductID: strings.TrimSpace(l.ProductID), Quantity: l.Quantity}
	}
	if err := domain.ValidateLines(out); err != nil {
		return nil, err
	}
	merged := domain.MergeLines(out)
	if err := domain.ValidateLines(merged); err != nil {
		return nil, err
	}
	return merged, nil
}
