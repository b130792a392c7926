package product

import (
	"context"

	"analogue-shop/internal/domain"
)

// Sort orders for List.
const (
	SortNewest    = ""
	SortPriceAsc  = "asc"
	SortPriceDesc = "desc"
)

// ListQuery filters and pages a product listing. Page is 1-based.
type ListQuery struct {
	Category string
	Sort     string
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip for the query's page.
func (q ListQuery) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// ListResult is one page of products plus the total matching the filter.
type ListResult struct {
	Items []domain.Product
	Total int
}

// Repository is the product store. Every backend implements DecrementStock as a
// single atomic compare-and-decrement, so concurrent purchases never drive stock
// below zero.
type Repository interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q ListQuery) (*ListResult, error)
	// Upsert inserts or replaces the product with the same code, keeping its id.
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
	// DecrementStock removes qty units if at least qty are available and
	// returns the product as it was written, so the caller prices the line at
	// the state the stock was taken from. It returns false without error when
	// stock is insufficient.
	DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, bool, error)
	IncrementStock(ctx context.Context, id string, qty int) (*domain.Product, error)
}
