package product

import (
	"context"
	"strings"

	"analogue-shop/internal/domain"
	productrepo "analogue-shop/internal/repository/product"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Code        string `json:"code"`
	Category    string `json:"category"`
	PriceCents  int64  `json:"priceCents"`
	Stock       int    `json:"stock"`
}

type ListInput struct {
	Limit    int
	Page     int
	Sort     string
	Category string
}

// Page is one page of a product listing with navigation metadata.
type Page struct {
	Items       []domain.Product `json:"payload"`
	TotalDocs   int              `json:"totalDocs"`
	Limit       int              `json:"limit"`
	Page        int              `json:"page"`
	TotalPages  int              `json:"totalPages"`
	HasPrevPage bool             `json:"hasPrevPage"`
	HasNextPage bool             `json:"hasNextPage"`
	PrevPage    *int             `json:"prevPage"`
	NextPage    *int             `json:"nextPage"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Product, error) {
	p := domain.Product{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Code:        strings.TrimSpace(in.Code),
		Category:    strings.TrimSpace(in.Category),
		PriceCents:  in.PriceCents,
		Stock:       in.Stock,
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial change. Stock may be set directly here; purchases
// go through the conditional decrement instead.
func (s *Service) Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	if patch.Empty() {
		return nil, domain.Invalid("no fields to update")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, domain.Invalid("title required")
	}
	if patch.Code != nil && strings.TrimSpace(*patch.Code) == "" {
		return nil, domain.Invalid("code required")
	}
	if patch.PriceCents != nil && *patch.PriceCents < 0 {
		return nil, domain.Invalid("price must not be negative")
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, domain.Invalid("stock must not be negative")
	}
	return s.repo.Update(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Restock adds qty units to the product's stock.
func (s *Service) Restock(ctx context.Context, id string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return s.repo.IncrementStock(ctx, id, qty)
}

func (s *Service) List(ctx context.Context, in ListInput) (*Page, error) {
	limit := in.Limit
	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit < 0:
		return nil, domain.Invalid("limit must be positive")
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	page := in.Page
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return nil, domain.Invalid("page must be positive")
	}

	var order string
	switch strings.ToLower(in.Sort) {
	case "":
		order = productrepo.SortNewest
	case "asc":
		order = productrepo.SortPriceAsc
	case "desc":
		order = productrepo.SortPriceDesc
	default:
		return nil, domain.Invalid("sort must be asc or desc")
	}

	res, err := s.repo.List(ctx, productrepo.ListQuery{
		Category: strings.TrimSpace(in.Category),
		Sort:     order,
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		return nil, err
	}
	return paginate(res, page, limit), nil
}

func paginate(res *productrepo.ListResult, page, limit int) *Page {
	totalPages := (res.Total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}
	p := &Page{
		Items:       res.Items,
		TotalDocs:   res.Total,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasPrevPage: page > 1,
		HasNextPage: page < totalPages,
	}
	if p.HasPrevPage {
		prev := page - 1
		p.PrevPage = &prev
	}
	if p.HasNextPage {
		next := page + 1
		p.NextPage = &next
	}
	return p
}

func validate(p domain.Product) error {
	if p.Title == "" {
		return domain.Invalid("title required")
	}
	if p.Code == "" {
		return domain.Invalid("code required")
	}
	if p.PriceCents < 0 {
		return domain.Invalid("price must not be negative")
	}
	if p.Stock < 0 {
		return domain.Invalid("stock must not be negative")
	}
	return nil
}
