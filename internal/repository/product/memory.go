package product

import (
	"context"
	"sort"
	"sync"
	"time"

	"analogue-shop/internal/domain"
	"github.com/google/uuid"
)

type memoryRepo struct {
	mu       sync.RWMutex
	products map[string]*memoryEntry
	seq      int64
	now      func() time.Time
}

type memoryEntry struct {
	product domain.Product
	seq     int64
}

// NewMemory returns a process-local store. It is safe for concurrent use.
func NewMemory() Repository {
	return &memoryRepo{
		products: make(map[string]*memoryEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryRepo) Get(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p := e.product
	return &p, nil
}

func (r *memoryRepo) Create(_ context.Context, p domain.Product) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := r.products[p.ID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	if r.codeTakenLocked(p.Code, "") {
		return nil, domain.ErrAlreadyExists
	}
	now := r.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.seq++
	r.products[p.ID] = &memoryEntry{product: p, seq: r.seq}
	return &p, nil
}

func (r *memoryRepo) Update(_ context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if patch.Code != nil && r.codeTakenLocked(*patch.Code, id) {
		return nil, domain.ErrAlreadyExists
	}
	patch.Apply(&e.product)
	e.product.UpdatedAt = r.now()
	p := e.product
	return &p, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *memoryRepo) List(_ context.Context, q ListQuery) (*ListResult, error) {
	r.mu.RLock()
	matched := make([]memoryEntry, 0, len(r.products))
	for _, e := range r.products {
		if q.Category != "" && e.product.Category != q.Category {
			continue
		}
		matched = append(matched, *e)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Sort {
		case SortPriceAsc:
			if a.product.PriceCents != b.product.PriceCents {
				return a.product.PriceCents < b.product.PriceCents
			}
		case SortPriceDesc:
			if a.product.PriceCents != b.product.PriceCents {
				return a.product.PriceCents > b.product.PriceCents
			}
		}
		return a.seq > b.seq
	})

	res := &ListResult{Total: len(matched), Items: []domain.Product{}}
	start := q.Offset()
	if start >= len(matched) {
		return res, nil
	}
	end := len(matched)
	if q.PageSize > 0 && start+q.PageSize < end {
		end = start + q.PageSize
	}
	for _, e := range matched[start:end] {
		res.Items = append(res.Items, e.product)
	}
	return res, nil
}

func (r *memoryRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, e := range r.products {
		if e.product.Code != p.Code {
			continue
		}
		p.ID = e.product.ID
		p.CreatedAt = e.product.CreatedAt
		p.UpdatedAt = now
		e.product = p
		return &p, nil
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := r.products[p.ID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	p.CreatedAt, p.UpdatedAt = now, now
	r.seq++
	r.products[p.ID] = &memoryEntry{product: p, seq: r.seq}
	return &p, nil
}

func (r *memoryRepo) DecrementStock(_ context.Context, id string, qty int) (*domain.Product, bool, error) {
	if qty <= 0 {
		return nil, false, domain.ErrInvalidQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.products[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if e.product.Stock < qty {
		return nil, false, nil
	}
	e.product.Stock -= qty
	e.product.UpdatedAt = r.now()
	p := e.product
	return &p, true, nil
}

func (r *memoryRepo) IncrementStock(_ context.Context, id string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.product.Stock += qty
	e.product.UpdatedAt = r.now()
	p := e.product
	return &p, nil
}

func (r *memoryRepo) codeTakenLocked(code, exceptID string) bool {
	if code == "" {
		return false
	}
	for id, e := range r.products {
		if id != exceptID && e.product.Code == code {
			return true
		}
	}
	return false
}
