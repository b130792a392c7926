package cart

import (
	"context"
	"sync"
	"time"

	"analogue-shop/internal/domain"
	"github.com/google/uuid"
)

type memoryRepo struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
	now   func() time.Time
}

// NewMemory returns a process-local cart store.
func NewMemory() Repository {
	return &memoryRepo{
		carts: make(map[string]*domain.Cart),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryRepo) Create(_ context.Context, lines []domain.LineItem) (*domain.Cart, error) {
	now := r.now()
	c := &domain.Cart{
		ID:        uuid.NewString(),
		Lines:     cloneLines(lines),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.mu.Lock()
	r.carts[c.ID] = c
	r.mu.Unlock()
	return clone(c), nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.carts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(c), nil
}

func (r *memoryRepo) AddItem(_ context.Context, id, productID string, qty int) (*domain.Cart, error) {
	return r.mutate(id, func(c *domain.Cart) error {
		for i := range c.Lines {
			if c.Lines[i].ProductID == productID {
				if qty > domain.MaxLineQuantity-c.Lines[i].Quantity {
					return domain.ErrInvalidQuantity
				}
				c.Lines[i].Quantity += qty
				return nil
			}
		}
		if !domain.ValidQuantity(qty) {
			return domain.ErrInvalidQuantity
		}
		c.Lines = append(c.Lines, domain.LineItem{ProductID: productID, Quantity: qty})
		return nil
	})
}

func (r *memoryRepo) RemoveItem(_ context.Context, id, productID string) (*domain.Cart, error) {
	return r.mutate(id, func(c *domain.Cart) error {
		kept := c.Lines[:0]
		for _, l := range c.Lines {
			if l.ProductID != productID {
				kept = append(kept, l)
			}
		}
		c.Lines = kept
		return nil
	})
}

func (r *memoryRepo) SetItems(_ context.Context, id string, lines []domain.LineItem) (*domain.Cart, error) {
	return r.mutate(id, func(c *domain.Cart) error {
		c.Lines = cloneLines(lines)
		return nil
	})
}

func (r *memoryRepo) UpdateQuantity(_ context.Context, id, productID string, qty int) (*domain.Cart, error) {
	return r.mutate(id, func(c *domain.Cart) error {
		for i := range c.Lines {
			if c.Lines[i].ProductID == productID {
				c.Lines[i].Quantity = qty
				return nil
			}
		}
		return domain.ErrNotFound
	})
}

func (r *memoryRepo) Clear(_ context.Context, id string) (*domain.Cart, error) {
	return r.mutate(id, func(c *domain.Cart) error {
		c.Lines = []domain.LineItem{}
		return nil
	})
}

// mutate applies fn to a working copy and stores it only when fn succeeds.
func (r *memoryRepo) mutate(id string, fn func(c *domain.Cart) error) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.carts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := clone(current)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = r.now()
	r.carts[id] = next
	return clone(next), nil
}

func clone(c *domain.Cart) *domain.Cart {
	out := *c
	out.Lines = cloneLines(c.Lines)
	return &out
}

func cloneLines(lines []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(lines))
	copy(out, lines)
	return out
}
