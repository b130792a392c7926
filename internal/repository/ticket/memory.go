package ticket

import (
	"context"
	"sync"

	"analogue-shop/internal/domain"
	"github.com/google/uuid"
)

type memoryRepo struct {
	mu      sync.RWMutex
	tickets []domain.Ticket
}

func NewMemory() Repository {
	return &memoryRepo{}
}

func (r *memoryRepo) Create(_ context.Context, t domain.Ticket) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	for _, existing := range r.tickets {
		if existing.ID == t.ID || existing.Code == t.Code {
			return nil, domain.ErrAlreadyExists
		}
	}
	r.tickets = append(r.tickets, t)
	return &t, nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*domain.Ticket, error) {
	return r.find(func(t domain.Ticket) bool { return t.ID == id })
}

func (r *memoryRepo) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
	return r.find(func(t domain.Ticket) bool { return t.Code == code })
}

func (r *memoryRepo) ListByPurchaser(_ context.Context, purchaser string) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Ticket{}
	for i := len(r.tickets) - 1; i >= 0; i-- {
		if purchaser == "" || r.tickets[i].Purchaser == purchaser {
			out = append(out, r.tickets[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) find(match func(domain.Ticket) bool) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tickets {
		if match(t) {
			out := t
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}
