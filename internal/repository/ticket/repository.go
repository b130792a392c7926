package ticket

import (
	"context"

	"analogue-shop/internal/domain"
)

// Repository persists tickets. Tickets are append-only: there is no update or delete.
type Repository interface {
	Create(ctx context.Context, t domain.Ticket) (*domain.Ticket, error)
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	// ListByPurchaser returns the purchaser's tickets, newest first. An empty
	// purchaser lists every ticket.
	ListByPurchaser(ctx context.Context, purchaser string) ([]domain.Ticket, error)
}
