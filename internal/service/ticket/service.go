package ticket

import (
	"context"
	"errors"
	"strings"
	"time"

	"analogue-shop/internal/domain"
	ticketrepo "analogue-shop/internal/repository/ticket"
	"github.com/google/uuid"
)

// issueAttempts bounds retries on a code collision.
const issueAttempts = 3

// Service issues and looks up purchase tickets.
type Service struct {
	repo    ticketrepo.Repository
	now     func() time.Time
	newCode func() string
}

type Option func(*Service)

// WithClock overrides the issue timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator overrides the random code source.
func WithCodeGenerator(gen func() string) Option {
	return func(s *Service) { s.newCode = gen }
}

func New(repo ticketrepo.Repository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		now:     func() time.Time { return time.Now().UTC() },
		newCode: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue records a ticket for purchaser. A zero amount is valid and still
// produces a ticket.
func (s *Service) Issue(ctx context.Context, purchaser string, amountCents int64) (*domain.Ticket, error) {
	purchaser = strings.TrimSpace(purchaser)
	if purchaser == "" {
		return nil, domain.Invalid("purchaser required")
	}
	if amountCents < 0 {
		return nil, domain.Invalid("amount must not be negative")
	}

	var err error
	for attempt := 0; attempt < issueAttempts; attempt++ {
		var t *domain.Ticket
		t, err = s.repo.Create(ctx, domain.Ticket{
			Code:        s.newCode(),
			Purchaser:   purchaser,
			AmountCents: amountCents,
			PurchasedAt: s.now(),
		})
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
	}
	return nil, err
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	return s.repo.GetByCode(ctx, strings.TrimSpace(code))
}

// ListByPurchaser returns the purchaser's tickets, newest first.
func (s *Service) ListByPurchaser(ctx context.Context, purchaser string) ([]domain.Ticket, error) {
	if strings.TrimSpace(purchaser) == "" {
		return nil, domain.Invalid("purchaser required")
	}
	return s.repo.ListByPurchaser(ctx, purchaser)
}
