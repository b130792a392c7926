package ticket

import (
	"context"
	"errors"

	"analogue-shop/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const ticketColumns = `id, code, purchaser, amount_cents, purchased_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("ticket_repo")}
}

func (r *postgresRepo) Create(ctx context.Context, t domain.Ticket) (*domain.Ticket, error) {
	const q = `
INSERT INTO tickets (id, code, purchaser, amount_cents, purchased_at)
VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5)
RETURNING ` + ticketColumns
	out, err := scanTicket(r.pool.QueryRow(ctx, q, t.ID, t.Code, t.Purchaser, t.AmountCents, t.PurchasedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Warn("create failed", zap.String("code", t.Code), zap.Error(err))
		return nil, domain.StoreFailure("ticket create", err)
	}
	return out, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.getBy(ctx, "id", id)
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	return r.getBy(ctx, "code", code)
}

func (r *postgresRepo) getBy(ctx context.Context, column, value string) (*domain.Ticket, error) {
	// column is one of two constants above, never user input
	out, err := scanTicket(r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE `+column+` = $1`, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Warn("get failed", zap.String(column, value), zap.Error(err))
		return nil, domain.StoreFailure("ticket get", err)
	}
	return out, nil
}

func (r *postgresRepo) ListByPurchaser(ctx context.Context, purchaser string) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+ticketColumns+`
FROM tickets
WHERE ($1 = '' OR purchaser = $1)
ORDER BY purchased_at DESC, id DESC
`, purchaser)
	if err != nil {
		return nil, domain.StoreFailure("ticket list", err)
	}
	defer rows.Close()

	out := []domain.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, domain.StoreFailure("ticket list", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreFailure("ticket list", err)
	}
	return out, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := row.Scan(&t.ID, &t.Code, &t.Purchaser, &t.AmountCents, &t.PurchasedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
