package product

import (
	"context"
	"errors"
	"fmt"

	"analogue-shop/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const productColumns = `id, title, description, code, category, price_cents, stock, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("product_repo")}
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Warn("get failed", zap.String("id", id), zap.Error(err))
		return nil, domain.StoreFailure("product get", err)
	}
	return p, nil
}

func (r *postgresRepo) Create(ctx context.Context, in domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, title, description, code, category, price_cents, stock)
VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7)
RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q,
		in.ID, in.Title, in.Description, in.Code, in.Category, in.PriceCents, in.Stock,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Warn("create failed", zap.String("code", in.Code), zap.Error(err))
		return nil, domain.StoreFailure("product create", err)
	}
	r.logger.Debug("created", zap.String("id", p.ID), zap.String("code", p.Code))
	return p, nil
}

func (r *postgresRepo) Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	const q = `
UPDATE products SET
    title = COALESCE($2::text, title),
    description = COALESCE($3::text, description),
    code = COALESCE($4::text, code),
    category = COALESCE($5::text, category),
    price_cents = COALESCE($6::bigint, price_cents),
    stock = COALESCE($7::integer, stock),
    updated_at = now()
WHERE id = $1
RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q,
		id, patch.Title, patch.Description, patch.Code, patch.Category, patch.PriceCents, patch.Stock,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Warn("update failed", zap.String("id", id), zap.Error(err))
		return nil, domain.StoreFailure("product update", err)
	}
	return p, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		r.logger.Warn("delete failed", zap.String("id", id), zap.Error(err))
		return domain.StoreFailure("product delete", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE ($1 = '' OR category = $1)`, q.Category).Scan(&total); err != nil {
		r.logger.Warn("count failed", zap.String("category", q.Category), zap.Error(err))
		return nil, domain.StoreFailure("product count", err)
	}

	var limit *int
	if q.PageSize > 0 {
		limit = &q.PageSize
	}
	query := fmt.Sprintf(`
SELECT %s
FROM products
WHERE ($1 = '' OR category = $1)
ORDER BY %s
LIMIT $2 OFFSET $3
`, productColumns, orderClause(q.Sort))

	rows, err := r.pool.Query(ctx, query, q.Category, limit, q.Offset())
	if err != nil {
		r.logger.Warn("list failed", zap.String("category", q.Category), zap.Error(err))
		return nil, domain.StoreFailure("product list", err)
	}
	defer rows.Close()

	res := &ListResult{Total: total, Items: []domain.Product{}}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.StoreFailure("product list", err)
		}
		res.Items = append(res.Items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreFailure("product list", err)
	}
	r.logger.Debug("listed", zap.String("category", q.Category), zap.Int("count", len(res.Items)), zap.Int("total", total))
	return res, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, in domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, title, description, code, category, price_cents, stock)
VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7)
ON CONFLICT (code) DO UPDATE SET
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    category = EXCLUDED.category,
    price_cents = EXCLUDED.price_cents,
    stock = EXCLUDED.stock,
    updated_at = now()
RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q,
		in.ID, in.Title, in.Description, in.Code, in.Category, in.PriceCents, in.Stock,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Warn("upsert failed", zap.String("code", in.Code), zap.Error(err))
		return nil, domain.StoreFailure("product upsert", err)
	}
	r.logger.Debug("upserted", zap.String("id", p.ID), zap.String("code", p.Code))
	return p, nil
}

func (r *postgresRepo) DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, bool, error) {
	if qty <= 0 {
		return nil, false, domain.ErrInvalidQuantity
	}
	const q = `
UPDATE products
SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2
RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id, qty))
	if err == nil {
		r.logger.Debug("stock decremented", zap.String("id", id), zap.Int("qty", qty), zap.Int("stock", p.Stock))
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Warn("decrement failed", zap.String("id", id), zap.Error(err))
		return nil, false, domain.StoreFailure("product decrement", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, false, domain.StoreFailure("product decrement", err)
	}
	if !exists {
		return nil, false, domain.ErrNotFound
	}
	return nil, false, nil
}

func (r *postgresRepo) IncrementStock(ctx context.Context, id string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	p, err := scanProduct(r.pool.QueryRow(ctx, `
UPDATE products
SET stock = stock + $2, updated_at = now()
WHERE id = $1
RETURNING `+productColumns, id, qty))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Warn("increment failed", zap.String("id", id), zap.Error(err))
		return nil, domain.StoreFailure("product increment", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Code, &p.Category, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func orderClause(sort string) string {
	switch sort {
	case SortPriceAsc:
		return "price_cents ASC, created_at DESC"
	case SortPriceDesc:
		return "price_cents DESC, created_at DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
