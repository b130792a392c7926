package cart

import (
	"context"
	"errors"

	"analogue-shop/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("cart_repo")}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *postgresRepo) Create(ctx context.Context, lines []domain.LineItem) (*domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, domain.StoreFailure("cart create", err)
	}
	defer tx.Rollback(ctx)

	var cart domain.Cart
	if err := tx.QueryRow(ctx, `
INSERT INTO carts DEFAULT VALUES
RETURNING id, created_at, updated_at
`).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		r.logger.Warn("create failed", zap.Error(err))
		return nil, domain.StoreFailure("cart create", err)
	}
	if err := insertLines(ctx, tx, cart.ID, lines); err != nil {
		return nil, domain.StoreFailure("cart create", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.StoreFailure("cart create", err)
	}

	cart.Lines = append([]domain.LineItem{}, lines...)
	r.logger.Debug("created", zap.String("cart_id", cart.ID), zap.Int("lines", len(lines)))
	return &cart, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Cart, error) {
	cart, err := fetchCart(ctx, r.pool, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		r.logger.Warn("get failed", zap.String("cart_id", id), zap.Error(err))
		return nil, domain.StoreFailure("cart get", err)
	}
	return cart, nil
}

func (r *postgresRepo) AddItem(ctx context.Context, id, productID string, qty int) (*domain.Cart, error) {
	if !domain.ValidQuantity(qty) {
		return nil, domain.ErrInvalidQuantity
	}
	return r.mutate(ctx, "cart add item", id, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
INSERT INTO cart_lines (cart_id, product_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (cart_id, product_id) DO UPDATE
SET quantity = cart_lines.quantity + EXCLUDED.quantity
WHERE cart_lines.quantity + EXCLUDED.quantity <= $4
`, id, productID, qty, domain.MaxLineQuantity)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrInvalidQuantity
		}
		return nil
	})
}

func (r *postgresRepo) RemoveItem(ctx context.Context, id, productID string) (*domain.Cart, error) {
	return r.mutate(ctx, "cart remove item", id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND product_id = $2`, id, productID)
		return err
	})
}

func (r *postgresRepo) SetItems(ctx context.Context, id string, lines []domain.LineItem) (*domain.Cart, error) {
	return r.mutate(ctx, "cart set items", id, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, id); err != nil {
			return err
		}
		return insertLines(ctx, tx, id, lines)
	})
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, id, productID string, qty int) (*domain.Cart, error) {
	return r.mutate(ctx, "cart update quantity", id, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
UPDATE cart_lines
SET quantity = $3
WHERE cart_id = $1 AND product_id = $2
`, id, productID, qty)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *postgresRepo) Clear(ctx context.Context, id string) (*domain.Cart, error) {
	return r.mutate(ctx, "cart clear", id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, id)
		return err
	})
}

// mutate locks the cart row by touching updated_at, runs fn and returns the
// cart as seen inside the same transaction.
func (r *postgresRepo) mutate(ctx context.Context, op, id string, fn func(tx pgx.Tx) error) (*domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, domain.StoreFailure(op, err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		r.logger.Warn("lock failed", zap.String("op", op), zap.String("cart_id", id), zap.Error(err))
		return nil, domain.StoreFailure(op, err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}

	if err := fn(tx); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidQuantity) {
			return nil, err
		}
		r.logger.Warn("mutation failed", zap.String("op", op), zap.String("cart_id", id), zap.Error(err))
		return nil, domain.StoreFailure(op, err)
	}

	cart, err := fetchCart(ctx, tx, id)
	if err != nil {
		return nil, domain.StoreFailure(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.StoreFailure(op, err)
	}
	return cart, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, cartID string, lines []domain.LineItem) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"cart_lines"},
		[]string{"cart_id", "product_id", "quantity"},
		pgx.CopyFromSlice(len(lines), func(i int) ([]any, error) {
			return []any{cartID, lines[i].ProductID, lines[i].Quantity}, nil
		}),
	)
	return err
}

func fetchCart(ctx context.Context, q querier, id string) (*domain.Cart, error) {
	var cart domain.Cart
	err := q.QueryRow(ctx, `SELECT id, created_at, updated_at FROM carts WHERE id = $1`, id).
		Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT product_id, quantity
FROM cart_lines
WHERE cart_id = $1
ORDER BY position ASC
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cart.Lines = []domain.LineItem{}
	for rows.Next() {
		var line domain.LineItem
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}
