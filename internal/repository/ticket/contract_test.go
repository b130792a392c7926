package ticket

import (
	"context"
	"testing"
	"time"

	"analogue-shop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and lookup", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, domain.Ticket{Code: "code-1", Purchaser: "u1", AmountCents: 4000, PurchasedAt: base})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		byID, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4000), byID.AmountCents)
		assert.True(t, base.Equal(byID.PurchasedAt))

		byCode, err := repo.GetByCode(ctx, "code-1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byCode.ID)
	})

	t.Run("zero amount ticket is stored", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, domain.Ticket{Code: "zero", Purchaser: "u1", PurchasedAt: base})
		require.NoError(t, err)
		assert.Equal(t, int64(0), created.AmountCents)
	})

	t.Run("missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.GetByCode(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate code", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, domain.Ticket{Code: "same", Purchaser: "u1", PurchasedAt: base})
		require.NoError(t, err)
		_, err = repo.Create(ctx, domain.Ticket{Code: "same", Purchaser: "u2", PurchasedAt: base})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("list by purchaser newest first", func(t *testing.T) {
		repo := newRepo(t)
		for i, p := range []string{"u1", "u2", "u1"} {
			_, err := repo.Create(ctx, domain.Ticket{
				Code:        "c" + string(rune('a'+i)),
				Purchaser:   p,
				AmountCents: int64(i),
				PurchasedAt: base.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}

		mine, err := repo.ListByPurchaser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "cc", mine[0].Code)
		assert.Equal(t, "ca", mine[1].Code)

		all, err := repo.ListByPurchaser(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		none, err := repo.ListByPurchaser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMemoryRepository(t *testing.T) {
	runContract(t, func(t *testing.T) Repository { return NewMemory() })
}
