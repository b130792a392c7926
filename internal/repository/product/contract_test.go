package product

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"analogue-shop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises behaviour every backend must share.
func runContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, domain.Product{Title: "Lamp", Code: "L-1", Category: "home", PriceCents: 1500, Stock: 3})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Lamp", got.Title)
		assert.Equal(t, int64(1500), got.PriceCents)
		assert.Equal(t, 3, got.Stock)
	})

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate code", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, domain.Product{Title: "A", Code: "dup", PriceCents: 1})
		require.NoError(t, err)
		_, err = repo.Create(ctx, domain.Product{Title: "B", Code: "dup", PriceCents: 1})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("partial update", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, domain.Product{Title: "Mug", Code: "M-1", PriceCents: 900, Stock: 2})
		require.NoError(t, err)

		price := int64(1100)
		updated, err := repo.Update(ctx, created.ID, domain.ProductPatch{PriceCents: &price})
		require.NoError(t, err)
		assert.Equal(t, int64(1100), updated.PriceCents)
		assert.Equal(t, "Mug", updated.Title)
		assert.Equal(t, 2, updated.Stock)

		_, err = repo.Update(ctx, "missing", domain.ProductPatch{PriceCents: &price})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, domain.Product{Title: "Gone", Code: "G-1", PriceCents: 1})
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, created.ID))
		_, err = repo.Get(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, created.ID), domain.ErrNotFound)
	})

	t.Run("list filters sorts and pages", func(t *testing.T) {
		repo := newRepo(t)
		for _, p := range []domain.Product{
			{Title: "a", Code: "a", Category: "x", PriceCents: 300},
			{Title: "b", Code: "b", Category: "x", PriceCents: 100},
			{Title: "c", Code: "c", Category: "y", PriceCents: 200},
			{Title: "d", Code: "d", Category: "x", PriceCents: 200},
		} {
			_, err := repo.Create(ctx, p)
			require.NoError(t, err)
		}

		res, err := repo.List(ctx, ListQuery{Category: "x", Sort: SortPriceAsc, Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "b", res.Items[0].Code)
		assert.Equal(t, "d", res.Items[1].Code)

		res, err = repo.List(ctx, ListQuery{Category: "x", Sort: SortPriceAsc, Page: 2, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "a", res.Items[0].Code)

		res, err = repo.List(ctx, ListQuery{Sort: SortPriceDesc, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Total)
		assert.Equal(t, "a", res.Items[0].Code)

		res, err = repo.List(ctx, ListQuery{Page: 5, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Total)
		assert.Empty(t, res.Items)
	})

	t.Run("upsert keeps id by code", func(t *testing.T) {
		repo := newRepo(t)
		first, err := repo.Upsert(ctx, domain.Product{Title: "Chair", Code: "C-1", PriceCents: 5000, Stock: 1})
		require.NoError(t, err)
		second, err := repo.Upsert(ctx, domain.Product{Title: "Chair v2", Code: "C-1", PriceCents: 5500, Stock: 4})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Chair v2", second.Title)
		assert.Equal(t, 4, second.Stock)
	})

	t.Run("decrement exact stock then one more", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, domain.Product{Title: "Pen", Code: "P-1", PriceCents: 100, Stock: 5})
		require.NoError(t, err)

		written, ok, err := repo.DecrementStock(ctx, created.ID, 6)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, written)

		written, ok, err = repo.DecrementStock(ctx, created.ID, 5)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NotNil(t, written)
		assert.Equal(t, 0, written.Stock)
		assert.Equal(t, int64(100), written.PriceCents)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Stock)

		_, ok, err = repo.DecrementStock(ctx, created.ID, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("decrement rejects bad input", func(t *testing.T) {
		repo := newRepo(t)
		_, _, err := repo.DecrementStock(ctx, "missing", 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, _, err = repo.DecrementStock(ctx, "missing", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})

	t.Run("decrement returns the price it was taken at", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, domain.Product{Title: "Lamp", Code: "L-1", PriceCents: 700, Stock: 3})
		require.NoError(t, err)
		price := int64(900)
		_, err = repo.Update(ctx, created.ID, domain.ProductPatch{PriceCents: &price})
		require.NoError(t, err)

		written, ok, err := repo.DecrementStock(ctx, created.ID, 2)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(900), written.PriceCents)
		assert.Equal(t, 1, written.Stock)
	})

	t.Run("increment stock", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, domain.Product{Title: "Cup", Code: "CU-1", PriceCents: 100, Stock: 0})
		require.NoError(t, err)
		p, err := repo.IncrementStock(ctx, created.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)
		_, err = repo.IncrementStock(ctx, "missing", 3)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent decrements never oversell", func(t *testing.T) {
		repo := newRepo(t)
		const stock = 10
		created, err := repo.Create(ctx, domain.Product{Title: "Hot", Code: "H-1", PriceCents: 100, Stock: stock})
		require.NoError(t, err)

		var wins atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := repo.DecrementStock(ctx, created.ID, 1)
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(stock), wins.Load())
		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Stock)
	})
}

func TestMemoryRepository(t *testing.T) {
	runContract(t, func(t *testing.T) Repository { return NewMemory() })
}

// Run with -race: List must not read entries that writers mutate in place.
func TestMemoryRepository_ListWhileWriting(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	var ids []string
	for i := 0; i < 5; i++ {
		p, err := repo.Create(ctx, domain.Product{Title: "t", Code: fmt.Sprintf("R-%d", i), PriceCents: int64(i), Stock: 1000})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	const rounds = 2000
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := repo.List(ctx, ListQuery{Sort: SortPriceAsc, Page: 1, PageSize: 10})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			price := int64(i)
			_, err := repo.Update(ctx, ids[i%len(ids)], domain.ProductPatch{PriceCents: &price})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds/10; i++ {
			_, _, err := repo.DecrementStock(ctx, ids[i%len(ids)], 1)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	res, err := repo.List(ctx, ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
}
