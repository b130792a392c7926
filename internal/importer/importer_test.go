package importer

import (
	"context"
	"strings"
	"testing"

	"analogue-shop/internal/domain"
	productrepo "analogue-shop/internal/repository/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProductRepo struct {
	items    []domain.Product
	restocks map[string]int
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.items = append(s.items, p)
	return &p, nil
}

func (s *stubProductRepo) IncrementStock(_ context.Context, id string, qty int) (*domain.Product, error) {
	if s.restocks == nil {
		s.restocks = map[string]int{}
	}
	s.restocks[id] += qty
	return &domain.Product{ID: id, Stock: qty}, nil
}

func TestCSVImporter_Upsert(t *testing.T) {
	csvData := `code,title,description,category,price_cents,stock
mug,Mug,Ceramic,kitchen,1299,4

pen, Pen ,,office,150,0
`
	repo := &stubProductRepo{}
	count, err := NewCSVImporter(strings.NewReader(csvData), repo, ModeUpsert).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, repo.items, 2)

	assert.Equal(t, domain.Product{Code: "mug", Title: "Mug", Description: "Ceramic", Category: "kitchen", PriceCents: 1299, Stock: 4}, repo.items[0])
	assert.Equal(t, "Pen", repo.items[1].Title)
	assert.Zero(t, repo.items[1].Stock)
}

func TestCSVImporter_StopsAtInvalidRow(t *testing.T) {
	csvData := `code,title,price_cents,stock
a,A,100,1
,missing code,100,1
c,C,100,1
`
	repo := &stubProductRepo{}
	count, err := NewCSVImporter(strings.NewReader(csvData), repo, ModeUpsert).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Equal(t, 1, count)
}

func TestCSVImporter_RejectsBadNumbers(t *testing.T) {
	for _, csvData := range []string{
		"code,title,price_cents\na,A,ten\n",
		"code,title,stock\na,A,-\n",
		"code,title,stock\na,A,-2\n",
	} {
		_, err := NewCSVImporter(strings.NewReader(csvData), &stubProductRepo{}, ModeUpsert).Run(context.Background())
		assert.Error(t, err, csvData)
	}
}

func TestCSVImporter_Restock(t *testing.T) {
	csvData := `id,stock
p1,3
p2,5
p1,2
`
	repo := &stubProductRepo{}
	count, err := NewCSVImporter(strings.NewReader(csvData), repo, ModeRestock).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, map[string]int{"p1": 5, "p2": 5}, repo.restocks)

	_, err = NewCSVImporter(strings.NewReader("id,stock\np1,0\n"), repo, ModeRestock).Run(context.Background())
	assert.Error(t, err)
}

func TestCSVImporter_UpsertIsIdempotentByCode(t *testing.T) {
	repo := productrepo.NewMemory()
	csvData := "code,title,price_cents,stock\nmug,Mug,1299,4\n"

	for i := 0; i < 2; i++ {
		_, err := NewCSVImporter(strings.NewReader(csvData), repo, ModeUpsert).Run(context.Background())
		require.NoError(t, err)
	}

	res, err := repo.List(context.Background(), productrepo.ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, 4, res.Items[0].Stock)
}
