package purchase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"analogue-shop/internal/domain"
	"analogue-shop/internal/metrics"
	cartrepo "analogue-shop/internal/repository/cart"
	productrepo "analogue-shop/internal/repository/product"
	ticketrepo "analogue-shop/internal/repository/ticket"
	ticketsvc "analogue-shop/internal/service/ticket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	products productrepo.Repository
	carts    cartrepo.Repository
	tickets  ticketrepo.Repository
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		products: productrepo.NewMemory(),
		carts:    cartrepo.NewMemory(),
		tickets:  ticketrepo.NewMemory(),
	}
	f.coord = New(f.carts, f.products, ticketsvc.New(f.tickets))
	return f
}

func (f *fixture) product(t *testing.T, code string, priceCents int64, stock int) string {
	t.Helper()
	p, err := f.products.Create(context.Background(), domain.Product{Title: code, Code: code, PriceCents: priceCents, Stock: stock})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) cart(t *testing.T, lines ...domain.LineItem) string {
	t.Helper()
	c, err := f.carts.Create(context.Background(), lines)
	require.NoError(t, err)
	return c.ID
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestPurchase_PartialFulfilment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	x := f.product(t, "X", 10, 5)
	y := f.product(t, "Y", 20, 1)
	cartID := f.cart(t, domain.LineItem{ProductID: x, Quantity: 3}, domain.LineItem{ProductID: y, Quantity: 2})

	res, err := f.coord.Purchase(ctx, cartID, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(30), res.Ticket.AmountCents)
	assert.Equal(t, "user-1", res.Ticket.Purchaser)
	assert.Equal(t, []domain.LineItem{{ProductID: x, Quantity: 3}}, res.Purchased)
	require.Len(t, res.NotPurchased, 1)
	assert.Equal(t, Unfulfilled{LineItem: domain.LineItem{ProductID: y, Quantity: 2}, Reason: ReasonInsufficientStock}, res.NotPurchased[0])

	assert.Equal(t, 2, f.stock(t, x))
	assert.Equal(t, 1, f.stock(t, y))

	c, err := f.carts.Get(ctx, cartID)
	require.NoError(t, err)
	assert.Equal(t, []domain.LineItem{{ProductID: y, Quantity: 2}}, c.Lines)

	stored, err := f.tickets.GetByCode(ctx, res.Ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, res.Ticket.ID, stored.ID)
}

func TestPurchase_DeletedProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	x := f.product(t, "X", 10, 5)
	gone := f.product(t, "G", 99, 5)
	require.NoError(t, f.products.Delete(ctx, gone))
	cartID := f.cart(t, domain.LineItem{ProductID: gone, Quantity: 1}, domain.LineItem{ProductID: x, Quantity: 1})

	res, err := f.coord.Purchase(ctx, cartID, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(10), res.Ticket.AmountCents)
	require.Len(t, res.NotPurchased, 1)
	assert.Equal(t, gone, res.NotPurchased[0].ProductID)
	assert.Equal(t, ReasonProductUnavailable, res.NotPurchased[0].Reason)
	assert.Equal(t, 4, f.stock(t, x))
}

func TestPurchase_NothingFulfillableStillIssuesTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product(t, "A", 10, 0)
	b := f.product(t, "B", 10, 1)
	original := []domain.LineItem{{ProductID: a, Quantity: 1}, {ProductID: b, Quantity: 2}}
	cartID := f.cart(t, original...)

	res, err := f.coord.Purchase(ctx, cartID, "user-1")
	require.NoError(t, err)

	require.NotNil(t, res.Ticket)
	assert.Equal(t, int64(0), res.Ticket.AmountCents)
	assert.Empty(t, res.Purchased)

	c, err := f.carts.Get(ctx, cartID)
	require.NoError(t, err)
	assert.Equal(t, original, c.Lines)
}

func TestPurchase_ConcurrentBuyersOfLastUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	z := f.product(t, "Z", 500, 1)
	cart1 := f.cart(t, domain.LineItem{ProductID: z, Quantity: 1})
	cart2 := f.cart(t, domain.LineItem{ProductID: z, Quantity: 1})

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	for i, id := range []string{cart1, cart2} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = f.coord.Purchase(ctx, id, "user")
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	var winners, losers int
	for _, r := range results {
		switch {
		case len(r.Purchased) == 1 && r.Ticket.AmountCents == 500:
			winners++
		case len(r.NotPurchased) == 1 && r.Ticket.AmountCents == 0:
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)
	assert.Equal(t, 0, f.stock(t, z))
}

func TestPurchase_ManyBuyersNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const stock = 7
	p := f.product(t, "P", 100, stock)

	carts := make([]string, 40)
	for i := range carts {
		carts[i] = f.cart(t, domain.LineItem{ProductID: p, Quantity: 1})
	}

	var (
		mu    sync.Mutex
		total int64
		wg    sync.WaitGroup
	)
	for _, id := range carts {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := f.coord.Purchase(ctx, id, "u")
			if err != nil {
				t.Errorf("purchase: %v", err)
				return
			}
			mu.Lock()
			total += res.Ticket.AmountCents
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 0, f.stock(t, p))
	assert.Equal(t, int64(stock*100), total)
}

func TestPurchase_ExactStockBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", 10, 4)

	over, err := f.coord.Purchase(ctx, f.cart(t, domain.LineItem{ProductID: p, Quantity: 5}), "u")
	require.NoError(t, err)
	assert.Empty(t, over.Purchased)
	assert.Equal(t, 4, f.stock(t, p))

	exact, err := f.coord.Purchase(ctx, f.cart(t, domain.LineItem{ProductID: p, Quantity: 4}), "u")
	require.NoError(t, err)
	assert.Len(t, exact.Purchased, 1)
	assert.Equal(t, int64(40), exact.Ticket.AmountCents)
	assert.Equal(t, 0, f.stock(t, p))
}

func TestPurchase_LinesPartitionTheCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product(t, "A", 3, 10)
	b := f.product(t, "B", 7, 0)
	c := f.product(t, "C", 11, 2)
	original := []domain.LineItem{{ProductID: a, Quantity: 2}, {ProductID: b, Quantity: 1}, {ProductID: c, Quantity: 2}}
	cartID := f.cart(t, original...)

	res, err := f.coord.Purchase(ctx, cartID, "u")
	require.NoError(t, err)

	seen := append([]domain.LineItem{}, res.Purchased...)
	seen = append(seen, res.Residual()...)
	assert.ElementsMatch(t, original, seen)
	assert.Equal(t, int64(2*3+2*11), res.Ticket.AmountCents)
}

func TestPurchase_EmptyCart(t *testing.T) {
	f := newFixture(t)
	res, err := f.coord.Purchase(context.Background(), f.cart(t), "u")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Ticket.AmountCents)
	assert.Empty(t, res.NotPurchased)
}

func TestPurchase_MissingCart(t *testing.T) {
	f := newFixture(t)
	res, err := f.coord.Purchase(context.Background(), "missing", "u")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, res)

	all, err := f.tickets.ListByPurchaser(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPurchase_BlankUserTakesNoStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "X", 10, 5)
	cartID := f.cart(t, domain.LineItem{ProductID: p, Quantity: 3})

	for _, user := range []string{"   ", "\t\n"} {
		res, err := f.coord.Purchase(context.Background(), cartID, user)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Nil(t, res)
	}

	assert.Equal(t, 5, f.stock(t, p))
	c, err := f.carts.Get(context.Background(), cartID)
	require.NoError(t, err)
	assert.Equal(t, []domain.LineItem{{ProductID: p, Quantity: 3}}, c.Lines)
	tickets, err := f.tickets.ListByPurchaser(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestPurchase_TrimsPurchaser(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "X", 10, 5)

	res, err := f.coord.Purchase(context.Background(), f.cart(t, domain.LineItem{ProductID: p, Quantity: 1}), "  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Ticket.Purchaser)
}

func TestPurchase_RequiresUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Purchase(context.Background(), f.cart(t), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPurchase_SecondPurchaseIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", 10, 5)
	cartID := f.cart(t, domain.LineItem{ProductID: p, Quantity: 2})

	_, err := f.coord.Purchase(ctx, cartID, "u")
	require.NoError(t, err)
	again, err := f.coord.Purchase(ctx, cartID, "u")
	require.NoError(t, err)

	assert.Equal(t, int64(0), again.Ticket.AmountCents)
	assert.Equal(t, 3, f.stock(t, p))
}

// flakyProducts fails stock operations for one product id.
type flakyProducts struct {
	productrepo.Repository
	failID string
}

func (f *flakyProducts) DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, bool, error) {
	if id == f.failID {
		return nil, false, domain.StoreFailure("product decrement", errors.New("connection reset"))
	}
	return f.Repository.DecrementStock(ctx, id, qty)
}

func TestPurchase_StoreErrorOnOneLineKeepsGoing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product(t, "A", 10, 5)
	b := f.product(t, "B", 20, 5)
	coord := New(f.carts, &flakyProducts{Repository: f.products, failID: a}, ticketsvc.New(f.tickets))
	cartID := f.cart(t, domain.LineItem{ProductID: a, Quantity: 1}, domain.LineItem{ProductID: b, Quantity: 1})

	res, err := coord.Purchase(ctx, cartID, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Ticket.AmountCents)
	require.Len(t, res.NotPurchased, 1)
	assert.Equal(t, ReasonStoreError, res.NotPurchased[0].Reason)
	assert.Equal(t, 5, f.stock(t, a))
}

// repricingProducts changes the price of every product just before its stock
// is taken.
type repricingProducts struct {
	productrepo.Repository
	price int64
}

func (r *repricingProducts) DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, bool, error) {
	if _, err := r.Repository.Update(ctx, id, domain.ProductPatch{PriceCents: &r.price}); err != nil {
		return nil, false, err
	}
	return r.Repository.DecrementStock(ctx, id, qty)
}

func TestPurchase_PricesAtDecrementedState(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "P", 10, 5)
	coord := New(f.carts, &repricingProducts{Repository: f.products, price: 25}, ticketsvc.New(f.tickets))

	res, err := coord.Purchase(context.Background(), f.cart(t, domain.LineItem{ProductID: p, Quantity: 2}), "u")
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Ticket.AmountCents)
}

// staleCarts serves a fixed cart regardless of what the backing store holds.
type staleCarts struct {
	cartrepo.Repository
	snapshot *domain.Cart
}

func (s *staleCarts) Get(context.Context, string) (*domain.Cart, error) {
	c := *s.snapshot
	return &c, nil
}

func TestPurchase_CartSourceBypassesStaleReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", 10, 5)
	cartID := f.cart(t, domain.LineItem{ProductID: p, Quantity: 2})
	snapshot, err := f.carts.Get(ctx, cartID)
	require.NoError(t, err)

	cached := &staleCarts{Repository: f.carts, snapshot: snapshot}
	coord := New(cached, f.products, ticketsvc.New(f.tickets), WithCartSource(f.carts))

	_, err = coord.Purchase(ctx, cartID, "u")
	require.NoError(t, err)
	again, err := coord.Purchase(ctx, cartID, "u")
	require.NoError(t, err)

	assert.Empty(t, again.Purchased)
	assert.Equal(t, int64(0), again.Ticket.AmountCents)
	assert.Equal(t, 3, f.stock(t, p))
}

// cancellingProducts cancels the purchase context after the first decrement.
type cancellingProducts struct {
	productrepo.Repository
	cancel context.CancelFunc
}

func (c *cancellingProducts) DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, bool, error) {
	p, ok, err := c.Repository.DecrementStock(ctx, id, qty)
	c.cancel()
	return p, ok, err
}

func TestPurchase_CancellationKeepsCommittedLines(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 10, 5)
	b := f.product(t, "B", 20, 5)
	cartID := f.cart(t, domain.LineItem{ProductID: a, Quantity: 1}, domain.LineItem{ProductID: b, Quantity: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coord := New(f.carts, &cancellingProducts{Repository: f.products, cancel: cancel}, ticketsvc.New(f.tickets))

	res, err := coord.Purchase(ctx, cartID, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Ticket.AmountCents)
	require.Len(t, res.NotPurchased, 1)
	assert.Equal(t, Unfulfilled{LineItem: domain.LineItem{ProductID: b, Quantity: 1}, Reason: ReasonCancelled}, res.NotPurchased[0])
	assert.Equal(t, 4, f.stock(t, a))
	assert.Equal(t, 5, f.stock(t, b))

	c, err := f.carts.Get(context.Background(), cartID)
	require.NoError(t, err)
	assert.Equal(t, []domain.LineItem{{ProductID: b, Quantity: 1}}, c.Lines)
}

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, string, int64) (*domain.Ticket, error) {
	return nil, domain.StoreFailure("ticket create", errors.New("disk full"))
}

func TestPurchase_TicketFailureSurfacesRetryableError(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "P", 10, 5)
	cartID := f.cart(t, domain.LineItem{ProductID: p, Quantity: 1})
	coord := New(f.carts, f.products, failingIssuer{})

	_, err := coord.Purchase(context.Background(), cartID, "u")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	// no compensation: taken stock stays taken
	assert.Equal(t, 4, f.stock(t, p))
}

type failingRewrite struct {
	cartrepo.Repository
}

func (failingRewrite) SetItems(context.Context, string, []domain.LineItem) (*domain.Cart, error) {
	return nil, domain.StoreFailure("cart set items", errors.New("timeout"))
}

func TestPurchase_CartRewriteFailureReturnsReceipt(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "P", 10, 5)
	cartID := f.cart(t, domain.LineItem{ProductID: p, Quantity: 1})
	coord := New(failingRewrite{Repository: f.carts}, f.products, ticketsvc.New(f.tickets))

	res, err := coord.Purchase(context.Background(), cartID, "u")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, int64(10), res.Ticket.AmountCents)
}

func TestPurchase_RecordsMetrics(t *testing.T) {
	f := newFixture(t)
	m := metrics.New("test")
	coord := New(f.carts, f.products, ticketsvc.New(f.tickets), WithMetrics(m))
	p := f.product(t, "P", 10, 1)

	_, err := coord.Purchase(context.Background(), f.cart(t, domain.LineItem{ProductID: p, Quantity: 1}), "u")
	require.NoError(t, err)
	_, err = coord.Purchase(context.Background(), "missing", "u")
	require.Error(t, err)

	count, err := testutil.GatherAndCount(m.Registry(), "test_usecase_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
