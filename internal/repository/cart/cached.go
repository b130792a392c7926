package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"analogue-shop/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var errCacheMiss = errors.New("cache miss")

// cachedRepo serves Get from redis and writes every mutation result through.
//
// Each cart has a generation counter next to its entry. Writers bump it before
// and after the backing mutation and entries are only served while their
// generation matches, so an entry written by a slower or older writer is never
// read back. When a bump cannot reach redis the cart is marked pending and
// reads bypass the cache until a later bump succeeds.
//
// Redis failures never fail a call: a circuit breaker trips after repeated
// errors and the cache is bypassed until it half-opens again.
type cachedRepo struct {
	next    Repository
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker[any]
	ttl     time.Duration
	logger  *zap.Logger
	pending sync.Map
}

type cacheEntry struct {
	Gen  int64        `json:"gen"`
	Cart *domain.Cart `json:"cart"`
}

// NewCached wraps next with a redis read-through cache. ttl is the base expiry;
// up to 20% jitter is added per entry.
func NewCached(next Repository, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger = logger.Named("cart_cache")
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "cart-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breaker state change", zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
	return &cachedRepo{next: next, client: client, breaker: breaker, ttl: ttl, logger: logger}
}

func (r *cachedRepo) Get(ctx context.Context, id string) (*domain.Cart, error) {
	if _, stale := r.pending.Load(id); stale {
		if _, ok := r.invalidate(ctx, id); !ok {
			return r.next.Get(ctx, id)
		}
	}

	c, gen, err := r.load(ctx, id)
	if err == nil {
		return c, nil
	}
	c, getErr := r.next.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if errors.Is(err, errCacheMiss) {
		r.store(ctx, c, gen)
	}
	return c, nil
}

func (r *cachedRepo) Create(ctx context.Context, lines []domain.LineItem) (*domain.Cart, error) {
	return r.write(ctx, "", func() (*domain.Cart, error) { return r.next.Create(ctx, lines) })
}

func (r *cachedRepo) AddItem(ctx context.Context, id, productID string, qty int) (*domain.Cart, error) {
	return r.write(ctx, id, func() (*domain.Cart, error) { return r.next.AddItem(ctx, id, productID, qty) })
}

func (r *cachedRepo) RemoveItem(ctx context.Context, id, productID string) (*domain.Cart, error) {
	return r.write(ctx, id, func() (*domain.Cart, error) { return r.next.RemoveItem(ctx, id, productID) })
}

func (r *cachedRepo) SetItems(ctx context.Context, id string, lines []domain.LineItem) (*domain.Cart, error) {
	return r.write(ctx, id, func() (*domain.Cart, error) { return r.next.SetItems(ctx, id, lines) })
}

func (r *cachedRepo) UpdateQuantity(ctx context.Context, id, productID string, qty int) (*domain.Cart, error) {
	return r.write(ctx, id, func() (*domain.Cart, error) { return r.next.UpdateQuantity(ctx, id, productID, qty) })
}

func (r *cachedRepo) Clear(ctx context.Context, id string) (*domain.Cart, error) {
	return r.write(ctx, id, func() (*domain.Cart, error) { return r.next.Clear(ctx, id) })
}

// write runs the backing mutation between two generation bumps and caches the
// result under the second one. id is empty for Create.
func (r *cachedRepo) write(ctx context.Context, id string, fn func() (*domain.Cart, error)) (*domain.Cart, error) {
	if id != "" {
		r.invalidate(ctx, id)
	}
	c, err := fn()
	if err != nil {
		if id != "" && !errors.Is(err, domain.ErrNotFound) {
			r.invalidate(ctx, id)
		}
		return nil, err
	}
	if gen, ok := r.invalidate(ctx, c.ID); ok {
		r.store(ctx, c, gen)
	}
	return c, nil
}

// invalidate bumps the cart's generation, which retires any cached entry. On
// failure the cart stays pending until a bump succeeds.
func (r *cachedRepo) invalidate(ctx context.Context, id string) (int64, bool) {
	gen, err := r.breaker.Execute(func() (any, error) {
		var incr *redis.IntCmd
		_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, genKey(id))
			p.Expire(ctx, genKey(id), 2*r.ttl)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return incr.Val(), nil
	})
	if err != nil {
		r.pending.Store(id, struct{}{})
		r.logger.Debug("cache invalidate skipped", zap.String("cart_id", id), zap.Error(err))
		return 0, false
	}
	r.pending.Delete(id)
	return gen.(int64), true
}

// load returns the cached cart. On errCacheMiss the returned generation is the
// current one and a fresh read may be stored under it.
func (r *cachedRepo) load(ctx context.Context, id string) (*domain.Cart, int64, error) {
	out, err := r.breaker.Execute(func() (any, error) {
		return r.client.MGet(ctx, cacheKey(id), genKey(id)).Result()
	})
	if err != nil {
		r.logger.Debug("cache read skipped", zap.String("cart_id", id), zap.Error(err))
		return nil, 0, err
	}
	vals := out.([]any)

	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, 0, fmt.Errorf("decode cart generation: %w", err)
		}
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, errCacheMiss
	}
	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Cart == nil {
		r.logger.Debug("cached cart unreadable", zap.String("cart_id", id), zap.Error(err))
		return nil, gen, errCacheMiss
	}
	if entry.Gen != gen {
		return nil, gen, errCacheMiss
	}
	return normalize(entry.Cart), gen, nil
}

func (r *cachedRepo) store(ctx context.Context, c *domain.Cart, gen int64) {
	data, err := json.Marshal(cacheEntry{Gen: gen, Cart: c})
	if err != nil {
		r.logger.Warn("encode cart", zap.String("cart_id", c.ID), zap.Error(err))
		return
	}
	_, err = r.breaker.Execute(func() (any, error) {
		return nil, r.client.Set(ctx, cacheKey(c.ID), data, r.jitteredTTL()).Err()
	})
	if err != nil {
		r.logger.Debug("cache write skipped", zap.String("cart_id", c.ID), zap.Error(err))
	}
}

func (r *cachedRepo) jitteredTTL() time.Duration {
	return r.ttl + time.Duration(rand.Int63n(int64(r.ttl)/5+1))
}

// Both keys of a cart share a hash tag so MGET works on a cluster.
func cacheKey(id string) string {
	return fmt.Sprintf("cart:{%s}", id)
}

func genKey(id string) string {
	return fmt.Sprintf("cart:{%s}:gen", id)
}
