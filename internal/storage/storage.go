// Package storage builds the product, cart and ticket stores for the backend
// named by DATA_SOURCE and owns the underlying connections.
package storage

import (
	"context"
	"errors"
	"fmt"

	"analogue-shop/internal/config"
	"analogue-shop/internal/db"
	"analogue-shop/internal/migrate"
	cartrepo "analogue-shop/internal/repository/cart"
	productrepo "analogue-shop/internal/repository/product"
	ticketrepo "analogue-shop/internal/repository/ticket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores groups the repositories of one backend.
type Stores struct {
	Products productrepo.Repository
	Carts    cartrepo.Repository
	Tickets  ticketrepo.Repository
	// CartSource is the cart store without the read cache. It equals Carts
	// when no cache is configured.
	CartSource cartrepo.Repository

	pingers []func(context.Context) error
	closers []func(context.Context) error
}

// Open connects to the configured backend. The caller must Close the result.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		s   *Stores
		err error
	)
	switch cfg.DataSource {
	case config.DataSourceMemory:
		s = OpenMemory()
	case config.DataSourcePostgres:
		s, err = openPostgres(ctx, cfg, logger)
	case config.DataSourceMongo:
		s, err = openMongo(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
	if err != nil {
		return nil, err
	}

	s.CartSource = s.Carts
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			// the breaker in the cached store bypasses redis until it recovers
			logger.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		s.Carts = cartrepo.NewCached(s.Carts, client, cfg.CartCacheTTL, logger)
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })
	}

	logger.Info("storage opened", zap.String("data_source", cfg.DataSource), zap.Bool("cart_cache", cfg.RedisAddr != ""))
	return s, nil
}

// OpenMemory returns process-local stores, used for development and tests.
func OpenMemory() *Stores {
	carts := cartrepo.NewMemory()
	return &Stores{
		Products:   productrepo.NewMemory(),
		Carts:      carts,
		Tickets:    ticketrepo.NewMemory(),
		CartSource: carts,
	}
}

func openPostgres(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Stores, error) {
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	version, dirty, err := migrate.Version(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("check schema: %w", err)
	}
	if version == 0 || dirty {
		logger.Warn("schema not migrated, run cmd/migrate", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}

	return &Stores{
		Products: productrepo.NewPostgres(pool, logger),
		Carts:    cartrepo.NewPostgres(pool, logger),
		Tickets:  ticketrepo.NewPostgres(pool, logger),
		pingers:  []func(context.Context) error{pool.Ping},
		closers: []func(context.Context) error{func(context.Context) error {
			pool.Close()
			return nil
		}},
	}, nil
}

func openMongo(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Stores, error) {
	database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	client := database.Client()

	if err := productrepo.CreateMongoIndexes(ctx, database); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if err := ticketrepo.CreateMongoIndexes(ctx, database); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &Stores{
		Products: productrepo.NewMongo(database, logger),
		Carts:    cartrepo.NewMongo(database, logger),
		Tickets:  ticketrepo.NewMongo(database, logger),
		pingers: []func(context.Context) error{func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}},
		closers: []func(context.Context) error{client.Disconnect},
	}, nil
}

// Ping checks every backing connection. Memory stores are always ready.
func (s *Stores) Ping(ctx context.Context) error {
	for _, ping := range s.pingers {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases connections in reverse order of acquisition.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
