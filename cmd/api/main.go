package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"analogue-shop/internal/config"
	"analogue-shop/internal/httpserver"
	"analogue-shop/internal/logging"
	"analogue-shop/internal/metrics"
	cartsvc "analogue-shop/internal/service/cart"
	productsvc "analogue-shop/internal/service/product"
	"analogue-shop/internal/service/purchase"
	ticketsvc "analogue-shop/internal/service/ticket"
	"analogue-shop/internal/storage"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	logger := logging.Must(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()
	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			logger.Warn("close storage", zap.Error(err))
		}
	}()

	m := metrics.New("shop")
	productService := productsvc.New(stores.Products)
	cartService := cartsvc.New(stores.Carts, stores.Products)
	ticketService := ticketsvc.New(stores.Tickets)
	coordinator := purchase.New(stores.Carts, stores.Products, ticketService,
		purchase.WithMetrics(m),
		purchase.WithCartSource(stores.CartSource),
	)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Products:    productService,
		Carts:       cartService,
		Tickets:     ticketService,
		Purchases:   coordinator,
		Metrics:     m,
		Ready:       stores.Ping,
		JWTSecret:   []byte(cfg.JWTSecret),
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr), zap.String("data_source", cfg.DataSource))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
