package main

import (
	"context"

	"analogue-shop/internal/config"
	"analogue-shop/internal/logging"
	"analogue-shop/internal/seed"
	"analogue-shop/internal/storage"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.Must("seed", cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if cfg.DataSource == config.DataSourceMemory {
		logger.Warn("seeding the memory store has no lasting effect; set DATA_SOURCE")
	}

	ctx := context.Background()
	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer func() { _ = stores.Close(context.Background()) }()

	n, err := seed.Apply(ctx, stores.Products)
	if err != nil {
		logger.Fatal("seed apply", zap.Int("applied", n), zap.Error(err))
	}
	logger.Info("seed applied", zap.Int("products", n), zap.String("data_source", cfg.DataSource))
}
