package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"analogue-shop/internal/config"
	"analogue-shop/internal/importer"
	"analogue-shop/internal/logging"
	"analogue-shop/internal/storage"
	"go.uber.org/zap"
)

func main() {
	var (
		filePath string
		restock  bool
	)
	flag.StringVar(&filePath, "file", "", "Path to product CSV file")
	flag.BoolVar(&restock, "restock", false, "Add the stock column to existing products by id instead of upserting")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger := logging.Must("importer", cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer func() { _ = stores.Close(context.Background()) }()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	mode := importer.ModeUpsert
	if restock {
		mode = importer.ModeRestock
	}
	imp := importer.NewCSVImporter(f, stores.Products, mode)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal("import failed", zap.Int("imported", count), zap.Error(err))
	}

	fmt.Printf("Imported %d rows into %s in %s\n", count, cfg.DataSource, time.Since(start).Truncate(time.Millisecond))
}
