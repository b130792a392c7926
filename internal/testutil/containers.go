// Package testutil starts throwaway databases for repository integration tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"analogue-shop/internal/db"
	"analogue-shop/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
)

// Postgres starts a postgres container, applies migrations and returns a pool.
// The test is skipped in -short mode.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("shop_test"),
		postgres.WithUsername("shop"),
		postgres.WithPassword("shop"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migrate.Apply(ctx, pool))
	return pool
}

// ResetPostgres empties every table between subtests.
func ResetPostgres(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE cart_lines, carts, products, tickets`)
	require.NoError(t, err)
}

// Mongo starts a mongo container and returns a database handle. The test is
// skipped in -short mode.
func Mongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("mongo integration test skipped in short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate mongo container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	database, err := db.ConnectMongo(ctx, uri, "shop_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Client().Disconnect(context.Background()) })
	return database
}

// ResetMongo drops the database so each subtest starts empty.
func ResetMongo(t *testing.T, database *mongo.Database) {
	t.Helper()
	require.NoError(t, database.Drop(context.Background()))
}
