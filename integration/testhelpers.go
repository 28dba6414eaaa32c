//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/pgscripts"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "pgscripts_test"
	testUser      = "pgscripts"
	testPassword  = "pgscripts"
)

// SetupPostgresDSN starts a PostgreSQL 16 container and returns its
// connection string. The container is terminated when the test completes.
func SetupPostgresDSN(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase(testDB),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	return dsn
}

// SetupPostgres starts a container and returns a connection pool to it.
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, SetupPostgresDSN(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	require.NoError(t, pool.Ping(ctx))

	return pool
}

// OpenHandler opens a Handler against dsn and closes it on cleanup.
func OpenHandler(t *testing.T, dsn string, opts ...pgscripts.Option) *pgscripts.Handler {
	t.Helper()

	cfg := pgscripts.NewConfig()
	cfg.DatabaseURL = dsn

	h, err := pgscripts.Open(context.Background(), cfg, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, h.Close())
	})

	return h
}

// WriteScripts writes name -> body pairs into a fresh directory.
func WriteScripts(t *testing.T, scripts map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, body := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}

	return dir
}

// TableExists reports whether a table is visible in the current schema.
func TableExists(t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()

	var exists bool

	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)",
		name,
	).Scan(&exists)
	require.NoError(t, err)

	return exists
}

// LedgerHash returns the hash recorded for name and whether a row exists.
func LedgerHash(t *testing.T, pool *pgxpool.Pool, name string) (string, bool) {
	t.Helper()

	rows, err := pool.Query(context.Background(), "SELECT hash FROM pg_scripts WHERE file_name = $1", name)
	require.NoError(t, err)
	defer rows.Close()

	if !rows.Next() {
		require.NoError(t, rows.Err())
		return "", false
	}

	var hash string
	require.NoError(t, rows.Scan(&hash))

	return hash, true
}
