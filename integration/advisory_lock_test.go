//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/pgscripts"
	"github.com/aqasim81/pgscripts/internal/database"
)

func acquireConn(t *testing.T, pool *pgxpool.Pool) *pgxpool.Conn {
	t.Helper()

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	t.Cleanup(conn.Release)

	return conn
}

func TestAdvisoryLock_acquireAndRelease(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	conn := acquireConn(t, pool)

	handle, err := database.TryAcquireLock(ctx, conn)
	require.NoError(t, err)
	require.NotNil(t, handle)

	require.NoError(t, handle.Release(ctx))
}

func TestAdvisoryLock_otherSession_returnsLockNotAcquired(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	handle1, err := database.TryAcquireLock(ctx, acquireConn(t, pool))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = handle1.Release(context.Background())
	})

	handle2, err := database.TryAcquireLock(ctx, acquireConn(t, pool))
	assert.Nil(t, handle2)
	require.ErrorIs(t, err, database.ErrLockNotAcquired)
}

func TestAdvisoryLock_releaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	handle1, err := database.TryAcquireLock(ctx, acquireConn(t, pool))
	require.NoError(t, err)
	require.NoError(t, handle1.Release(ctx))

	handle2, err := database.TryAcquireLock(ctx, acquireConn(t, pool))
	require.NoError(t, err)
	require.NoError(t, handle2.Release(ctx))
}

func TestLockHandle_Release_idempotent(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	handle, err := database.TryAcquireLock(ctx, acquireConn(t, pool))
	require.NoError(t, err)

	require.NoError(t, handle.Release(ctx))
	require.NoError(t, handle.Release(ctx))
}

func TestOpen_lockHeld_returnsLockNotAcquired(t *testing.T) {
	t.Parallel()

	dsn := SetupPostgresDSN(t)
	OpenHandler(t, dsn)

	cfg := pgscripts.NewConfig()
	cfg.DatabaseURL = dsn

	h, err := pgscripts.Open(context.Background(), cfg)
	assert.Nil(t, h)
	require.ErrorIs(t, err, pgscripts.ErrLockNotAcquired)
}

func TestOpen_lockDisabled_allowsSecondHandler(t *testing.T) {
	t.Parallel()

	dsn := SetupPostgresDSN(t)
	OpenHandler(t, dsn)

	cfg := pgscripts.NewConfig()
	cfg.DatabaseURL = dsn
	cfg.AdvisoryLock = false

	h, err := pgscripts.Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, h.Close())
}

func TestHandler_Close_releasesLock(t *testing.T) {
	t.Parallel()

	dsn := SetupPostgresDSN(t)

	cfg := pgscripts.NewConfig()
	cfg.DatabaseURL = dsn

	first, err := pgscripts.Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := pgscripts.Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
