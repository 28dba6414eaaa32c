//go:build integration

package integration

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/pgscripts/internal/database"
)

func TestNewPool_setsApplicationName(t *testing.T) {
	t.Parallel()

	pool, err := database.NewPool(context.Background(), SetupPostgresDSN(t))
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	var name string

	err = pool.QueryRow(context.Background(), "SHOW application_name").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, database.ApplicationName, name)
	assert.Equal(t, int32(2), pool.Stat().MaxConns())
}

func TestNewPool_wrongPassword_returnsConnectionFailed(t *testing.T) {
	t.Parallel()

	u, err := url.Parse(SetupPostgresDSN(t))
	require.NoError(t, err)

	u.User = url.UserPassword(testUser, "wrong")

	_, err = database.NewPool(context.Background(), u.String())
	require.ErrorIs(t, err, database.ErrConnectionFailed)
}
