package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/pgscripts/internal/database"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dsn     string
		wantApp string
		wantDB  string
	}{
		{
			name:    "url gets default application name",
			dsn:     "postgres://u:p@db.example.com:5433/app?sslmode=disable",
			wantApp: database.ApplicationName,
			wantDB:  "app",
		},
		{
			name:    "explicit application name is kept",
			dsn:     "postgres://u:p@localhost/app?application_name=deployer",
			wantApp: "deployer",
			wantDB:  "app",
		},
		{
			name:    "keyword form",
			dsn:     "host=localhost user=u dbname=kv sslmode=disable",
			wantApp: database.ApplicationName,
			wantDB:  "kv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := database.ParseConfig(tt.dsn)
			require.NoError(t, err)

			assert.Equal(t, int32(2), cfg.MaxConns)
			assert.Equal(t, tt.wantApp, cfg.ConnConfig.RuntimeParams["application_name"])
			assert.Equal(t, tt.wantDB, cfg.ConnConfig.Database)
		})
	}
}

func TestNewPool_invalidURL_returnsInvalidURLError(t *testing.T) {
	t.Parallel()

	_, err := database.NewPool(context.Background(), "not-a-valid-url")

	require.ErrorIs(t, err, database.ErrInvalidDatabaseURL)
}

func TestNewPool_unreachableHost_returnsConnectionFailed(t *testing.T) {
	t.Parallel()

	_, err := database.NewPool(context.Background(),
		"postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1")

	require.ErrorIs(t, err, database.ErrConnectionFailed)
}

func TestParseConfig_socketDirectory(t *testing.T) {
	t.Parallel()

	cfg, err := database.ParseConfig(
		"postgres://postgres:postgres@/postgres?host=%2Fvar%2Frun%2Fpostgresql&port=5432&sslmode=disable")
	require.NoError(t, err)

	assert.Equal(t, "/var/run/postgresql", cfg.ConnConfig.Host)
	assert.Equal(t, uint16(5432), cfg.ConnConfig.Port)
	assert.Equal(t, "postgres", cfg.ConnConfig.Database)
}
