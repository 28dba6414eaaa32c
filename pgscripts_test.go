package pgscripts_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/pgscripts"
)

func TestOpen_invalidURL_returnsInvalidURLError(t *testing.T) {
	t.Parallel()

	cfg := pgscripts.NewConfig()
	cfg.DatabaseURL = "not-a-valid-url"

	h, err := pgscripts.Open(context.Background(), cfg)

	assert.Nil(t, h)
	require.ErrorIs(t, err, pgscripts.ErrInvalidDatabaseURL)
}

func TestOpen_unreachableHost_returnsConnectionFailed(t *testing.T) {
	t.Parallel()

	cfg := pgscripts.NewConfig()
	cfg.DatabaseURL = "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"

	_, err := pgscripts.Open(context.Background(), cfg)

	require.ErrorIs(t, err, pgscripts.ErrConnectionFailed)
}

func TestHandler_zeroValue_isClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := &pgscripts.Handler{}

	require.ErrorIs(t, h.ApplyFile(ctx, "001__init.sql", false), pgscripts.ErrClosed)

	_, err := h.ApplyDir(ctx, t.TempDir())
	require.ErrorIs(t, err, pgscripts.ErrClosed)

	_, err = h.ApplySet(ctx, &pgscripts.ScriptSet{})
	require.ErrorIs(t, err, pgscripts.ErrClosed)

	_, err = h.Status(ctx, t.TempDir())
	require.ErrorIs(t, err, pgscripts.ErrClosed)

	_, err = h.Entries(ctx)
	require.ErrorIs(t, err, pgscripts.ErrClosed)

	assert.Nil(t, h.Session())
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}

func TestLoadScripts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		files     []string
		wantNames []string
		wantErr   error
	}{
		{
			name:      "ordered by sequence",
			files:     []string{"2__b.sql", "1__a.sql"},
			wantNames: []string{"1__a.sql", "2__b.sql"},
		},
		{
			name:    "bootstrap sequence rejected",
			files:   []string{"000__init.sql"},
			wantErr: pgscripts.ErrReservedSequence,
		},
		{
			name:    "unprefixed name rejected",
			files:   []string{"init.sql"},
			wantErr: pgscripts.ErrMalformedScriptName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			for _, name := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
			}

			set, err := pgscripts.LoadScripts(dir)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "loading scripts")

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, set.Names())
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PG_HOST", "db.example.com")
	t.Setenv("PG_SCRIPT_DIRECTORY", "/srv/scripts")

	cfg := pgscripts.ConfigFromEnv()

	assert.Equal(t, "db.example.com", cfg.Host)
	assert.Equal(t, "/srv/scripts", cfg.ScriptDirectory)
}
