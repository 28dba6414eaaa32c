package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("pgscripts.database")

// ApplicationName is reported to the server unless the DSN names one.
const ApplicationName = "pgscripts"

// maxConns covers the ledger session plus one spare for callers that
// borrow the pool directly.
const maxConns = 2

// ParseConfig parses a connection string into a pool config sized for a
// single script session. It accepts URL and keyword/value forms.
func ParseConfig(databaseURL string) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = maxConns

	params := poolCfg.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = ApplicationName
	}

	return poolCfg, nil
}

// NewPool creates a pool for databaseURL and pings the server, so a bad
// host or credentials fail here rather than on the first script.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	cc := poolCfg.ConnConfig
	logger.Debugf("connected to %s:%d/%s as %s", cc.Host, cc.Port, cc.Database, cc.User)

	return pool, nil
}
