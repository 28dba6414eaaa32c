package pgscripts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/pgscripts/internal/config"
	"github.com/aqasim81/pgscripts/internal/database"
	"github.com/aqasim81/pgscripts/internal/ledger"
	"github.com/aqasim81/pgscripts/internal/runner"
	"github.com/aqasim81/pgscripts/internal/script"
)

type (
	// Config holds connection and behavior settings.
	Config = config.Config
	// Summary lists the scripts a batch applied and skipped.
	Summary = runner.Summary
	// ScriptStatus is one row of a status report.
	ScriptStatus = runner.ScriptStatus
	// ProgressEvent is emitted as a script moves through the apply states.
	ProgressEvent = runner.ProgressEvent
	// Entry is one row of the pg_scripts ledger.
	Entry = ledger.Entry
	// HashMismatchError reports a recorded script whose file changed.
	HashMismatchError = runner.HashMismatchError
	// ExecutionError reports a script the database rejected.
	ExecutionError = runner.ExecutionError
	// SequenceCollisionError names two scripts claiming one sequence id.
	SequenceCollisionError = ledger.SequenceCollisionError
	// ScriptSet is a validated, ordered directory of scripts.
	ScriptSet = script.Set
)

// Errors returned by a Handler. Match them with errors.Is.
var (
	ErrHashMismatch        = runner.ErrHashMismatch
	ErrExecutionFailed     = runner.ErrExecutionFailed
	ErrMalformedScriptName = script.ErrMalformedScriptName
	ErrDuplicateSequence   = script.ErrDuplicateSequence
	ErrReservedSequence    = script.ErrReservedSequence
	ErrDuplicateEntry      = ledger.ErrDuplicateEntry
	ErrSequenceCollision   = ledger.ErrSequenceCollision
	ErrConnectionFailed    = database.ErrConnectionFailed
	ErrInvalidDatabaseURL  = database.ErrInvalidDatabaseURL
	ErrLockNotAcquired     = database.ErrLockNotAcquired
	ErrClosed              = ledger.ErrClosed
)

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return config.New()
}

// ConfigFromEnv returns the defaults overridden by PG_* environment variables.
func ConfigFromEnv() *Config {
	cfg := config.New()
	config.MergeEnv(cfg)

	return cfg
}

// LoadScripts validates and orders the script names in dir without touching
// the database. The result can be passed to Handler.ApplySet.
func LoadScripts(dir string) (*ScriptSet, error) {
	set, err := script.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading scripts: %w", err)
	}

	return set, nil
}

// Option configures a Handler.
type Option func(*options)

type options struct {
	runnerOpts []runner.Option
}

// WithProgressCallback sets a function called on every script state change.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(o *options) { o.runnerOpts = append(o.runnerOpts, runner.WithProgressCallback(fn)) }
}

// WithDryRun verifies scripts without executing or recording them.
func WithDryRun(b bool) Option {
	return func(o *options) { o.runnerOpts = append(o.runnerOpts, runner.WithDryRun(b)) }
}

// Handler owns one database session, the ledger on it and the runner that
// applies scripts through it. A Handler is not safe for concurrent use.
type Handler struct {
	pool   *pgxpool.Pool
	store  *ledger.Store
	lock   *database.LockHandle
	runner *runner.Runner
}

// Open connects to the database, takes the advisory lock if configured and
// creates the ledger table if needed. When cfg.ScriptDirectory is set the
// directory is applied before Open returns. On any error everything acquired
// so far is released.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Handler, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := database.NewPool(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}

	h := &Handler{pool: pool}

	if err := h.init(ctx, cfg, &o); err != nil {
		return nil, errors.Join(err, h.Close())
	}

	return h, nil
}

func (h *Handler) init(ctx context.Context, cfg *Config, o *options) error {
	store, err := ledger.Open(ctx, h.pool,
		ledger.WithLockTimeout(cfg.LockTimeout),
		ledger.WithStatementTimeout(cfg.StatementTimeout),
	)
	if err != nil {
		return err
	}

	h.store = store

	if cfg.AdvisoryLock {
		lock, err := database.TryAcquireLock(ctx, store.Session())
		if err != nil {
			return fmt.Errorf("acquiring script lock: %w", err)
		}

		h.lock = lock
	}

	if err := store.EnsureBootstrapped(ctx); err != nil {
		return err
	}

	h.runner = runner.New(store, o.runnerOpts...)

	if cfg.ScriptDirectory != "" {
		if _, err := h.ApplyDir(ctx, cfg.ScriptDirectory); err != nil {
			return err
		}
	}

	return nil
}

// ApplyFile applies a single script file. With bypassVerification the ledger
// is not consulted first; the script always runs and is always recorded.
func (h *Handler) ApplyFile(ctx context.Context, path string, bypassVerification bool) error {
	if h.runner == nil || h.store.Session() == nil {
		return ErrClosed
	}

	return h.runner.ApplyFile(ctx, path, bypassVerification)
}

// ApplyDir applies every script in dir in order, skipping those already
// recorded with the same hash.
func (h *Handler) ApplyDir(ctx context.Context, dir string) (Summary, error) {
	if h.runner == nil || h.store.Session() == nil {
		return Summary{}, ErrClosed
	}

	return h.runner.ApplyDir(ctx, dir)
}

// ApplySet applies a set returned by LoadScripts. Script bodies are read as
// each script is reached.
func (h *Handler) ApplySet(ctx context.Context, set *ScriptSet) (Summary, error) {
	if h.runner == nil || h.store.Session() == nil {
		return Summary{}, ErrClosed
	}

	return h.runner.ApplySet(ctx, set)
}

// Status compares the scripts in dir with the ledger without applying them.
func (h *Handler) Status(ctx context.Context, dir string) ([]ScriptStatus, error) {
	if h.runner == nil || h.store.Session() == nil {
		return nil, ErrClosed
	}

	set, err := LoadScripts(dir)
	if err != nil {
		return nil, err
	}

	return h.runner.Status(ctx, set)
}

// Entries returns every ledger row ordered by sequence id.
func (h *Handler) Entries(ctx context.Context) ([]Entry, error) {
	return h.store.Entries(ctx)
}

// Session returns the raw database session the Handler applies scripts on.
// It must not be used after Close.
func (h *Handler) Session() *pgxpool.Conn {
	return h.store.Session()
}

// Close releases the advisory lock, the session and the pool.
// Safe to call multiple times; subsequent calls are no-ops.
func (h *Handler) Close() error {
	if h == nil {
		return nil
	}

	var errs []error

	if h.lock != nil {
		errs = append(errs, h.lock.Release(context.Background()))
		h.lock = nil
	}

	if h.store != nil {
		errs = append(errs, h.store.Close())
	}

	if h.pool != nil {
		h.pool.Close()
		h.pool = nil
	}

	return errors.Join(errs...)
}
