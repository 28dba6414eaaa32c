// Package ledger owns the pg_scripts table: the record of which scripts have
// run against a database and with which content hash.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("pgscripts.ledger")

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Entry is one row of the pg_scripts table.
type Entry struct {
	SequenceID int64
	Name       string
	Hash       string
	AppliedAt  time.Time
	DurationMs int
}

// Tx is the transactional view handed to WithinTx callbacks.
type Tx interface {
	Execute(ctx context.Context, body []byte) error
	Record(ctx context.Context, e Entry) error
}

// querier is satisfied by both the store's session and an open pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages the pg_scripts table over one dedicated session.
type Store struct {
	conn             *pgxpool.Conn
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets lock_timeout for every script transaction.
// Zero leaves the server default in place.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithStatementTimeout sets statement_timeout for every script transaction.
// Zero leaves the server default in place.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *Store) { s.statementTimeout = d }
}

// Open acquires a dedicated session from pool. The session belongs to the
// Store until Close is called.
func Open(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring ledger session: %w", err)
	}

	s := &Store{conn: conn}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Session returns the raw database session used by the store.
// It returns nil after Close.
func (s *Store) Session() *pgxpool.Conn {
	if s == nil {
		return nil
	}

	return s.conn
}

// Close releases the session back to its pool.
// Safe to call multiple times; subsequent calls are no-ops.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}

	s.conn.Release()
	s.conn = nil

	return nil
}

func (s *Store) session() (*pgxpool.Conn, error) {
	if s == nil || s.conn == nil {
		return nil, ErrClosed
	}

	return s.conn, nil
}

// EnsureBootstrapped creates the pg_scripts table if it does not exist yet,
// running the embedded bootstrap script and recording its own entry in one
// transaction. If the table exists but lacks the bootstrap entry, the entry
// is added so every executed script has exactly one row.
func (s *Store) EnsureBootstrapped(ctx context.Context) error {
	conn, err := s.session()
	if err != nil {
		return err
	}

	boot, err := BootstrapScript()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	exists, err := tableExists(ctx, conn)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	self := Entry{SequenceID: boot.SequenceID, Name: boot.Name, Hash: boot.Hash}

	if !exists {
		logger.Infof("creating ledger table %s", TableName)

		start := time.Now()

		err := s.WithinTx(ctx, func(tx Tx) error {
			if err := tx.Execute(ctx, boot.Body); err != nil {
				return err
			}

			self.DurationMs = int(time.Since(start).Milliseconds())

			return tx.Record(ctx, self)
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBootstrap, err)
		}

		return nil
	}

	_, found, err := lookup(ctx, conn, boot.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	if found {
		return nil
	}

	logger.Warningf("ledger table %s has no entry for %s, recording it", TableName, boot.Name)

	if err := record(ctx, conn, self); err != nil {
		return fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	return nil
}

// Lookup returns the entry recorded for a script name, if any.
func (s *Store) Lookup(ctx context.Context, name string) (Entry, bool, error) {
	conn, err := s.session()
	if err != nil {
		return Entry{}, false, err
	}

	return lookup(ctx, conn, name)
}

// LookupSequence returns the entry recorded under a sequence id, if any.
func (s *Store) LookupSequence(ctx context.Context, id int64) (Entry, bool, error) {
	conn, err := s.session()
	if err != nil {
		return Entry{}, false, err
	}

	return lookupSequence(ctx, conn, id)
}

// Entries returns every ledger row ordered by sequence id.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	conn, err := s.session()
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, entriesSQL)
	if err != nil {
		return nil, fmt.Errorf("querying ledger entries: %w", err)
	}
	defer rows.Close()

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		if scanErr := row.Scan(&e.SequenceID, &e.Name, &e.Hash, &e.AppliedAt, &e.DurationMs); scanErr != nil {
			return Entry{}, fmt.Errorf("scanning ledger row: %w", scanErr)
		}

		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning ledger entries: %w", err)
	}

	return entries, nil
}

// Record inserts a new entry outside any script transaction.
func (s *Store) Record(ctx context.Context, e Entry) error {
	conn, err := s.session()
	if err != nil {
		return err
	}

	return record(ctx, conn, e)
}

// Execute runs a script body on the session outside any transaction.
func (s *Store) Execute(ctx context.Context, body []byte) error {
	conn, err := s.session()
	if err != nil {
		return err
	}

	return execute(ctx, conn, body)
}

// WithinTx runs fn inside a transaction on the store's session.
// On success the transaction is committed; on error it is rolled back, so
// neither the script's changes nor its ledger entry survive.
func (s *Store) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	conn, err := s.session()
	if err != nil {
		return err
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	if s.lockTimeout > 0 {
		if err := setLockTimeout(ctx, tx, s.lockTimeout); err != nil {
			return err
		}
	}

	if s.statementTimeout > 0 {
		if err := setStatementTimeout(ctx, tx, s.statementTimeout); err != nil {
			return err
		}
	}

	if err := fn(&txScope{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// txScope implements Tx over an open pgx transaction.
type txScope struct {
	tx pgx.Tx
}

func (t *txScope) Execute(ctx context.Context, body []byte) error {
	return execute(ctx, t.tx, body)
}

func (t *txScope) Record(ctx context.Context, e Entry) error {
	return record(ctx, t.tx, e)
}

func tableExists(ctx context.Context, q querier) (bool, error) {
	var exists bool

	if err := q.QueryRow(ctx, tableExistsSQL, TableName).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking for table %s: %w", TableName, err)
	}

	return exists, nil
}

func lookup(ctx context.Context, q querier, name string) (Entry, bool, error) {
	e, found, err := scanEntry(q.QueryRow(ctx, lookupSQL, name))
	if err != nil {
		return Entry{}, false, fmt.Errorf("looking up ledger entry %s: %w", name, err)
	}

	return e, found, nil
}

func lookupSequence(ctx context.Context, q querier, id int64) (Entry, bool, error) {
	e, found, err := scanEntry(q.QueryRow(ctx, lookupSequenceSQL, id))
	if err != nil {
		return Entry{}, false, fmt.Errorf("looking up ledger id %d: %w", id, err)
	}

	return e, found, nil
}

func scanEntry(row pgx.Row) (Entry, bool, error) {
	var e Entry

	if err := row.Scan(&e.SequenceID, &e.Name, &e.Hash, &e.AppliedAt, &e.DurationMs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, false, nil
		}

		return Entry{}, false, err
	}

	return e, true, nil
}

func record(ctx context.Context, q querier, e Entry) error {
	_, err := q.Exec(ctx, recordSQL, e.SequenceID, e.Name, e.Hash, e.DurationMs)
	if err != nil {
		if constraint, ok := uniqueViolationOn(err); ok {
			if constraint == sequenceConstraint {
				return &SequenceCollisionError{SequenceID: e.SequenceID, Name: e.Name, Err: err}
			}

			return fmt.Errorf("%w: %s (id %d): %w", ErrDuplicateEntry, e.Name, e.SequenceID, err)
		}

		return fmt.Errorf("recording ledger entry %s: %w", e.Name, err)
	}

	logger.Debugf("recorded %s (id %d, hash %s)", e.Name, e.SequenceID, e.Hash)

	return nil
}

// execute submits the body as a single simple-protocol batch, so scripts
// holding several statements run as written.
func execute(ctx context.Context, q querier, body []byte) error {
	if _, err := q.Exec(ctx, string(body)); err != nil {
		return fmt.Errorf("executing script body: %w", err)
	}

	return nil
}

// uniqueViolationOn reports whether err is a unique_violation and, if so,
// which constraint it hit.
func uniqueViolationOn(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return "", false
	}

	return pgErr.ConstraintName, true
}
