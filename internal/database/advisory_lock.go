package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ScriptLockID is the advisory lock identifier held while scripts are applied.
const ScriptLockID int64 = 7468657267

// Session is the part of a database connection the lock needs.
// Implemented by *pgxpool.Conn and *pgx.Conn.
type Session interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LockHandle holds a session-level advisory lock on a borrowed session.
// The session itself stays owned by the caller; Release only unlocks.
type LockHandle struct {
	session Session
}

// TryAcquireLock attempts to acquire a session-level advisory lock on the
// given session. Returns ErrLockNotAcquired if the lock is already held by
// another session. The caller must call handle.Release() before giving the
// session back.
func TryAcquireLock(ctx context.Context, session Session) (*LockHandle, error) {
	var acquired bool

	err := session.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", ScriptLockID).Scan(&acquired)
	if err != nil {
		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		return nil, ErrLockNotAcquired
	}

	logger.Debugf("acquired advisory lock %d", ScriptLockID)

	return &LockHandle{session: session}, nil
}

// Release unlocks the advisory lock.
// Safe to call multiple times; subsequent calls are no-ops.
func (h *LockHandle) Release(ctx context.Context) error {
	if h == nil || h.session == nil {
		return nil
	}

	_, err := h.session.Exec(ctx, "SELECT pg_advisory_unlock($1)", ScriptLockID)
	h.session = nil

	if err != nil {
		return fmt.Errorf("releasing advisory lock: %w", err)
	}

	return nil
}
