package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/pgscripts/internal/database"
)

// fakeRow implements pgx.Row by assigning a fixed bool.
type fakeRow struct {
	value bool
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	*(dest[0].(*bool)) = r.value

	return nil
}

// fakeSession records the statements it receives.
type fakeSession struct {
	row     fakeRow
	execErr error
	execs   []string
}

func (s *fakeSession) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, sql)

	return pgconn.NewCommandTag("SELECT 1"), s.execErr
}

func (s *fakeSession) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return s.row
}

func TestTryAcquireLock_acquired_returnsHandle(t *testing.T) {
	t.Parallel()

	s := &fakeSession{row: fakeRow{value: true}}

	handle, err := database.TryAcquireLock(context.Background(), s)

	require.NoError(t, err)
	require.NotNil(t, handle)
}

func TestTryAcquireLock_heldElsewhere_returnsLockNotAcquired(t *testing.T) {
	t.Parallel()

	s := &fakeSession{row: fakeRow{value: false}}

	handle, err := database.TryAcquireLock(context.Background(), s)

	assert.Nil(t, handle)
	require.ErrorIs(t, err, database.ErrLockNotAcquired)
}

func TestTryAcquireLock_queryError_isWrapped(t *testing.T) {
	t.Parallel()

	s := &fakeSession{row: fakeRow{err: errors.New("conn reset")}}

	_, err := database.TryAcquireLock(context.Background(), s)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pg_try_advisory_lock")
}

func TestLockHandle_Release_isIdempotent(t *testing.T) {
	t.Parallel()

	s := &fakeSession{row: fakeRow{value: true}}
	ctx := context.Background()

	handle, err := database.TryAcquireLock(ctx, s)
	require.NoError(t, err)

	require.NoError(t, handle.Release(ctx))
	require.NoError(t, handle.Release(ctx))

	assert.Len(t, s.execs, 1)
	assert.Contains(t, s.execs[0], "pg_advisory_unlock")
}

func TestLockHandle_Release_nilHandle(t *testing.T) {
	t.Parallel()

	var handle *database.LockHandle

	assert.NoError(t, handle.Release(context.Background()))
}
