package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// setLockTimeout sets lock_timeout for the current transaction only.
func setLockTimeout(ctx context.Context, tx pgx.Tx, timeout time.Duration) error {
	sql := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())

	_, err := tx.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("setting lock_timeout: %w", err)
	}

	return nil
}

// setStatementTimeout sets statement_timeout for the current transaction only.
func setStatementTimeout(ctx context.Context, tx pgx.Tx, timeout time.Duration) error {
	sql := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", timeout.Milliseconds())

	_, err := tx.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("setting statement_timeout: %w", err)
	}

	return nil
}
