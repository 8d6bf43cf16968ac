package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const maxRetries = 3

// IsBusy reports whether err indicates an SQLite BUSY condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// Exec executes a statement with automatic retry on SQLITE_BUSY,
// backing off 100/200/300 ms between attempts.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		result, err := db.ExecContext(ctx, query, args...)
		if err == nil {
			return result, nil
		}
		if !IsBusy(err) {
			return nil, err
		}
		lastErr = err
		if i < maxRetries-1 {
			if err := sleepCtx(ctx, time.Duration(100*(i+1))*time.Millisecond); err != nil {
				return nil, fmt.Errorf("dbopen: context cancelled during retry: %w", err)
			}
		}
	}
	return nil, fmt.Errorf("dbopen: Exec: retries exhausted: %w", lastErr)
}

// RunTx executes fn inside a transaction with the same BUSY retry policy
// as Exec. The transaction is rolled back when fn returns an error.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := execTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsBusy(err) {
			return err
		}
		lastErr = err
		if i < maxRetries-1 {
			if err := sleepCtx(ctx, time.Duration(100*(i+1))*time.Millisecond); err != nil {
				return fmt.Errorf("dbopen: context cancelled during retry: %w", err)
			}
		}
	}
	return fmt.Errorf("dbopen: RunTx: retries exhausted: %w", lastErr)
}

func execTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
