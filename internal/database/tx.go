// Package database holds the transaction helpers shared by the storefront repositories.
package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes that mean "run the whole transaction again".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// ErrRetriesExhausted is returned by RetrySerializable when every attempt hit a
// serialization failure.
var ErrRetriesExhausted = errors.New("serializable transaction retries exhausted")

// Beginner is satisfied by *sql.DB.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// IsSerializationFailure reports whether err is a retryable Postgres conflict.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
	}
	return false
}

// InTx runs fn inside a transaction at the given isolation level, committing if fn
// returns nil and rolling back otherwise.
func InTx(ctx context.Context, db Beginner, level sql.IsolationLevel, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// RetrySerializable calls attempt up to maxRetries+1 times while it fails with a
// serialization failure. onRetry, when set, is called before every repeat.
func RetrySerializable(ctx context.Context, maxRetries int, attempt func(ctx context.Context) error, onRetry func(n int, err error)) error {
	var lastErr error
	for n := 0; n <= maxRetries; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}

		lastErr = err
		if n < maxRetries && onRetry != nil {
			onRetry(n+1, err)
		}
	}
	return errors.Join(ErrRetriesExhausted, lastErr)
}
