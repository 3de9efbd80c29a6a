package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/token-manager-server/pkg/retry"
	"github.com/code-payments/token-manager-server/pkg/retry/backoff"
)

const (
	maxTxAttempts   = 5
	baseTxBackoff   = 10 * time.Millisecond
	maxTxBackoff    = 250 * time.Millisecond
	txBackoffJitter = 0.25
)

// ExecuteInTx runs fn within a transaction at the requested isolation level,
// committing when fn succeeds and rolling back otherwise. Serialization
// failures rerun fn from the start in a fresh transaction, so fn must not have
// side effects outside the transaction.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted // Postgres default
	}

	_, err := retry.RetryContext(
		ctx,
		func() error {
			return executeOnce(ctx, db, isolation, fn)
		},
		retry.Limit(maxTxAttempts),
		retry.RetriableIf(IsSerializationFailure),
		retry.BackoffWithJitter(backoff.BinaryExponential(baseTxBackoff), maxTxBackoff, txBackoffJitter),
	)
	return err
}

func executeOnce(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		// Rollback releases the connection back to the pool
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(rollbackErr, "failed to rollback transaction after: %v", err)
		}
		return err
	}
	return tx.Commit()
}
