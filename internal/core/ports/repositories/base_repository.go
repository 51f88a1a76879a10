package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxFunc is the body of an atomic unit of work.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// TransactionManager defines methods for transaction management
type TransactionManager interface {
	// Begin starts a new database transaction
	Begin(ctx context.Context) (pgx.Tx, error)

	// Commit commits a transaction
	Commit(ctx context.Context, tx pgx.Tx) error

	// Rollback rolls back a transaction
	Rollback(ctx context.Context, tx pgx.Tx) error

	// RunInTx runs fn inside one transaction, committing on nil and rolling back otherwise.
	// Serialization failures and deadlocks are retried.
	RunInTx(ctx context.Context, fn TxFunc) error
}
