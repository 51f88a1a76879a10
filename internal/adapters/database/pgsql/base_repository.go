package pgsql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
)

// retryDelays are the pauses between attempts of a transaction that lost a serialization race.
var retryDelays = []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	Pool *pgxpool.Pool
}

var _ portsrepo.TransactionManager = (*BaseRepository)(nil)

// Begin starts a new database transaction
func (r *BaseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	return tx, nil
}

// Commit commits a transaction
func (r *BaseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return nil
}

// Rollback rolls back a transaction
func (r *BaseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return apperrors.NewAppError(500, "failed to rollback transaction", err)
	}
	return nil
}

// RunInTx runs fn in a transaction. The whole unit is retried when Postgres reports
// a serialization failure or deadlock, so fn must not have side effects outside tx.
func (r *BaseRepository) RunInTx(ctx context.Context, fn portsrepo.TxFunc) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = r.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) || attempt >= len(retryDelays) {
			return err
		}
		slog.WarnContext(ctx, "Retrying transaction", slog.Int("attempt", attempt+1), slog.String("error", err.Error()))

		timer := time.NewTimer(retryDelays[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *BaseRepository) runOnce(ctx context.Context, fn portsrepo.TxFunc) (err error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = r.Rollback(context.WithoutCancel(ctx), tx)
			panic(p)
		}
		if err != nil {
			if rbErr := r.Rollback(context.WithoutCancel(ctx), tx); rbErr != nil {
				slog.ErrorContext(ctx, "Rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}

// translateWriteError maps constraint violations onto application errors.
func translateWriteError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicate, fmt.Sprintf(format, args...))
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", apperrors.ErrNotFound, fmt.Sprintf(format, args...))
		case pgerrcode.CheckViolation:
			return apperrors.NewAppError(500, fmt.Sprintf(format, args...)+": constraint "+pgErr.ConstraintName+" violated", err)
		}
	}
	return fmt.Errorf("failed to %s: %w", fmt.Sprintf(format, args...), err)
}
