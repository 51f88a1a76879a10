package pgsql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	"github.com/SscSPs/takas_swap_engine/internal/models"
	"github.com/SscSPs/takas_swap_engine/internal/utils/pagination"
)

const (
	holdColumns   = `hold_id, swap_id, user_id, role, amount, status, created_at, released_at`
	ledgerColumns = `entry_id, swap_request_id, user_id, entry_type, amount, balance_before, balance_after, reason, created_at`
)

// PgxEscrowRepository stores escrow holds and the append-only ledger.
type PgxEscrowRepository struct {
	pool *pgxpool.Pool
}

func newPgxEscrowRepository(pool *pgxpool.Pool) *PgxEscrowRepository {
	return &PgxEscrowRepository{pool: pool}
}

var _ portsrepo.EscrowRepositoryFacade = (*PgxEscrowRepository)(nil)

func toDomainHold(m models.EscrowHold) domain.EscrowHold {
	return domain.EscrowHold{
		HoldID:     m.HoldID,
		SwapID:     m.SwapID,
		UserID:     m.UserID,
		Role:       domain.PartyRole(m.Role),
		Amount:     m.Amount,
		Status:     domain.HoldStatus(m.Status),
		CreatedAt:  m.CreatedAt,
		ReleasedAt: m.ReleasedAt,
	}
}

func toDomainLedgerEntry(m models.LedgerEntry) domain.LedgerEntry {
	return domain.LedgerEntry{
		EntryID:       m.EntryID,
		SwapRequestID: m.SwapRequestID,
		UserID:        m.UserID,
		Type:          domain.EntryType(m.EntryType),
		Amount:        m.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Reason:        m.Reason,
		CreatedAt:     m.CreatedAt,
	}
}

// SaveHoldInTx inserts a new hold. A second hold for the same swap and role is a duplicate.
func (r *PgxEscrowRepository) SaveHoldInTx(ctx context.Context, tx pgx.Tx, hold domain.EscrowHold) error {
	query := `INSERT INTO escrow_holds (` + holdColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := tx.Exec(ctx, query,
		hold.HoldID, hold.SwapID, hold.UserID, string(hold.Role),
		hold.Amount, string(hold.Status), hold.CreatedAt, hold.ReleasedAt,
	)
	return translateWriteError(err, "save escrow hold of swap %s for %s", hold.SwapID, hold.Role)
}

// FindHoldsBySwapForUpdate locks and returns every hold of a swap.
func (r *PgxEscrowRepository) FindHoldsBySwapForUpdate(ctx context.Context, tx pgx.Tx, swapID string) ([]domain.EscrowHold, error) {
	query := `SELECT ` + holdColumns + ` FROM escrow_holds WHERE swap_id = $1 ORDER BY role FOR UPDATE`
	rows, err := tx.Query(ctx, query, swapID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock holds of swap %s: %w", swapID, err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.EscrowHold])
	if err != nil {
		return nil, fmt.Errorf("failed to scan holds of swap %s: %w", swapID, err)
	}
	holds := make([]domain.EscrowHold, 0, len(list))
	for _, m := range list {
		holds = append(holds, toDomainHold(m))
	}
	return holds, nil
}

// UpdateHoldStatusInTx moves a hold to a new status. Only held rows may move.
func (r *PgxEscrowRepository) UpdateHoldStatusInTx(ctx context.Context, tx pgx.Tx, holdID string, status domain.HoldStatus, now time.Time) error {
	query := `UPDATE escrow_holds SET status = $2, released_at = $3 WHERE hold_id = $1 AND status = 'held'`
	tag, err := tx.Exec(ctx, query, holdID, string(status), now)
	if err != nil {
		return translateWriteError(err, "update escrow hold %s", holdID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: held escrow hold %s", apperrors.ErrNotFound, holdID)
	}
	return nil
}

// AppendLedgerEntriesInTx copies entries into the ledger.
func (r *PgxEscrowRepository) AppendLedgerEntriesInTx(ctx context.Context, tx pgx.Tx, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{
			e.EntryID, e.SwapRequestID, e.UserID, string(e.Type), e.Amount,
			e.BalanceBefore, e.BalanceAfter, e.Reason, e.CreatedAt,
		})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"ledger_entries"},
		[]string{"entry_id", "swap_request_id", "user_id", "entry_type", "amount", "balance_before", "balance_after", "reason", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return translateWriteError(err, "append %d ledger entries", len(entries))
}

// ListLedgerEntriesByUser returns a user's entries newest first using keyset pagination.
func (r *PgxEscrowRepository) ListLedgerEntriesByUser(ctx context.Context, userID string, limit int, nextToken *string) ([]domain.LedgerEntry, *string, error) {
	args := []any{userID}
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE user_id = $1`
	if nextToken != nil && *nextToken != "" {
		cursor, err := pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		query += ` AND (created_at, entry_id) < ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, entry_id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list ledger of %s: %w", userID, err)
	}
	entries, err := collectLedger(rows)
	if err != nil {
		return nil, nil, err
	}
	next := pagination.NextToken(entries, limit, func(e domain.LedgerEntry) (time.Time, string) {
		return e.CreatedAt, e.EntryID
	})
	return entries, next, nil
}

// ListLedgerEntriesBySwap returns a swap's entries oldest first.
func (r *PgxEscrowRepository) ListLedgerEntriesBySwap(ctx context.Context, swapID string) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE swap_request_id = $1 ORDER BY created_at, entry_id`
	rows, err := r.pool.Query(ctx, query, swapID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger of swap %s: %w", swapID, err)
	}
	return collectLedger(rows)
}

func collectLedger(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.LedgerEntry])
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entries: %w", err)
	}
	entries := make([]domain.LedgerEntry, 0, len(list))
	for _, m := range list {
		entries = append(entries, toDomainLedgerEntry(m))
	}
	return entries, nil
}
