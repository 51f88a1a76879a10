package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// EscrowHoldStore persists per-party deposits.
type EscrowHoldStore interface {
	// SaveHoldInTx inserts a new hold.
	SaveHoldInTx(ctx context.Context, tx pgx.Tx, hold domain.EscrowHold) error

	// FindHoldsBySwapForUpdate locks and returns every hold of a swap.
	FindHoldsBySwapForUpdate(ctx context.Context, tx pgx.Tx, swapID string) ([]domain.EscrowHold, error)

	// UpdateHoldStatusInTx moves a hold to a new status.
	UpdateHoldStatusInTx(ctx context.Context, tx pgx.Tx, holdID string, status domain.HoldStatus, now time.Time) error
}

// LedgerStore is the append-only ledger.
type LedgerStore interface {
	// AppendLedgerEntriesInTx inserts entries. Existing entries are never touched.
	AppendLedgerEntriesInTx(ctx context.Context, tx pgx.Tx, entries []domain.LedgerEntry) error

	// ListLedgerEntriesByUser returns a user's entries newest first.
	ListLedgerEntriesByUser(ctx context.Context, userID string, limit int, nextToken *string) ([]domain.LedgerEntry, *string, error)

	// ListLedgerEntriesBySwap returns a swap's entries oldest first.
	ListLedgerEntriesBySwap(ctx context.Context, swapID string) ([]domain.LedgerEntry, error)
}

// EscrowRepositoryFacade combines hold and ledger storage.
type EscrowRepositoryFacade interface {
	EscrowHoldStore
	LedgerStore
}
