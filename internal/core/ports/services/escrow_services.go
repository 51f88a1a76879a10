package services

import (
	"context"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// FreezeRequest asks the escrow manager to lock part of a user's balance against a swap.
type FreezeRequest struct {
	UserID string
	Amount int64
	SwapID string
	Role   domain.PartyRole
	Reason string
}

// EscrowManager freezes and releases deposits. Every balance mutation appends exactly one ledger entry.
type EscrowManager interface {
	// Freeze runs FreezeInTx in its own transaction.
	Freeze(ctx context.Context, req FreezeRequest) (*domain.LedgerEntry, error)

	// FreezeInTx locks req.Amount of the user's available balance. Fails with ErrInsufficientFunds.
	FreezeInTx(ctx context.Context, tx pgx.Tx, req FreezeRequest) (*domain.LedgerEntry, error)

	// Release runs ReleaseInTx in its own transaction.
	Release(ctx context.Context, swapID string, reason string) ([]domain.LedgerEntry, error)

	// ReleaseInTx returns every held deposit of a swap. Releasing an already released swap is a no-op.
	ReleaseInTx(ctx context.Context, tx pgx.Tx, swapID string, reason string) ([]domain.LedgerEntry, error)
}
