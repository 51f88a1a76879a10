package services

import (
	"context"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
)

// AccountReaderSvc defines read operations for Valor accounts.
type AccountReaderSvc interface {
	// GetAccount returns the user's balance, locked amount and trust level.
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)
}

// AccountLedgerSvc exposes the append-only ledger.
type AccountLedgerSvc interface {
	// ListLedger returns a page of the user's ledger entries, newest first.
	ListLedger(ctx context.Context, userID string, params dto.ListLedgerParams) (*dto.ListLedgerResponse, error)

	// ListSwapLedger returns every entry written for a swap. Only parties and admins may read it.
	ListSwapLedger(ctx context.Context, actor domain.Actor, swapID string) ([]domain.LedgerEntry, error)
}

// AccountSvcFacade combines all account-related service interfaces
type AccountSvcFacade interface {
	AccountReaderSvc
	AccountLedgerSvc
}
