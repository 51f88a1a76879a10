package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// AccountReader defines read operations for account data
type AccountReader interface {
	// FindAccountByUserID retrieves a user's Valor account.
	FindAccountByUserID(ctx context.Context, userID string) (*domain.Account, error)
}

// AccountTransactionSupport defines operations that support account transactions
type AccountTransactionSupport interface {
	// FindAccountsByIDsForUpdate locks the accounts in ascending id order and returns them keyed by user id.
	FindAccountsByIDsForUpdate(ctx context.Context, tx pgx.Tx, userIDs []string) (map[string]domain.Account, error)

	// UpdateAccountBalancesInTx writes valor_balance and locked_valor for the given accounts.
	UpdateAccountBalancesInTx(ctx context.Context, tx pgx.Tx, accounts []domain.Account, now time.Time) error
}

// AccountRepositoryFacade combines all account-related repository interfaces
type AccountRepositoryFacade interface {
	AccountReader
	AccountTransactionSupport
}
