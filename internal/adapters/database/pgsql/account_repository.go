package pgsql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	"github.com/SscSPs/takas_swap_engine/internal/models"
)

const accountColumns = `user_id, valor_balance, locked_valor, trust_level, created_at, created_by, last_updated_at, last_updated_by`

type PgxAccountRepository struct {
	pool *pgxpool.Pool
}

// newPgxAccountRepository creates a new repository for Valor accounts.
func newPgxAccountRepository(pool *pgxpool.Pool) *PgxAccountRepository {
	return &PgxAccountRepository{pool: pool}
}

// Ensure PgxAccountRepository implements portsrepo.AccountRepositoryFacade
var _ portsrepo.AccountRepositoryFacade = (*PgxAccountRepository)(nil)

func toDomainAccount(m models.Account) domain.Account {
	return domain.Account{
		UserID:       m.UserID,
		ValorBalance: m.ValorBalance,
		LockedValor:  m.LockedValor,
		TrustLevel:   domain.TrustLevel(m.TrustLevel),
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			CreatedBy:     m.CreatedBy,
			LastUpdatedAt: m.LastUpdatedAt,
			LastUpdatedBy: m.LastUpdatedBy,
		},
	}
}

// FindAccountByUserID retrieves a user's Valor account.
func (r *PgxAccountRepository) FindAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query account %s: %w", userID, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.Account])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account for user %s", apperrors.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to scan account %s: %w", userID, err)
	}
	acc := toDomainAccount(m)
	return &acc, nil
}

// FindAccountsByIDsForUpdate locks the accounts in ascending id order so concurrent
// transactions touching the same pair of users cannot deadlock.
func (r *PgxAccountRepository) FindAccountsByIDsForUpdate(ctx context.Context, tx pgx.Tx, userIDs []string) (map[string]domain.Account, error) {
	ids := uniqueSorted(userIDs)
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = ANY($1) ORDER BY user_id FOR UPDATE`
	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Account])
	if err != nil {
		return nil, fmt.Errorf("failed to scan locked accounts: %w", err)
	}

	accounts := make(map[string]domain.Account, len(list))
	for _, m := range list {
		accounts[m.UserID] = toDomainAccount(m)
	}
	return accounts, nil
}

// UpdateAccountBalancesInTx writes valor_balance and locked_valor for the given accounts.
func (r *PgxAccountRepository) UpdateAccountBalancesInTx(ctx context.Context, tx pgx.Tx, accounts []domain.Account, now time.Time) error {
	if len(accounts) == 0 {
		return nil
	}
	query := `
		UPDATE accounts
		SET valor_balance = $2, locked_valor = $3, last_updated_at = $4, last_updated_by = $5
		WHERE user_id = $1;
	`
	batch := &pgx.Batch{}
	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			return apperrors.NewAppError(500, "refusing to persist account", err)
		}
		by := a.LastUpdatedBy
		if by == "" {
			by = domain.SystemActorID
		}
		batch.Queue(query, a.UserID, a.ValorBalance, a.LockedValor, now, by)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for _, a := range accounts {
		tag, err := results.Exec()
		if err != nil {
			return translateWriteError(err, "update balance of account %s", a.UserID)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: account for user %s", apperrors.ErrNotFound, a.UserID)
		}
	}
	return nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
