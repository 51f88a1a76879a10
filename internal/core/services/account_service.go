package services

import (
	"context"
	"log/slog"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
)

// accountService serves balance and ledger queries.
type accountService struct {
	BaseService
	accountRepo portsrepo.AccountReader
	ledgerRepo  portsrepo.LedgerStore
	swapRepo    portsrepo.SwapReader
}

// NewAccountService creates a new AccountService.
func NewAccountService(accountRepo portsrepo.AccountReader, ledgerRepo portsrepo.LedgerStore, swapRepo portsrepo.SwapReader, options ...Option) portssvc.AccountSvcFacade {
	svc := &accountService{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		swapRepo:    swapRepo,
	}
	for _, option := range options {
		option(&svc.BaseService)
	}
	return svc
}

var _ portssvc.AccountSvcFacade = (*accountService)(nil)

func (s *accountService) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := s.accountRepo.FindAccountByUserID(ctx, userID)
	if err != nil {
		s.LogError(ctx, err, "Failed to get account", slog.String("user_id", userID))
		return nil, err
	}
	return account, nil
}

func (s *accountService) ListLedger(ctx context.Context, userID string, params dto.ListLedgerParams) (*dto.ListLedgerResponse, error) {
	entries, next, err := s.ledgerRepo.ListLedgerEntriesByUser(ctx, userID, params.Limit, params.NextToken)
	if err != nil {
		s.LogError(ctx, err, "Failed to list ledger entries", slog.String("user_id", userID))
		return nil, err
	}
	s.LogDebug(ctx, "Ledger entries listed", slog.String("user_id", userID), slog.Int("count", len(entries)))
	return &dto.ListLedgerResponse{
		Entries:   dto.ToLedgerEntryResponses(entries),
		NextToken: next,
	}, nil
}

func (s *accountService) ListSwapLedger(ctx context.Context, actor domain.Actor, swapID string) ([]domain.LedgerEntry, error) {
	swap, err := s.swapRepo.FindSwapByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && !swap.IsParty(actor.UserID) {
		return nil, apperrors.New(apperrors.KindForbidden, "only the parties of a swap may read its ledger")
	}
	entries, err := s.ledgerRepo.ListLedgerEntriesBySwap(ctx, swapID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list swap ledger", slog.String("swap_id", swapID))
		return nil, err
	}
	return entries, nil
}
