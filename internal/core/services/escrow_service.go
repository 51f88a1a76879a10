package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/metrics"
)

// Option configures the shared parts of a service.
type Option func(*BaseService)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock domain.Clock) Option {
	return func(b *BaseService) {
		b.Clock = clock
	}
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *metrics.Collectors) Option {
	return func(b *BaseService) {
		b.Metrics = m
	}
}

// escrowService implements the EscrowManager interface
type escrowService struct {
	BaseService
	txManager   portsrepo.TransactionManager
	accountRepo portsrepo.AccountRepositoryFacade
	escrowRepo  portsrepo.EscrowRepositoryFacade
}

// NewEscrowService creates the escrow manager.
func NewEscrowService(txManager portsrepo.TransactionManager, accountRepo portsrepo.AccountRepositoryFacade, escrowRepo portsrepo.EscrowRepositoryFacade, options ...Option) portssvc.EscrowManager {
	svc := &escrowService{
		txManager:   txManager,
		accountRepo: accountRepo,
		escrowRepo:  escrowRepo,
	}
	for _, option := range options {
		option(&svc.BaseService)
	}
	return svc
}

var _ portssvc.EscrowManager = (*escrowService)(nil)

func (s *escrowService) Freeze(ctx context.Context, req portssvc.FreezeRequest) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := s.txManager.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		entry, err = s.FreezeInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *escrowService) FreezeInTx(ctx context.Context, tx pgx.Tx, req portssvc.FreezeRequest) (*domain.LedgerEntry, error) {
	if req.Amount < 0 {
		return nil, apperrors.Newf(apperrors.KindValidation, "deposit amount must not be negative, got %d", req.Amount)
	}
	// A zero deposit locks nothing and therefore writes nothing.
	if req.Amount == 0 {
		return nil, nil
	}

	accounts, err := s.accountRepo.FindAccountsByIDsForUpdate(ctx, tx, []string{req.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %s: %w", req.UserID, err)
	}
	account, ok := accounts[req.UserID]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "account %s not found", req.UserID)
	}

	before := account.Available()
	if err := account.Lock(req.Amount); err != nil {
		return nil, apperrors.Newf(apperrors.KindInsufficientFunds, "available balance %d is below the required deposit %d", before, req.Amount).
			WithDetails(map[string]any{"available": before, "required": req.Amount, "userID": req.UserID})
	}

	now := s.Now()
	if err := s.accountRepo.UpdateAccountBalancesInTx(ctx, tx, []domain.Account{account}, now); err != nil {
		return nil, fmt.Errorf("failed to update balance of %s: %w", req.UserID, err)
	}

	hold := domain.EscrowHold{
		HoldID:    uuid.NewString(),
		SwapID:    req.SwapID,
		UserID:    req.UserID,
		Role:      req.Role,
		Amount:    req.Amount,
		Status:    domain.HoldHeld,
		CreatedAt: now,
	}
	if err := s.escrowRepo.SaveHoldInTx(ctx, tx, hold); err != nil {
		return nil, fmt.Errorf("failed to save escrow hold: %w", err)
	}

	entry := domain.LedgerEntry{
		EntryID:       uuid.NewString(),
		SwapRequestID: req.SwapID,
		UserID:        req.UserID,
		Type:          domain.EntryFreeze,
		Amount:        req.Amount,
		BalanceBefore: before,
		BalanceAfter:  account.Available(),
		Reason:        req.Reason,
		CreatedAt:     now,
	}
	if err := s.escrowRepo.AppendLedgerEntriesInTx(ctx, tx, []domain.LedgerEntry{entry}); err != nil {
		return nil, fmt.Errorf("failed to append freeze entry: %w", err)
	}

	s.Metrics.LedgerValor(string(domain.EntryFreeze), req.Amount)
	s.LogDebug(ctx, "Deposit frozen",
		slog.String("swap_id", req.SwapID),
		slog.String("user_id", req.UserID),
		slog.Int64("amount", req.Amount))
	return &entry, nil
}

func (s *escrowService) Release(ctx context.Context, swapID string, reason string) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := s.txManager.RunInTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		entries, err = s.ReleaseInTx(ctx, tx, swapID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *escrowService) ReleaseInTx(ctx context.Context, tx pgx.Tx, swapID string, reason string) ([]domain.LedgerEntry, error) {
	holds, err := s.escrowRepo.FindHoldsBySwapForUpdate(ctx, tx, swapID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock holds of swap %s: %w", swapID, err)
	}

	var held []domain.EscrowHold
	seen := make(map[string]struct{})
	var userIDs []string
	for _, h := range holds {
		if h.Status != domain.HoldHeld {
			continue
		}
		held = append(held, h)
		if _, ok := seen[h.UserID]; !ok {
			seen[h.UserID] = struct{}{}
			userIDs = append(userIDs, h.UserID)
		}
	}
	if len(held) == 0 {
		return nil, nil
	}
	sort.Strings(userIDs)

	accounts, err := s.accountRepo.FindAccountsByIDsForUpdate(ctx, tx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts of swap %s: %w", swapID, err)
	}

	now := s.Now()
	entries := make([]domain.LedgerEntry, 0, len(held))
	for _, h := range held {
		account, ok := accounts[h.UserID]
		if !ok {
			return nil, apperrors.Newf(apperrors.KindNotFound, "account %s not found", h.UserID)
		}
		before := account.Available()
		if err := account.Unlock(h.Amount); err != nil {
			return nil, apperrors.NewAppError(0, fmt.Sprintf("hold %s does not match locked balance", h.HoldID), err)
		}
		accounts[h.UserID] = account

		if err := s.escrowRepo.UpdateHoldStatusInTx(ctx, tx, h.HoldID, domain.HoldReleased, now); err != nil {
			return nil, fmt.Errorf("failed to release hold %s: %w", h.HoldID, err)
		}
		entries = append(entries, domain.LedgerEntry{
			EntryID:       uuid.NewString(),
			SwapRequestID: swapID,
			UserID:        h.UserID,
			Type:          domain.EntryRelease,
			Amount:        h.Amount,
			BalanceBefore: before,
			BalanceAfter:  account.Available(),
			Reason:        reason,
			CreatedAt:     now,
		})
	}

	updated := make([]domain.Account, 0, len(userIDs))
	for _, id := range userIDs {
		updated = append(updated, accounts[id])
	}
	if err := s.accountRepo.UpdateAccountBalancesInTx(ctx, tx, updated, now); err != nil {
		return nil, fmt.Errorf("failed to update balances of swap %s: %w", swapID, err)
	}
	if err := s.escrowRepo.AppendLedgerEntriesInTx(ctx, tx, entries); err != nil {
		return nil, fmt.Errorf("failed to append release entries: %w", err)
	}

	for _, e := range entries {
		s.Metrics.LedgerValor(string(domain.EntryRelease), e.Amount)
	}
	s.LogDebug(ctx, "Deposits released", slog.String("swap_id", swapID), slog.Int("holds", len(entries)))
	return entries, nil
}
