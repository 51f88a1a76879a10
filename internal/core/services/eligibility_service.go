package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
)

type eligibilityService struct {
	BaseService
	policy      domain.EligibilityPolicy
	accountRepo portsrepo.AccountReader
	swapStats   portsrepo.SwapStatsReader
	catalog     portsrepo.CatalogReader
}

// NewEligibilityService creates the anti-abuse guard.
func NewEligibilityService(policy domain.EligibilityPolicy, accountRepo portsrepo.AccountReader, swapStats portsrepo.SwapStatsReader, catalog portsrepo.CatalogReader, options ...Option) portssvc.EligibilitySvc {
	svc := &eligibilityService{
		policy:      policy,
		accountRepo: accountRepo,
		swapStats:   swapStats,
		catalog:     catalog,
	}
	for _, option := range options {
		option(&svc.BaseService)
	}
	return svc
}

var _ portssvc.EligibilitySvc = (*eligibilityService)(nil)

func (s *eligibilityService) CheckEligibility(ctx context.Context, userID string, query dto.EligibilityQuery) (*domain.EligibilityResult, error) {
	now := s.Now()

	account, err := s.accountRepo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", userID, err)
	}
	active, err := s.catalog.CountActiveListings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active listings: %w", err)
	}
	recent, err := s.swapStats.CountSwapsCreatedSince(ctx, userID, now.Add(-s.policy.AttemptWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent offers: %w", err)
	}
	priorCount, priorGain, err := s.swapStats.EarlySwapGain(ctx, userID, s.policy.EarlySwapCount)
	if err != nil {
		return nil, fmt.Errorf("failed to sum early swap gain: %w", err)
	}

	candidate, err := s.candidateGain(ctx, query)
	if err != nil {
		return nil, err
	}

	result := s.policy.Evaluate(domain.EligibilityStats{
		ActiveListings:   active,
		AccountCreatedAt: account.CreatedAt,
		RecentAttempts:   recent,
		PriorSwapCount:   priorCount,
		PriorGain:        priorGain,
		CandidateGain:    candidate,
	}, now)

	if !result.Allowed {
		s.LogInfo(ctx, "Eligibility check failed",
			slog.String("user_id", userID),
			slog.String("reason", string(result.Reason)))
	}
	return &result, nil
}

func (s *eligibilityService) candidateGain(ctx context.Context, query dto.EligibilityQuery) (int64, error) {
	if query.ProductID == "" {
		return 0, nil
	}
	target, err := s.catalog.FindProductByID(ctx, query.ProductID)
	if err != nil {
		return 0, fmt.Errorf("failed to load product %s: %w", query.ProductID, err)
	}
	var offered int64
	if query.OfferedProductID != nil {
		p, err := s.catalog.FindProductByID(ctx, *query.OfferedProductID)
		if err != nil {
			return 0, fmt.Errorf("failed to load offered product %s: %w", *query.OfferedProductID, err)
		}
		offered = p.ValorPrice
	}
	return domain.SpeculativeGain(target.ValorPrice, offered, query.ProposedPrice), nil
}
