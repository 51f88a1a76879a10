package services

import (
	"fmt"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/takas_swap_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/metrics"
	"github.com/SscSPs/takas_swap_engine/internal/platform/config"
	"github.com/SscSPs/takas_swap_engine/internal/utils"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, notifier portssvc.Notifier, collectors *metrics.Collectors) (*portssvc.ServiceContainer, error) {
	signer, err := utils.NewQRSigner(cfg.QRSigningSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid QR signing secret: %w", err)
	}

	common := []Option{WithMetrics(collectors)}
	container := &portssvc.ServiceContainer{}

	// Escrow first since the state machine freezes and releases through it
	container.Escrow = NewEscrowService(repos.TxManager, repos.AccountRepo, repos.EscrowRepo, common...)
	container.Account = NewAccountService(repos.AccountRepo, repos.EscrowRepo, repos.SwapRepo, common...)
	container.Eligibility = NewEligibilityService(cfg.EligibilityPolicy(), repos.AccountRepo, repos.SwapRepo, repos.Catalog, common...)

	container.Swap = NewSwapService(repos, container.Escrow, signer, SwapSettingsFromConfig(cfg),
		WithEligibility(container.Eligibility),
		WithNotifier(notifier),
		WithSwapMetrics(collectors),
	)

	return container, nil
}

// SwapSettingsFromConfig maps configuration onto the state machine's tunables.
func SwapSettingsFromConfig(cfg *config.Config) SwapSettings {
	return SwapSettings{
		Deposits:          cfg.DepositPolicy(),
		Risk:              cfg.RiskPolicy(),
		Fee:               domain.FeePolicy{Percent: cfg.PlatformFeePercent},
		DisputeWindow:     domain.DisputeWindow{Duration: cfg.DisputeWindow},
		CodeTTL:           cfg.CodeTTL,
		MaxDeliveryPhotos: cfg.MaxDeliveryPhotos,
		PlatformAccountID: cfg.PlatformAccountID,
		SweepBatchSize:    cfg.SweepBatchSize,
	}
}
