package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/utils/tokentest"
)

const testJWTSecret = "test-secret-key-that-is-long-enough"

// generateTestToken creates a signed JWT for testing. role may be empty.
func generateTestToken(userID, role string) (string, error) {
	return tokentest.Sign(userID, role, testJWTSecret, "takas-test", time.Hour)
}

// --- Mock SwapService ---
type MockSwapService struct {
	mock.Mock
}

var _ portssvc.SwapSvcFacade = (*MockSwapService)(nil)

func (m *MockSwapService) swap(args mock.Arguments) (*domain.SwapRequest, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SwapRequest), args.Error(1)
}

func (m *MockSwapService) GetSwap(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, swapID))
}
func (m *MockSwapService) ListSwaps(ctx context.Context, actor domain.Actor, params dto.ListSwapsParams) (*dto.ListSwapsResponse, error) {
	args := m.Called(ctx, actor, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListSwapsResponse), args.Error(1)
}
func (m *MockSwapService) ListSwapEvents(ctx context.Context, actor domain.Actor, swapID string) ([]domain.SwapEvent, error) {
	args := m.Called(ctx, actor, swapID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SwapEvent), args.Error(1)
}
func (m *MockSwapService) CreateOffer(ctx context.Context, actor domain.Actor, req dto.CreateOfferRequest) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, req))
}
func (m *MockSwapService) ConfirmSwap(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, swapID))
}
func (m *MockSwapService) RejectSwap(ctx context.Context, actor domain.Actor, swapID string, req dto.CloseSwapRequest) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, swapID, req))
}
func (m *MockSwapService) CancelSwap(ctx context.Context, actor domain.Actor, swapID string, req dto.CloseSwapRequest) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, swapID, req))
}
func (m *MockSwapService) CompleteSwap(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, swapID))
}
func (m *MockSwapService) RaiseDispute(ctx context.Context, actor domain.Actor, swapID string, req dto.DisputeRequest) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, swapID, req))
}
func (m *MockSwapService) PreviewDeposit(ctx context.Context, actor domain.Actor, req dto.DepositPreviewRequest) (*dto.DepositPreviewResponse, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.DepositPreviewResponse), args.Error(1)
}
func (m *MockSwapService) ProposePrice(ctx context.Context, actor domain.Actor, swapID string, req dto.ProposePriceRequest) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, swapID, req))
}
func (m *MockSwapService) AcceptPrice(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, swapID))
}
func (m *MockSwapService) GetDeliveryQR(ctx context.Context, actor domain.Actor, swapID string) (*dto.DeliveryQRResponse, error) {
	args := m.Called(ctx, actor, swapID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.DeliveryQRResponse), args.Error(1)
}
func (m *MockSwapService) ScanQR(ctx context.Context, actor domain.Actor, swapID string, req dto.ScanQRRequest) (*dto.ScanResult, error) {
	args := m.Called(ctx, actor, swapID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ScanResult), args.Error(1)
}
func (m *MockSwapService) VerifyDelivery(ctx context.Context, actor domain.Actor, swapID string, req dto.VerifyDeliveryRequest) (*domain.SwapRequest, error) {
	return m.swap(m.Called(ctx, actor, swapID, req))
}
func (m *MockSwapService) ReissueCode(ctx context.Context, actor domain.Actor, swapID string, req dto.ReissueCodeRequest) (*dto.ReissueCodeResponse, error) {
	args := m.Called(ctx, actor, swapID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ReissueCodeResponse), args.Error(1)
}
func (m *MockSwapService) SweepDisputeWindows(ctx context.Context, state *domain.SweepState) (domain.SweepResult, error) {
	args := m.Called(ctx, state)
	return args.Get(0).(domain.SweepResult), args.Error(1)
}

// --- Mock AccountService ---
type MockAccountService struct {
	mock.Mock
}

var _ portssvc.AccountSvcFacade = (*MockAccountService)(nil)

func (m *MockAccountService) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockAccountService) ListLedger(ctx context.Context, userID string, params dto.ListLedgerParams) (*dto.ListLedgerResponse, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListLedgerResponse), args.Error(1)
}
func (m *MockAccountService) ListSwapLedger(ctx context.Context, actor domain.Actor, swapID string) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, actor, swapID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

// --- Mock EligibilityService ---
type MockEligibilityService struct {
	mock.Mock
}

var _ portssvc.EligibilitySvc = (*MockEligibilityService)(nil)

func (m *MockEligibilityService) CheckEligibility(ctx context.Context, userID string, query dto.EligibilityQuery) (*domain.EligibilityResult, error) {
	args := m.Called(ctx, userID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EligibilityResult), args.Error(1)
}
