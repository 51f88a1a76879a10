package services

import (
	"context"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
)

// SwapReaderSvc defines read operations for swaps.
type SwapReaderSvc interface {
	// GetSwap returns a swap the actor is party to. A swap whose dispute window elapsed is finalized first.
	GetSwap(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error)

	// ListSwaps returns a page of the actor's swaps.
	ListSwaps(ctx context.Context, actor domain.Actor, params dto.ListSwapsParams) (*dto.ListSwapsResponse, error)

	// ListSwapEvents returns the activity log of a swap.
	ListSwapEvents(ctx context.Context, actor domain.Actor, swapID string) ([]domain.SwapEvent, error)
}

// SwapLifecycleSvc drives the swap state machine.
type SwapLifecycleSvc interface {
	// CreateOffer opens a pending swap after the eligibility guard passes.
	CreateOffer(ctx context.Context, actor domain.Actor, req dto.CreateOfferRequest) (*domain.SwapRequest, error)

	// ConfirmSwap accepts a price-agreed swap, freezes deposits and generates delivery secrets.
	ConfirmSwap(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error)

	// RejectSwap closes a swap as rejected and releases deposits.
	RejectSwap(ctx context.Context, actor domain.Actor, swapID string, req dto.CloseSwapRequest) (*domain.SwapRequest, error)

	// CancelSwap withdraws a swap before any leg is scanned and releases deposits.
	CancelSwap(ctx context.Context, actor domain.Actor, swapID string, req dto.CloseSwapRequest) (*domain.SwapRequest, error)

	// CompleteSwap settles a delivered swap and releases both deposits.
	CompleteSwap(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error)

	// RaiseDispute freezes finalization while the dispute window is open.
	RaiseDispute(ctx context.Context, actor domain.Actor, swapID string, req dto.DisputeRequest) (*domain.SwapRequest, error)

	// PreviewDeposit sizes the caller's deposit and reports whether it is affordable.
	PreviewDeposit(ctx context.Context, actor domain.Actor, req dto.DepositPreviewRequest) (*dto.DepositPreviewResponse, error)
}

// SwapNegotiationSvc runs the symmetric price protocol.
type SwapNegotiationSvc interface {
	// ProposePrice writes the caller's own proposal slot.
	ProposePrice(ctx context.Context, actor domain.Actor, swapID string, req dto.ProposePriceRequest) (*domain.SwapRequest, error)

	// AcceptPrice copies the counterpart's proposal into the caller's slot.
	AcceptPrice(ctx context.Context, actor domain.Actor, swapID string) (*domain.SwapRequest, error)
}

// DeliverySvc runs the scan then code handshake per leg.
type DeliverySvc interface {
	// GetDeliveryQR returns the QR tokens the caller hands over with their product.
	GetDeliveryQR(ctx context.Context, actor domain.Actor, swapID string) (*dto.DeliveryQRResponse, error)

	// ScanQR records the receiver's scan and sends the code to the giver.
	ScanQR(ctx context.Context, actor domain.Actor, swapID string, req dto.ScanQRRequest) (*dto.ScanResult, error)

	// VerifyDelivery consumes a leg's code and records receipt.
	VerifyDelivery(ctx context.Context, actor domain.Actor, swapID string, req dto.VerifyDeliveryRequest) (*domain.SwapRequest, error)

	// ReissueCode replaces an unused code on a scanned leg.
	ReissueCode(ctx context.Context, actor domain.Actor, swapID string, req dto.ReissueCodeRequest) (*dto.ReissueCodeResponse, error)
}

// DisputeWindowSvc is the time-driven part of the state machine.
type DisputeWindowSvc interface {
	// SweepDisputeWindows auto-completes eligible swaps whose window elapsed.
	SweepDisputeWindows(ctx context.Context, state *domain.SweepState) (domain.SweepResult, error)
}

// SwapSvcFacade combines all swap-related service interfaces
type SwapSvcFacade interface {
	SwapReaderSvc
	SwapLifecycleSvc
	SwapNegotiationSvc
	DeliverySvc
	DisputeWindowSvc
}

// EligibilitySvc is the anti-abuse guard consulted before an offer is created.
type EligibilitySvc interface {
	// CheckEligibility evaluates the guard without mutating anything.
	CheckEligibility(ctx context.Context, userID string, query dto.EligibilityQuery) (*domain.EligibilityResult, error)
}

// Notifier hands notifications to the outbound queue. It is called after commit and its errors are never fatal.
type Notifier interface {
	Enqueue(ctx context.Context, notes ...domain.Notification) error
}
