package dto

import (
	"time"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
)

// CreateOfferRequest opens a swap on another user's product.
type CreateOfferRequest struct {
	ProductID        string  `json:"productID" binding:"required"`
	OfferedProductID *string `json:"offeredProductID"`                      // Optional, presence selects product-for-product
	ProposedPrice    *int64  `json:"proposedPrice" binding:"omitempty,gt=0"` // Optional opening proposal
	Message          string  `json:"message" binding:"max=1000"`             // Optional note to the owner
}

// ProposePriceRequest stores the caller's price proposal.
type ProposePriceRequest struct {
	Price int64 `json:"price" binding:"required,gt=0"`
}

// CloseSwapRequest carries an optional reason for reject and cancel.
type CloseSwapRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ScanQRRequest presents a leg's QR token.
type ScanQRRequest struct {
	QRToken string `json:"qrToken" binding:"required"`
}

// VerifyDeliveryRequest presents a leg's secret and delivery photos.
type VerifyDeliveryRequest struct {
	Side   domain.LegSide `json:"side" binding:"omitempty,oneof=A B"`
	Code   string         `json:"code" binding:"required,len=6,numeric"`
	Photos []string       `json:"photos"`
}

// ReissueCodeRequest asks for a fresh secret on a scanned leg.
type ReissueCodeRequest struct {
	Side domain.LegSide `json:"side" binding:"required,oneof=A B"`
}

// DisputeRequest opens a dispute during the window.
type DisputeRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=1000"`
}

// DepositPreviewRequest sizes the caller's deposit before an offer or confirmation.
type DepositPreviewRequest struct {
	ProductID        string  `json:"productID" binding:"required"`
	OfferedProductID *string `json:"offeredProductID"`
	Price            *int64  `json:"price" binding:"omitempty,gt=0"`
}

// DepositPreviewResponse reports the required deposit and whether the caller can afford it.
type DepositPreviewResponse struct {
	BaseValue       int64             `json:"baseValue"`
	TrustLevel      domain.TrustLevel `json:"trustLevel"`
	Rate            string            `json:"rate"`
	RequiredDeposit int64             `json:"requiredDeposit"`
	Available       int64             `json:"available"`
	CanAfford       bool              `json:"canAfford"`
}

// EligibilityQuery describes the offer being considered.
type EligibilityQuery struct {
	ProductID        string  `form:"productID"`
	OfferedProductID *string `form:"offeredProductID"`
	ProposedPrice    *int64  `form:"proposedPrice" binding:"omitempty,gt=0"`
}

// ListSwapsParams defines query parameters for listing swaps.
type ListSwapsParams struct {
	Status    string  `form:"status" binding:"omitempty,oneof=pending accepted qr_generated qr_scanned delivered disputed completed rejected cancelled"`
	Limit     int     `form:"limit,default=20" binding:"min=1,max=100"`
	NextToken *string `form:"nextToken"`
}

// ScanResult is the outcome of presenting a QR token.
type ScanResult struct {
	Swap           SwapResponse   `json:"swap"`
	Side           domain.LegSide `json:"side"`
	AlreadyScanned bool           `json:"alreadyScanned"`
	Message        string         `json:"message"`
}

// DeliveryQR is a QR token the caller must show at handover.
type DeliveryQR struct {
	Side      domain.LegSide `json:"side"`
	ProductID string         `json:"productID"`
	QRToken   string         `json:"qrToken"`
}

// DeliveryQRResponse lists the caller's QR tokens for a swap.
type DeliveryQRResponse struct {
	SwapID string       `json:"swapID"`
	Codes  []DeliveryQR `json:"codes"`
}

// ReissueCodeResponse confirms a fresh secret was sent to the giver.
type ReissueCodeResponse struct {
	SwapID   string         `json:"swapID"`
	Side     domain.LegSide `json:"side"`
	IssuedAt time.Time      `json:"issuedAt"`
}

// LegResponse is the public view of one delivery leg. Secrets are never exposed.
type LegResponse struct {
	Side            domain.LegSide     `json:"side"`
	ProductID       string             `json:"productID"`
	GiverID         string             `json:"giverID"`
	ReceiverID      string             `json:"receiverID"`
	SecretState     domain.SecretState `json:"secretState"`
	CodeIssuedAt    *time.Time         `json:"codeIssuedAt,omitempty"`
	QRScannedAt     *time.Time         `json:"qrScannedAt,omitempty"`
	ReceivedProduct bool               `json:"receivedProduct"`
	ReceivedAt      *time.Time         `json:"receivedAt,omitempty"`
	Photos          []string           `json:"photos,omitempty"`
}

// SwapResponse defines the data returned for a swap.
type SwapResponse struct {
	SwapID               string                   `json:"swapID"`
	RequesterID          string                   `json:"requesterID"`
	OwnerID              string                   `json:"ownerID"`
	ProductID            string                   `json:"productID"`
	OfferedProductID     *string                  `json:"offeredProductID,omitempty"`
	DualSided            bool                     `json:"dualSided"`
	Status               domain.SwapStatus        `json:"status"`
	EscrowStatus         domain.EscrowStatus      `json:"escrowStatus"`
	RequesterDeposit     int64                    `json:"requesterDeposit"`
	OwnerDeposit         int64                    `json:"ownerDeposit"`
	NegotiationStatus    domain.NegotiationStatus `json:"negotiationStatus"`
	AgreedPriceRequester *int64                   `json:"agreedPriceRequester,omitempty"`
	AgreedPriceOwner     *int64                   `json:"agreedPriceOwner,omitempty"`
	PendingValorAmount   *int64                   `json:"pendingValorAmount,omitempty"`
	PriceAgreedAt        *time.Time               `json:"priceAgreedAt,omitempty"`
	RiskTier             domain.RiskTier          `json:"riskTier,omitempty"`
	AutoCompleteEligible bool                     `json:"autoCompleteEligible"`
	Legs                 []LegResponse            `json:"legs"`
	AcceptedAt           *time.Time               `json:"acceptedAt,omitempty"`
	DeliveredAt          *time.Time               `json:"deliveredAt,omitempty"`
	DisputeWindowEndsAt  *time.Time               `json:"disputeWindowEndsAt,omitempty"`
	CompletedAt          *time.Time               `json:"completedAt,omitempty"`
	CreatedAt            time.Time                `json:"createdAt"`
	LastUpdatedAt        time.Time                `json:"lastUpdatedAt"`
}

// ListSwapsResponse is one page of swaps.
type ListSwapsResponse struct {
	Swaps     []SwapResponse `json:"swaps"`
	NextToken *string        `json:"nextToken,omitempty"`
}

// SwapEventResponse is one activity log row.
type SwapEventResponse struct {
	EventID   string               `json:"eventID"`
	ActorID   string               `json:"actorID"`
	Type      domain.SwapEventType `json:"type"`
	Payload   map[string]any       `json:"payload,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

// ToSwapResponse converts a domain.SwapRequest to SwapResponse DTO
func ToSwapResponse(s *domain.SwapRequest) SwapResponse {
	legs := s.Legs.All()
	legResponses := make([]LegResponse, 0, len(legs))
	for _, l := range legs {
		legResponses = append(legResponses, LegResponse{
			Side:            l.Side,
			ProductID:       l.ProductID,
			GiverID:         l.GiverID,
			ReceiverID:      l.ReceiverID,
			SecretState:     l.SecretState(),
			CodeIssuedAt:    l.CodeIssuedAt,
			QRScannedAt:     l.QRScannedAt,
			ReceivedProduct: l.ReceivedProduct,
			ReceivedAt:      l.ReceivedAt,
			Photos:          l.Photos,
		})
	}
	return SwapResponse{
		SwapID:               s.SwapID,
		RequesterID:          s.RequesterID,
		OwnerID:              s.OwnerID,
		ProductID:            s.ProductID,
		OfferedProductID:     s.OfferedProductID,
		DualSided:            s.IsDualSided(),
		Status:               s.Status,
		EscrowStatus:         s.EscrowStatus,
		RequesterDeposit:     s.RequesterDeposit,
		OwnerDeposit:         s.OwnerDeposit,
		NegotiationStatus:    s.NegotiationStatus,
		AgreedPriceRequester: s.AgreedPriceRequester,
		AgreedPriceOwner:     s.AgreedPriceOwner,
		PendingValorAmount:   s.PendingValorAmount,
		PriceAgreedAt:        s.PriceAgreedAt,
		RiskTier:             s.RiskTier,
		AutoCompleteEligible: s.AutoCompleteEligible,
		Legs:                 legResponses,
		AcceptedAt:           s.AcceptedAt,
		DeliveredAt:          s.DeliveredAt,
		DisputeWindowEndsAt:  s.DisputeWindowEndsAt,
		CompletedAt:          s.CompletedAt,
		CreatedAt:            s.CreatedAt,
		LastUpdatedAt:        s.LastUpdatedAt,
	}
}

// ToListSwapResponse converts a slice of domain.SwapRequest to a slice of SwapResponse DTOs
func ToListSwapResponse(swaps []domain.SwapRequest) []SwapResponse {
	res := make([]SwapResponse, len(swaps))
	for i := range swaps {
		res[i] = ToSwapResponse(&swaps[i])
	}
	return res
}

// ToSwapEventResponses converts activity events.
func ToSwapEventResponses(events []domain.SwapEvent) []SwapEventResponse {
	res := make([]SwapEventResponse, len(events))
	for i, e := range events {
		res[i] = SwapEventResponse{
			EventID:   e.EventID,
			ActorID:   e.ActorID,
			Type:      e.Type,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		}
	}
	return res
}
