package domain

import "time"

// SwapStatus is the state of a swap request.
type SwapStatus string

const (
	StatusPending     SwapStatus = "pending"
	StatusAccepted    SwapStatus = "accepted"
	StatusQRGenerated SwapStatus = "qr_generated"
	StatusQRScanned   SwapStatus = "qr_scanned"
	StatusDelivered   SwapStatus = "delivered"
	StatusDisputed    SwapStatus = "disputed"
	StatusCompleted   SwapStatus = "completed"
	StatusRejected    SwapStatus = "rejected"
	StatusCancelled   SwapStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s SwapStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// IsInFlight reports whether the swap was accepted but has not been delivered yet.
func (s SwapStatus) IsInFlight() bool {
	return s == StatusAccepted || s == StatusQRGenerated || s == StatusQRScanned
}

// IsPostAcceptance reports whether confirm already happened for a swap in this status.
func (s SwapStatus) IsPostAcceptance() bool {
	return s.IsInFlight() || s == StatusDelivered || s == StatusDisputed || s == StatusCompleted
}

// AcceptsDeliveryCode reports whether a verification code may still be presented.
// Delivered is included so a replayed code answers AlreadyUsed instead of InvalidState.
func (s SwapStatus) AcceptsDeliveryCode() bool {
	return s.IsInFlight() || s == StatusDelivered
}

// EscrowStatus tracks the deposits attached to a swap.
type EscrowStatus string

const (
	EscrowNone     EscrowStatus = "none"
	EscrowLocked   EscrowStatus = "locked"
	EscrowActive   EscrowStatus = "active"
	EscrowReleased EscrowStatus = "released"
)

// NegotiationStatus tracks the price agreement.
type NegotiationStatus string

const (
	NegotiationNone     NegotiationStatus = "none"
	NegotiationProposed NegotiationStatus = "price_proposed"
	NegotiationAgreed   NegotiationStatus = "price_agreed"
)

// RiskTier classifies whether a swap may finalize without review.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// SwapRequest is the aggregate owned by the swap state machine.
type SwapRequest struct {
	SwapID              string     `json:"swapID"`
	RequesterID         string     `json:"requesterID"`
	OwnerID             string     `json:"ownerID"`
	ProductID           string     `json:"productID"`
	ProductValue        int64      `json:"productValue"` // list price snapshot at offer time
	Category            string     `json:"category"`
	OfferedProductID    *string    `json:"offeredProductID,omitempty"`
	OfferedProductValue *int64     `json:"offeredProductValue,omitempty"`
	Status              SwapStatus `json:"status"`

	EscrowStatus     EscrowStatus `json:"escrowStatus"`
	RequesterDeposit int64        `json:"requesterDeposit"`
	OwnerDeposit     int64        `json:"ownerDeposit"`

	NegotiationStatus    NegotiationStatus `json:"negotiationStatus"`
	AgreedPriceRequester *int64            `json:"agreedPriceRequester,omitempty"`
	AgreedPriceOwner     *int64            `json:"agreedPriceOwner,omitempty"`
	PendingValorAmount   *int64            `json:"pendingValorAmount,omitempty"`
	PriceAgreedAt        *time.Time        `json:"priceAgreedAt,omitempty"`

	Legs SwapLegs `json:"legs"`

	RiskTier             RiskTier   `json:"riskTier,omitempty"`
	AutoCompleteEligible bool       `json:"autoCompleteEligible"`
	AcceptedAt           *time.Time `json:"acceptedAt,omitempty"`
	DeliveredAt          *time.Time `json:"deliveredAt,omitempty"`
	DisputeWindowEndsAt  *time.Time `json:"disputeWindowEndsAt,omitempty"`
	DisputedAt           *time.Time `json:"disputedAt,omitempty"`
	DisputeReason        string     `json:"disputeReason,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
	ClosedReason         string     `json:"closedReason,omitempty"`

	// SpeculativeGain is the value the requester stands to gain over what they contribute.
	SpeculativeGain int64 `json:"speculativeGain"`

	AuditFields
}

// IsDualSided reports the product-for-product topology.
func (s *SwapRequest) IsDualSided() bool {
	return s.OfferedProductID != nil
}

// RoleOf returns the party role of userID, or false if the user is not a party.
func (s *SwapRequest) RoleOf(userID string) (PartyRole, bool) {
	switch userID {
	case s.RequesterID:
		return RoleRequester, true
	case s.OwnerID:
		return RoleOwner, true
	}
	return "", false
}

// IsParty reports whether userID is the requester or the owner.
func (s *SwapRequest) IsParty(userID string) bool {
	_, ok := s.RoleOf(userID)
	return ok
}

// Counterparty returns the other party's id.
func (s *SwapRequest) Counterparty(userID string) string {
	if userID == s.RequesterID {
		return s.OwnerID
	}
	return s.RequesterID
}

// AgreedPrice is the negotiated price, or false if no agreement exists.
func (s *SwapRequest) AgreedPrice() (int64, bool) {
	if s.NegotiationStatus != NegotiationAgreed || s.PendingValorAmount == nil {
		return 0, false
	}
	return *s.PendingValorAmount, true
}

// OfferedValue is the value of the requester's offered product, zero when single-sided.
func (s *SwapRequest) OfferedValue() int64 {
	if s.OfferedProductValue == nil {
		return 0
	}
	return *s.OfferedProductValue
}

// SettlementAmount is the Valor the requester pays the owner on completion.
func (s *SwapRequest) SettlementAmount() int64 {
	price, ok := s.AgreedPrice()
	if !ok {
		price = s.ProductValue
	}
	if !s.IsDualSided() {
		return price
	}
	diff := price - s.OfferedValue()
	if diff < 0 {
		return 0
	}
	return diff
}

// DisputeWindowOpen reports whether a dispute may still be raised at now.
func (s *SwapRequest) DisputeWindowOpen(now time.Time) bool {
	return s.DisputeWindowEndsAt != nil && now.Before(*s.DisputeWindowEndsAt)
}

// DueForFinalization reports whether the dispute window elapsed on an auto-completable swap.
func (s *SwapRequest) DueForFinalization(now time.Time) bool {
	return s.Status == StatusDelivered &&
		s.AutoCompleteEligible &&
		s.DisputeWindowEndsAt != nil &&
		!now.Before(*s.DisputeWindowEndsAt)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s SwapRequest) Clone() SwapRequest {
	c := s
	c.OfferedProductID = cloneString(s.OfferedProductID)
	c.OfferedProductValue = cloneInt64(s.OfferedProductValue)
	c.AgreedPriceRequester = cloneInt64(s.AgreedPriceRequester)
	c.AgreedPriceOwner = cloneInt64(s.AgreedPriceOwner)
	c.PendingValorAmount = cloneInt64(s.PendingValorAmount)
	c.PriceAgreedAt = cloneTime(s.PriceAgreedAt)
	c.AcceptedAt = cloneTime(s.AcceptedAt)
	c.DeliveredAt = cloneTime(s.DeliveredAt)
	c.DisputeWindowEndsAt = cloneTime(s.DisputeWindowEndsAt)
	c.DisputedAt = cloneTime(s.DisputedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.Legs = s.Legs.Clone()
	return c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// SwapEventType names an activity log entry.
type SwapEventType string

const (
	EventOfferCreated   SwapEventType = "offer_created"
	EventPriceProposed  SwapEventType = "price_proposed"
	EventPriceAgreed    SwapEventType = "price_agreed"
	EventAccepted       SwapEventType = "accepted"
	EventRejected       SwapEventType = "rejected"
	EventCancelled      SwapEventType = "cancelled"
	EventQRGenerated    SwapEventType = "qr_generated"
	EventQRScanned      SwapEventType = "qr_scanned"
	EventCodeReissued   SwapEventType = "code_reissued"
	EventLegDelivered   SwapEventType = "leg_delivered"
	EventDelivered      SwapEventType = "delivered"
	EventJointDelivered SwapEventType = "joint_delivered"
	EventDisputed       SwapEventType = "disputed"
	EventCompleted      SwapEventType = "completed"
	EventAutoCompleted  SwapEventType = "auto_completed"
	EventEscrowReleased SwapEventType = "escrow_released"
)

// SwapEvent is an append-only activity record.
type SwapEvent struct {
	EventID   string         `json:"eventID"`
	SwapID    string         `json:"swapID"`
	ActorID   string         `json:"actorID"`
	Type      SwapEventType  `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
