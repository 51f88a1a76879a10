package models

import "time"

// SwapRequest is a row of the swap_requests table. Legs live in swap_legs.
type SwapRequest struct {
	SwapID               string     `db:"swap_id"`
	RequesterID          string     `db:"requester_id"`
	OwnerID              string     `db:"owner_id"`
	ProductID            string     `db:"product_id"`
	ProductValue         int64      `db:"product_value"`
	Category             string     `db:"category"`
	OfferedProductID     *string    `db:"offered_product_id"`
	OfferedProductValue  *int64     `db:"offered_product_value"`
	Status               string     `db:"status"`
	EscrowStatus         string     `db:"escrow_status"`
	RequesterDeposit     int64      `db:"requester_deposit"`
	OwnerDeposit         int64      `db:"owner_deposit"`
	NegotiationStatus    string     `db:"negotiation_status"`
	AgreedPriceRequester *int64     `db:"agreed_price_requester"`
	AgreedPriceOwner     *int64     `db:"agreed_price_owner"`
	PendingValorAmount   *int64     `db:"pending_valor_amount"`
	PriceAgreedAt        *time.Time `db:"price_agreed_at"`
	RiskTier             string     `db:"risk_tier"`
	AutoCompleteEligible bool       `db:"auto_complete_eligible"`
	AcceptedAt           *time.Time `db:"accepted_at"`
	DeliveredAt          *time.Time `db:"delivered_at"`
	DisputeWindowEndsAt  *time.Time `db:"dispute_window_ends_at"`
	DisputedAt           *time.Time `db:"disputed_at"`
	DisputeReason        string     `db:"dispute_reason"`
	CompletedAt          *time.Time `db:"completed_at"`
	ClosedReason         string     `db:"closed_reason"`
	SpeculativeGain      int64      `db:"speculative_gain"`
	AuditFields
}

// SwapLeg is a row of the swap_legs table.
type SwapLeg struct {
	SwapID          string     `db:"swap_id"`
	Side            string     `db:"side"`
	ProductID       string     `db:"product_id"`
	GiverID         string     `db:"giver_id"`
	ReceiverID      string     `db:"receiver_id"`
	QRToken         string     `db:"qr_token"`
	Code            string     `db:"code"`
	CodeIssuedAt    *time.Time `db:"code_issued_at"`
	QRScannedAt     *time.Time `db:"qr_scanned_at"`
	CodeUsedAt      *time.Time `db:"code_used_at"`
	ReceivedProduct bool       `db:"received_product"`
	ReceivedAt      *time.Time `db:"received_at"`
	Photos          []string   `db:"photos"`
}

// SwapEvent is a row of the swap_events table. Payload is stored as JSONB.
type SwapEvent struct {
	EventID   string         `db:"event_id"`
	SwapID    string         `db:"swap_id"`
	ActorID   string         `db:"actor_id"`
	EventType string         `db:"event_type"`
	Payload   map[string]any `db:"payload"`
	CreatedAt time.Time      `db:"created_at"`
}

// Product is a row of the products read model.
type Product struct {
	ProductID  string    `db:"product_id"`
	OwnerID    string    `db:"owner_id"`
	Title      string    `db:"title"`
	Category   string    `db:"category"`
	ValorPrice int64     `db:"valor_price"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}
