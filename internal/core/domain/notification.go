package domain

// NotificationKind names an outbound message template.
type NotificationKind string

const (
	NotifyOfferReceived    NotificationKind = "offer_received"
	NotifyPriceProposed    NotificationKind = "price_proposed"
	NotifyPriceAgreed      NotificationKind = "price_agreed"
	NotifySwapAccepted     NotificationKind = "swap_accepted"
	NotifySwapRejected     NotificationKind = "swap_rejected"
	NotifySwapCancelled    NotificationKind = "swap_cancelled"
	NotifyVerificationCode NotificationKind = "verification_code"
	NotifyLegDelivered     NotificationKind = "leg_delivered"
	NotifySwapDelivered    NotificationKind = "swap_delivered"
	NotifySwapDisputed     NotificationKind = "swap_disputed"
	NotifySwapCompleted    NotificationKind = "swap_completed"
)

// Channel is an out-of-band delivery route.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

// Notification is one outbound message. Delivery is at-least-once and never part of a transition.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	UserID   string           `json:"userID"`
	SwapID   string           `json:"swapID"`
	Channels []Channel        `json:"channels"`
	Payload  map[string]any   `json:"payload,omitempty"`
}

// InApp builds an in-app notification.
func InApp(kind NotificationKind, userID, swapID string, payload map[string]any) Notification {
	return Notification{Kind: kind, UserID: userID, SwapID: swapID, Channels: []Channel{ChannelInApp}, Payload: payload}
}

// VerificationCodeNotice delivers a leg's secret to the giver by email and in-app message.
func VerificationCodeNotice(swapID string, leg *LegState) Notification {
	return Notification{
		Kind:     NotifyVerificationCode,
		UserID:   leg.GiverID,
		SwapID:   swapID,
		Channels: []Channel{ChannelEmail, ChannelInApp},
		Payload: map[string]any{
			"side":     string(leg.Side),
			"code":     leg.Code,
			"issuedAt": leg.CodeIssuedAt,
		},
	}
}
