package domain

import (
	"crypto/subtle"
	"time"
)

// LegSide names one delivery obligation within a swap.
// Leg A carries the owner's product to the requester. Leg B carries the
// requester's offered product to the owner and exists only for product-for-product swaps.
type LegSide string

const (
	LegA LegSide = "A"
	LegB LegSide = "B"
)

// Valid reports whether the side is A or B.
func (s LegSide) Valid() bool {
	return s == LegA || s == LegB
}

// SecretState is the lifecycle of a leg's verification code.
type SecretState string

const (
	SecretUnissued SecretState = "unissued"
	SecretIssued   SecretState = "issued"
	SecretUsed     SecretState = "used"
)

// LegState is the scan and verify progress of one leg.
type LegState struct {
	Side            LegSide    `json:"side"`
	ProductID       string     `json:"productID"`
	GiverID         string     `json:"giverID"`
	ReceiverID      string     `json:"receiverID"`
	QRToken         string     `json:"-"`
	Code            string     `json:"-"`
	CodeIssuedAt    *time.Time `json:"codeIssuedAt,omitempty"`
	QRScannedAt     *time.Time `json:"qrScannedAt,omitempty"`
	CodeUsedAt      *time.Time `json:"codeUsedAt,omitempty"`
	ReceivedProduct bool       `json:"receivedProduct"`
	ReceivedAt      *time.Time `json:"receivedAt,omitempty"`
	Photos          []string   `json:"photos,omitempty"`
}

// SecretState reports where the leg's code is in its lifecycle.
func (l *LegState) SecretState() SecretState {
	switch {
	case l.CodeUsedAt != nil:
		return SecretUsed
	case l.CodeIssuedAt != nil:
		return SecretIssued
	default:
		return SecretUnissued
	}
}

// Scanned reports whether the receiver already presented the QR token.
func (l *LegState) Scanned() bool {
	return l.QRScannedAt != nil
}

// CodeMatches compares a presented code in constant time.
func (l *LegState) CodeMatches(code string) bool {
	if l.Code == "" || len(code) != len(l.Code) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(l.Code), []byte(code)) == 1
}

// TokenMatches compares a presented QR token in constant time.
func (l *LegState) TokenMatches(token string) bool {
	if l.QRToken == "" || len(token) != len(l.QRToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(l.QRToken), []byte(token)) == 1
}

// CodeExpired reports whether the issued code is older than ttl at now.
func (l *LegState) CodeExpired(now time.Time, ttl time.Duration) bool {
	if l.CodeIssuedAt == nil {
		return false
	}
	return now.Sub(*l.CodeIssuedAt) > ttl
}

// MarkScanned records the first scan and issues the code.
// It returns false when the leg was already scanned and leaves the leg untouched.
func (l *LegState) MarkScanned(now time.Time) bool {
	if l.Scanned() {
		return false
	}
	l.QRScannedAt = timePtr(now)
	if l.CodeIssuedAt == nil {
		l.CodeIssuedAt = timePtr(now)
	}
	return true
}

// Reissue replaces the code and restarts its freshness window.
func (l *LegState) Reissue(code string, now time.Time) {
	l.Code = code
	l.CodeIssuedAt = timePtr(now)
}

// MarkReceived consumes the code and records delivery evidence.
func (l *LegState) MarkReceived(photos []string, now time.Time) {
	l.CodeUsedAt = timePtr(now)
	l.ReceivedProduct = true
	l.ReceivedAt = timePtr(now)
	l.Photos = append([]string(nil), photos...)
}

func (l LegState) clone() LegState {
	c := l
	c.CodeIssuedAt = cloneTime(l.CodeIssuedAt)
	c.QRScannedAt = cloneTime(l.QRScannedAt)
	c.CodeUsedAt = cloneTime(l.CodeUsedAt)
	c.ReceivedAt = cloneTime(l.ReceivedAt)
	c.Photos = append([]string(nil), l.Photos...)
	return c
}

// SwapLegs is the delivery topology of a swap. B is nil for single-sided swaps.
type SwapLegs struct {
	A LegState  `json:"a"`
	B *LegState `json:"b,omitempty"`
}

// Get returns the leg for side, or nil if the swap has no such leg.
func (s *SwapLegs) Get(side LegSide) *LegState {
	switch side {
	case LegA:
		return &s.A
	case LegB:
		return s.B
	}
	return nil
}

// All returns the legs in side order.
func (s *SwapLegs) All() []*LegState {
	if s.B == nil {
		return []*LegState{&s.A}
	}
	return []*LegState{&s.A, s.B}
}

// AllScanned reports whether every leg has been scanned.
func (s *SwapLegs) AllScanned() bool {
	for _, l := range s.All() {
		if !l.Scanned() {
			return false
		}
	}
	return true
}

// AnyScanned reports whether at least one leg has been scanned.
func (s *SwapLegs) AnyScanned() bool {
	for _, l := range s.All() {
		if l.Scanned() {
			return true
		}
	}
	return false
}

// AllReceived reports whether every leg confirmed receipt.
func (s *SwapLegs) AllReceived() bool {
	for _, l := range s.All() {
		if !l.ReceivedProduct {
			return false
		}
	}
	return true
}

// GivenBy returns the legs whose product userID hands over.
func (s *SwapLegs) GivenBy(userID string) []*LegState {
	var out []*LegState
	for _, l := range s.All() {
		if l.GiverID == userID {
			out = append(out, l)
		}
	}
	return out
}

// Clone deep-copies the legs.
func (s SwapLegs) Clone() SwapLegs {
	c := SwapLegs{A: s.A.clone()}
	if s.B != nil {
		b := s.B.clone()
		c.B = &b
	}
	return c
}

// NewLegs builds the topology for a swap at creation time.
func NewLegs(swap *SwapRequest) SwapLegs {
	legs := SwapLegs{
		A: LegState{
			Side:       LegA,
			ProductID:  swap.ProductID,
			GiverID:    swap.OwnerID,
			ReceiverID: swap.RequesterID,
		},
	}
	if swap.OfferedProductID != nil {
		legs.B = &LegState{
			Side:       LegB,
			ProductID:  *swap.OfferedProductID,
			GiverID:    swap.RequesterID,
			ReceiverID: swap.OwnerID,
		}
	}
	return legs
}
