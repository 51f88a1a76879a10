package domain

import (
	"errors"
	"time"
)

var (
	ErrPriceNotPositive      = errors.New("price must be positive")
	ErrNoCounterpartProposal = errors.New("counterpart has not proposed a price")
	ErrNotAParty             = errors.New("user is not a party to this swap")
)

// ProposePrice stores price in the proposing party's own slot and re-runs agreement detection.
// It reports whether the swap is agreed after the write.
func (s *SwapRequest) ProposePrice(role PartyRole, price int64, now time.Time) (bool, error) {
	if price <= 0 {
		return false, ErrPriceNotPositive
	}
	switch role {
	case RoleRequester:
		s.AgreedPriceRequester = int64Ptr(price)
	case RoleOwner:
		s.AgreedPriceOwner = int64Ptr(price)
	default:
		return false, ErrNotAParty
	}
	return s.detectAgreement(now), nil
}

// AcceptCounterpartPrice copies the counterpart's current proposal into role's slot.
func (s *SwapRequest) AcceptCounterpartPrice(role PartyRole, now time.Time) (bool, error) {
	var counterpart *int64
	switch role {
	case RoleRequester:
		counterpart = s.AgreedPriceOwner
	case RoleOwner:
		counterpart = s.AgreedPriceRequester
	default:
		return false, ErrNotAParty
	}
	if counterpart == nil {
		return false, ErrNoCounterpartProposal
	}
	return s.ProposePrice(role, *counterpart, now)
}

// detectAgreement applies the value-equality rule after any single slot write.
func (s *SwapRequest) detectAgreement(now time.Time) bool {
	r, o := s.AgreedPriceRequester, s.AgreedPriceOwner
	if r != nil && o != nil && *r == *o {
		already := s.NegotiationStatus == NegotiationAgreed && s.PendingValorAmount != nil && *s.PendingValorAmount == *r
		s.NegotiationStatus = NegotiationAgreed
		s.PendingValorAmount = int64Ptr(*r)
		if !already || s.PriceAgreedAt == nil {
			s.PriceAgreedAt = timePtr(now)
		}
		return true
	}
	if r == nil && o == nil {
		s.NegotiationStatus = NegotiationNone
	} else {
		s.NegotiationStatus = NegotiationProposed
	}
	s.PendingValorAmount = nil
	s.PriceAgreedAt = nil
	return false
}
