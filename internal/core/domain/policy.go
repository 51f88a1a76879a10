package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DepositPolicy maps trust levels to deposit rates.
type DepositPolicy struct {
	Rates map[TrustLevel]decimal.Decimal
}

// DefaultDepositPolicy returns the standard tiered rates.
func DefaultDepositPolicy() DepositPolicy {
	return DepositPolicy{Rates: map[TrustLevel]decimal.Decimal{
		TrustNew:      decimal.RequireFromString("0.15"),
		TrustBasic:    decimal.RequireFromString("0.10"),
		TrustVerified: decimal.RequireFromString("0.07"),
		TrustTrusted:  decimal.RequireFromString("0.05"),
	}}
}

// RateFor returns the rate for level. Unknown levels pay the new-account rate.
func (p DepositPolicy) RateFor(level TrustLevel) decimal.Decimal {
	if r, ok := p.Rates[level]; ok {
		return r
	}
	return p.Rates[TrustNew]
}

// DepositFor rounds rate * value up to whole Valor.
func (p DepositPolicy) DepositFor(level TrustLevel, value int64) int64 {
	if value <= 0 {
		return 0
	}
	return p.RateFor(level).Mul(decimal.NewFromInt(value)).Ceil().IntPart()
}

// DepositInput is a trust-tier snapshot plus the values at stake.
type DepositInput struct {
	RequesterTrust TrustLevel
	OwnerTrust     TrustLevel
	AgreedPrice    int64
	OfferedValue   *int64
}

// Deposits is the calculator's output.
type Deposits struct {
	Requester     int64           `json:"requester"`
	Owner         int64           `json:"owner"`
	RequesterRate decimal.Decimal `json:"requesterRate"`
	OwnerRate     decimal.Decimal `json:"ownerRate"`
}

// Calculate sizes each party's deposit against the value the counterpart contributes.
func (p DepositPolicy) Calculate(in DepositInput) Deposits {
	d := Deposits{
		Requester:     p.DepositFor(in.RequesterTrust, in.AgreedPrice),
		RequesterRate: p.RateFor(in.RequesterTrust),
	}
	if in.OfferedValue != nil {
		d.Owner = p.DepositFor(in.OwnerTrust, *in.OfferedValue)
		d.OwnerRate = p.RateFor(in.OwnerTrust)
	}
	return d
}

// RiskPolicy classifies swaps from price and category.
type RiskPolicy struct {
	LowMaxPrice        int64
	HighMinPrice       int64
	HighRiskMinPrice   int64
	HighRiskCategories []string
}

// DefaultRiskPolicy returns the standard thresholds.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		LowMaxPrice:        500,
		HighMinPrice:       5000,
		HighRiskMinPrice:   1000,
		HighRiskCategories: []string{"electronics", "jewelry", "vehicles"},
	}
}

func (p RiskPolicy) highRiskCategory(category string) bool {
	for _, c := range p.HighRiskCategories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// Classify returns the tier and whether it allows auto-completion.
func (p RiskPolicy) Classify(price int64, category string) (RiskTier, bool) {
	risky := p.highRiskCategory(category)
	switch {
	case price >= p.HighMinPrice, risky && price >= p.HighRiskMinPrice:
		return RiskHigh, false
	case price < p.LowMaxPrice && !risky:
		return RiskLow, true
	default:
		return RiskMedium, false
	}
}

// FeePolicy is the platform's cut of a settlement.
type FeePolicy struct {
	Percent decimal.Decimal
}

// Fee floors Percent * amount to whole Valor so the platform never takes more than its share.
func (p FeePolicy) Fee(amount int64) int64 {
	if amount <= 0 || p.Percent.IsZero() {
		return 0
	}
	return p.Percent.Mul(decimal.NewFromInt(amount)).Floor().IntPart()
}

// DisputeWindow is the grace period after joint delivery.
type DisputeWindow struct {
	Duration time.Duration
}

// EndsAt returns the close time of a window opened at deliveredAt.
func (w DisputeWindow) EndsAt(deliveredAt time.Time) time.Time {
	return deliveredAt.Add(w.Duration)
}
