package domain

import (
	"fmt"
	"time"
)

// EligibilityPolicy holds the anti-abuse thresholds evaluated before an offer is created.
type EligibilityPolicy struct {
	MinActiveListings  int
	NewAccountAge      time.Duration
	AttemptWindow      time.Duration
	MaxAttempts        int
	EarlySwapCount     int
	SpeculativeGainCap int64
}

// DefaultEligibilityPolicy returns the standard thresholds.
func DefaultEligibilityPolicy() EligibilityPolicy {
	return EligibilityPolicy{
		MinActiveListings:  1,
		NewAccountAge:      7 * 24 * time.Hour,
		AttemptWindow:      24 * time.Hour,
		MaxAttempts:        3,
		EarlySwapCount:     5,
		SpeculativeGainCap: 1000,
	}
}

// EligibilityStats is the read-only snapshot the guard evaluates.
type EligibilityStats struct {
	ActiveListings   int
	AccountCreatedAt time.Time
	RecentAttempts   int
	PriorSwapCount   int
	PriorGain        int64
	CandidateGain    int64
}

// EligibilityReason is a machine-readable failure reason.
type EligibilityReason string

const (
	ReasonEligible            EligibilityReason = ""
	ReasonNotEnoughListings   EligibilityReason = "not_enough_active_listings"
	ReasonAttemptLimitReached EligibilityReason = "attempt_limit_reached"
	ReasonSpeculativeGainCap  EligibilityReason = "speculative_gain_cap_exceeded"
)

// EligibilityResult is an advisory verdict with a reason and details.
type EligibilityResult struct {
	Allowed bool              `json:"allowed"`
	Reason  EligibilityReason `json:"reason,omitempty"`
	Message string            `json:"message,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

// IsNewAccount reports whether the account is still inside the probation age at now.
func (p EligibilityPolicy) IsNewAccount(createdAt, now time.Time) bool {
	return now.Sub(createdAt) < p.NewAccountAge
}

// Evaluate applies the rules in order and returns the first failure.
func (p EligibilityPolicy) Evaluate(stats EligibilityStats, now time.Time) EligibilityResult {
	if stats.ActiveListings < p.MinActiveListings {
		return EligibilityResult{
			Reason:  ReasonNotEnoughListings,
			Message: fmt.Sprintf("at least %d active listing(s) required before offering a swap", p.MinActiveListings),
			Details: map[string]any{
				"activeListings":   stats.ActiveListings,
				"requiredListings": p.MinActiveListings,
			},
		}
	}

	if p.IsNewAccount(stats.AccountCreatedAt, now) && stats.RecentAttempts >= p.MaxAttempts {
		return EligibilityResult{
			Reason:  ReasonAttemptLimitReached,
			Message: fmt.Sprintf("new accounts may open at most %d swap offers per %s", p.MaxAttempts, p.AttemptWindow),
			Details: map[string]any{
				"recentAttempts": stats.RecentAttempts,
				"maxAttempts":    p.MaxAttempts,
				"window":         p.AttemptWindow.String(),
				"retryAfter":     now.Add(p.AttemptWindow).Format(time.RFC3339),
			},
		}
	}

	if stats.PriorSwapCount < p.EarlySwapCount {
		total := stats.PriorGain + stats.CandidateGain
		if total > p.SpeculativeGainCap {
			return EligibilityResult{
				Reason:  ReasonSpeculativeGainCap,
				Message: fmt.Sprintf("potential gain across your first %d swaps may not exceed %d Valor", p.EarlySwapCount, p.SpeculativeGainCap),
				Details: map[string]any{
					"priorGain":     stats.PriorGain,
					"candidateGain": stats.CandidateGain,
					"cap":           p.SpeculativeGainCap,
					"priorSwaps":    stats.PriorSwapCount,
				},
			}
		}
	}

	return EligibilityResult{Allowed: true}
}

// SpeculativeGain is how much more the requester receives than they contribute.
func SpeculativeGain(targetValue int64, offeredValue int64, proposedPrice *int64) int64 {
	contributed := offeredValue
	if proposedPrice != nil {
		contributed += *proposedPrice
	} else if offeredValue == 0 {
		contributed = targetValue
	}
	gain := targetValue - contributed
	if gain < 0 {
		return 0
	}
	return gain
}
