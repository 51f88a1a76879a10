package dto

import (
	"time"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
)

// AccountResponse defines the data returned for an account.
type AccountResponse struct {
	UserID        string            `json:"userID"`
	ValorBalance  int64             `json:"valorBalance"`
	LockedValor   int64             `json:"lockedValor"`
	Available     int64             `json:"available"`
	TrustLevel    domain.TrustLevel `json:"trustLevel"`
	LastUpdatedAt time.Time         `json:"lastUpdatedAt"`
}

// ToAccountResponse converts a domain.Account to AccountResponse DTO
func ToAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		UserID:        acc.UserID,
		ValorBalance:  acc.ValorBalance,
		LockedValor:   acc.LockedValor,
		Available:     acc.Available(),
		TrustLevel:    acc.TrustLevel,
		LastUpdatedAt: acc.LastUpdatedAt,
	}
}

// LedgerEntryResponse defines the data returned for a ledger entry.
type LedgerEntryResponse struct {
	EntryID       string           `json:"entryID"`
	SwapRequestID string           `json:"swapRequestID"`
	UserID        string           `json:"userID"`
	Type          domain.EntryType `json:"type"`
	Amount        int64            `json:"amount"`
	BalanceBefore int64            `json:"balanceBefore"`
	BalanceAfter  int64            `json:"balanceAfter"`
	Reason        string           `json:"reason"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// ToLedgerEntryResponses converts ledger entries.
func ToLedgerEntryResponses(entries []domain.LedgerEntry) []LedgerEntryResponse {
	res := make([]LedgerEntryResponse, len(entries))
	for i, e := range entries {
		res[i] = LedgerEntryResponse{
			EntryID:       e.EntryID,
			SwapRequestID: e.SwapRequestID,
			UserID:        e.UserID,
			Type:          e.Type,
			Amount:        e.Amount,
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			Reason:        e.Reason,
			CreatedAt:     e.CreatedAt,
		}
	}
	return res
}

// ListLedgerParams defines query parameters for listing ledger entries.
type ListLedgerParams struct {
	Limit     int     `form:"limit,default=50" binding:"min=1,max=200"`
	NextToken *string `form:"nextToken"`
}

// ListLedgerResponse is one page of ledger entries.
type ListLedgerResponse struct {
	Entries   []LedgerEntryResponse `json:"entries"`
	NextToken *string               `json:"nextToken,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}
