package domain

import (
	"fmt"
	"time"
)

// TrustLevel is the coarse reputation tier used for deposit sizing.
type TrustLevel string

const (
	TrustNew      TrustLevel = "new"
	TrustBasic    TrustLevel = "basic"
	TrustVerified TrustLevel = "verified"
	TrustTrusted  TrustLevel = "trusted"
)

// Valid reports whether the trust level is one of the known tiers.
func (t TrustLevel) Valid() bool {
	switch t {
	case TrustNew, TrustBasic, TrustVerified, TrustTrusted:
		return true
	}
	return false
}

// Account holds a user's Valor position.
// LockedValor is the part of ValorBalance frozen by active escrows.
type Account struct {
	UserID       string     `json:"userID"`
	ValorBalance int64      `json:"valorBalance"`
	LockedValor  int64      `json:"lockedValor"`
	TrustLevel   TrustLevel `json:"trustLevel"`
	AuditFields
}

// Available is the spendable part of the balance.
func (a Account) Available() int64 {
	return a.ValorBalance - a.LockedValor
}

// Validate checks the balance invariants.
func (a Account) Validate() error {
	if a.LockedValor < 0 {
		return fmt.Errorf("account %s: locked valor is negative (%d)", a.UserID, a.LockedValor)
	}
	if a.LockedValor > a.ValorBalance {
		return fmt.Errorf("account %s: locked valor %d exceeds balance %d", a.UserID, a.LockedValor, a.ValorBalance)
	}
	return nil
}

// Lock freezes amount of the available balance.
func (a *Account) Lock(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("lock amount must not be negative")
	}
	if a.Available() < amount {
		return fmt.Errorf("available %d is below %d", a.Available(), amount)
	}
	a.LockedValor += amount
	return nil
}

// Unlock returns amount from the locked part back to available.
func (a *Account) Unlock(amount int64) error {
	if amount < 0 || amount > a.LockedValor {
		return fmt.Errorf("cannot unlock %d of %d locked", amount, a.LockedValor)
	}
	a.LockedValor -= amount
	return nil
}

// Debit removes amount from the available balance.
func (a *Account) Debit(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must not be negative")
	}
	if a.Available() < amount {
		return fmt.Errorf("available %d is below %d", a.Available(), amount)
	}
	a.ValorBalance -= amount
	return nil
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount int64) {
	a.ValorBalance += amount
}

// EntryType is the kind of ledger movement.
type EntryType string

const (
	EntryFreeze  EntryType = "freeze"
	EntryRelease EntryType = "release"
	EntryForfeit EntryType = "forfeit"
	EntryPayment EntryType = "payment"
	EntryPayout  EntryType = "payout"
	EntryFee     EntryType = "fee"
)

// LedgerEntry is an append-only record of one Account mutation.
// BalanceBefore and BalanceAfter are the account's available balance around the mutation.
type LedgerEntry struct {
	EntryID       string    `json:"entryID"`
	SwapRequestID string    `json:"swapRequestID"`
	UserID        string    `json:"userID"`
	Type          EntryType `json:"type"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balanceBefore"`
	BalanceAfter  int64     `json:"balanceAfter"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PartyRole tells which side of a swap posted an escrow hold.
type PartyRole string

const (
	RoleRequester PartyRole = "requester"
	RoleOwner     PartyRole = "owner"
)

// HoldStatus is the lifecycle of one escrow hold.
type HoldStatus string

const (
	HoldHeld      HoldStatus = "held"
	HoldReleased  HoldStatus = "released"
	HoldForfeited HoldStatus = "forfeited"
)

// EscrowHold is the amount one party has frozen against one swap.
type EscrowHold struct {
	HoldID     string     `json:"holdID"`
	SwapID     string     `json:"swapID"`
	UserID     string     `json:"userID"`
	Role       PartyRole  `json:"role"`
	Amount     int64      `json:"amount"`
	Status     HoldStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReleasedAt *time.Time `json:"releasedAt,omitempty"`
}

// ConservationDelta is freeze minus release minus forfeit over a set of entries.
// For the full history of one account it equals the account's LockedValor.
func ConservationDelta(entries []LedgerEntry) int64 {
	var total int64
	for _, e := range entries {
		switch e.Type {
		case EntryFreeze:
			total += e.Amount
		case EntryRelease, EntryForfeit:
			total -= e.Amount
		}
	}
	return total
}
