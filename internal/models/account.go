package models

import "time"

// Account is a row of the accounts table.
type Account struct {
	UserID       string `db:"user_id"`
	ValorBalance int64  `db:"valor_balance"`
	LockedValor  int64  `db:"locked_valor"`
	TrustLevel   string `db:"trust_level"`
	AuditFields
}

// EscrowHold is a row of the escrow_holds table.
type EscrowHold struct {
	HoldID     string     `db:"hold_id"`
	SwapID     string     `db:"swap_id"`
	UserID     string     `db:"user_id"`
	Role       string     `db:"role"`
	Amount     int64      `db:"amount"`
	Status     string     `db:"status"`
	CreatedAt  time.Time  `db:"created_at"`
	ReleasedAt *time.Time `db:"released_at"`
}

// LedgerEntry is a row of the append-only ledger_entries table.
type LedgerEntry struct {
	EntryID       string    `db:"entry_id"`
	SwapRequestID string    `db:"swap_request_id"`
	UserID        string    `db:"user_id"`
	EntryType     string    `db:"entry_type"`
	Amount        int64     `db:"amount"`
	BalanceBefore int64     `db:"balance_before"`
	BalanceAfter  int64     `db:"balance_after"`
	Reason        string    `db:"reason"`
	CreatedAt     time.Time `db:"created_at"`
}
