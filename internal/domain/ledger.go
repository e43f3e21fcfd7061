package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKind names the bankroll-affecting event a ledger entry records. The
// strings are stored verbatim and double as the reason field on emitted
// bankroll events.
type LedgerKind string

const (
	LedgerInitialDeposit LedgerKind = "Initial Deposit"
	LedgerRoundBonus     LedgerKind = "Weekly Addition"
	LedgerBetPlaced      LedgerKind = "Bet Placement"
	LedgerBetWon         LedgerKind = "Bet Win"
	LedgerBetLost        LedgerKind = "Bet Loss"
	LedgerBetVoid        LedgerKind = "Bet Void"
)

// LedgerEntry is one immutable bankroll change. Entries are append-only:
// nothing in the system updates or deletes them, and per user the recorded
// balances chain (each entry's BalanceBefore equals the previous entry's
// BalanceAfter under commit order).
type LedgerEntry struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Kind          LedgerKind      `json:"kind"`
	BetID         *string         `json:"bet_id,omitempty"`
	RoundID       *string         `json:"round_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ReplayBalance folds the signed deltas of a user's full history, oldest
// first, from zero. For a consistent ledger the result equals the user's live
// bankroll.
func ReplayBalance(entries []LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Amount)
	}
	return balance
}
