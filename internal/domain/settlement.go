package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchResult is the final score of a match plus the winner derived from it.
type MatchResult struct {
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Winner    string `json:"winner"`
}

// SettlementSummary reports what one settlement transaction did. Events holds
// one bankroll event per resolved bet, captured inside the transaction and
// emitted by the caller only after commit.
type SettlementSummary struct {
	MatchID string `json:"match_id"`
	Winner  string `json:"winner"`
	Won     int    `json:"won"`
	Lost    int    `json:"lost"`
	Void    int    `json:"void"`
	Skipped int    `json:"skipped"`
	// SkippedBets lists bets left Pending because their user row was gone.
	SkippedBets []string        `json:"skipped_bets,omitempty"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	SettledAt   time.Time       `json:"settled_at"`
	Events      []BankrollEvent `json:"-"`
}

// Resolved returns the number of bets this settlement transitioned out of
// Pending, excluding skips.
func (s SettlementSummary) Resolved() int {
	return s.Won + s.Lost + s.Void
}
