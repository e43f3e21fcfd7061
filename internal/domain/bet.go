package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetStatus tracks the bet lifecycle. The only legal transitions are
// Pending -> Won, Pending -> Lost, and Pending -> Void, each exactly once.
type BetStatus string

const (
	BetStatusPending BetStatus = "Pending"
	BetStatusWon     BetStatus = "Won"
	BetStatusLost    BetStatus = "Lost"
	BetStatusVoid    BetStatus = "Void"
)

// SettledStatuses are the terminal bet states, in the order they are reported.
var SettledStatuses = []BetStatus{BetStatusWon, BetStatusLost, BetStatusVoid}

// Bet is one user's stake on one team of one match. OddsAtPlacement is a
// snapshot taken when the bet is placed and never changes afterwards, so later
// odds drift cannot alter the payout.
type Bet struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	MatchID         string          `json:"match_id"`
	TeamSelected    string          `json:"team_selected"`
	Stake           decimal.Decimal `json:"stake"`
	OddsAtPlacement decimal.Decimal `json:"odds_at_placement"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
	Status          BetStatus       `json:"status"`
	PlacedAt        time.Time       `json:"placed_at"`
	SettledAt       *time.Time      `json:"settled_at"`
}

// NewBet assembles an unpersisted Pending bet with the payout computed from
// the snapshotted odds (stake times odds, stake included).
func NewBet(userID, matchID, team string, stake, odds decimal.Decimal) Bet {
	return Bet{
		UserID:          userID,
		MatchID:         matchID,
		TeamSelected:    team,
		Stake:           stake,
		OddsAtPlacement: odds,
		PotentialPayout: stake.Mul(odds).Round(2),
		Status:          BetStatusPending,
	}
}

// ValidStake reports whether a stake is positive with at most two decimal
// places (whole cents).
func ValidStake(stake decimal.Decimal) bool {
	return stake.IsPositive() && stake.Equal(stake.Round(2))
}

// BetResolution is the outcome of resolving one bet against a match winner:
// the terminal status, the signed bankroll delta, and the ledger kind that
// records it.
type BetResolution struct {
	Status BetStatus
	Delta  decimal.Decimal
	Kind   LedgerKind
}

// ResolveBet maps a pending bet and the match winner to its resolution.
// Draws void the bet and refund the stake. A correct pick pays the full
// potential payout (stake plus profit). A wrong pick pays nothing; the stake
// left the bankroll at placement time and stays gone.
func ResolveBet(b Bet, winner string) BetResolution {
	switch {
	case winner == DrawOutcome:
		return BetResolution{Status: BetStatusVoid, Delta: b.Stake, Kind: LedgerBetVoid}
	case b.TeamSelected == winner:
		return BetResolution{Status: BetStatusWon, Delta: b.PotentialPayout, Kind: LedgerBetWon}
	default:
		return BetResolution{Status: BetStatusLost, Delta: decimal.Zero, Kind: LedgerBetLost}
	}
}
