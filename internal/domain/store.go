package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// UserStore persists accounts. Create and ApplyRoundBonus are transactional:
// each writes the user row and its ledger entry atomically.
type UserStore interface {
	// Create inserts the user together with an Initial Deposit ledger entry
	// for initialDeposit. Duplicate username or email yields ErrAlreadyExists.
	Create(ctx context.Context, user User, initialDeposit decimal.Decimal) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	ListActive(ctx context.Context) ([]User, error)
	// Leaderboard returns active users ordered by bankroll descending.
	Leaderboard(ctx context.Context, limit int) ([]User, error)
	// ApplyRoundBonus credits amount under a Weekly Addition ledger entry for
	// the round and returns the new bankroll. A bonus already recorded for
	// (user, round) yields ErrBonusAlreadyApplied with no mutation.
	ApplyRoundBonus(ctx context.Context, userID, roundID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// RoundStore persists competition rounds.
type RoundStore interface {
	// Upsert inserts or refreshes a round keyed by (round_number, year),
	// preserving the stored status on update.
	Upsert(ctx context.Context, round Round) (Round, error)
	GetByID(ctx context.Context, id string) (Round, error)
	// GetActive returns the Active round, or ErrNotFound when none is.
	GetActive(ctx context.Context) (Round, error)
	// FirstUpcoming returns the Upcoming round with the earliest start.
	FirstUpcoming(ctx context.Context) (Round, error)
	GetByNumber(ctx context.Context, roundNumber, year int) (Round, error)
	List(ctx context.Context, year int) ([]Round, error)
	ListByStatus(ctx context.Context, status RoundStatus) ([]Round, error)
	SetStatus(ctx context.Context, id string, status RoundStatus) error
}

// MatchStore persists fixtures.
type MatchStore interface {
	// Upsert inserts or refreshes a match keyed by external_ref, leaving
	// result fields and Completed matches untouched.
	Upsert(ctx context.Context, match Match) (Match, error)
	GetByID(ctx context.Context, id string) (Match, error)
	ListByRound(ctx context.Context, roundID string) ([]Match, error)
	// ListOpenForBets returns Scheduled matches of the round that have not
	// kicked off.
	ListOpenForBets(ctx context.Context, roundID string, now time.Time) ([]Match, error)
	// ListAwaitingResult returns matches that should be polled for a result:
	// Live ones, and Scheduled ones whose kickoff has passed.
	ListAwaitingResult(ctx context.Context, now time.Time) ([]Match, error)
	UpdateOdds(ctx context.Context, id string, homeOdds, awayOdds decimal.Decimal) error
	// UpdateStatus moves a match between non-terminal states. It never writes
	// Completed; only the settlement transaction does that.
	UpdateStatus(ctx context.Context, id string, status MatchStatus) error
}

// BetStore persists bets and owns the two money transactions.
type BetStore interface {
	// Place atomically locks the user row, re-checks funds, debits the stake,
	// inserts the bet, and appends its Bet Placement ledger entry. Returns
	// ErrInsufficientFunds without side effects when the bankroll cannot
	// cover the stake.
	Place(ctx context.Context, bet Bet) (Bet, error)
	// SettleMatch resolves every Pending bet on the match and records the
	// result, all in one transaction: per bet it locks the user row, applies
	// the bankroll delta, marks the bet, and appends a ledger entry; finally
	// it writes scores, winner, and Completed on the match. A match already
	// Completed yields ErrAlreadySettled with no mutation. A bet whose user
	// row is missing is skipped and counted, never fatal.
	SettleMatch(ctx context.Context, matchID string, result MatchResult) (SettlementSummary, error)
	GetByID(ctx context.Context, id string) (Bet, error)
	ListByUser(ctx context.Context, userID string, statuses []BetStatus) ([]Bet, error)
	// HasPending reports whether the user already has a Pending bet on the
	// match.
	HasPending(ctx context.Context, userID, matchID string) (bool, error)
	// ListSettledBetween returns bets settled inside [from, to), oldest
	// first, for export.
	ListSettledBetween(ctx context.Context, from, to time.Time, opts ListOpts) ([]Bet, error)
}

// LedgerStore reads the append-only bankroll history. All writes happen
// inside the UserStore and BetStore transactions.
type LedgerStore interface {
	// History returns the user's entries oldest first.
	History(ctx context.Context, userID string) ([]LedgerEntry, error)
	// ListCreatedBetween returns entries created inside [from, to), oldest
	// first, for export.
	ListCreatedBetween(ctx context.Context, from, to time.Time, opts ListOpts) ([]LedgerEntry, error)
}

// PredictionStore persists model output per match.
type PredictionStore interface {
	// Upsert inserts or replaces the prediction keyed by (match_id, model).
	Upsert(ctx context.Context, p Prediction) (Prediction, error)
	// GetByMatch returns the newest prediction for the match.
	GetByMatch(ctx context.Context, matchID string) (Prediction, error)
}
