package domain

import "github.com/shopspring/decimal"

// Pub/sub channels carrying live events to the websocket hub and any other
// subscriber.
const (
	ChannelBankroll = "bankroll"
	ChannelOdds     = "odds"
	ChannelResults  = "results"
)

// BankrollEvent is the wire payload published after any committed bankroll
// change. Reason carries the ledger kind string of the entry that recorded
// the change.
type BankrollEvent struct {
	UserID      string          `json:"user_id"`
	NewBankroll decimal.Decimal `json:"new_bankroll"`
	Reason      string          `json:"reason"`
	MatchID     string          `json:"match_id,omitempty"`
	RoundNumber int             `json:"round_number,omitempty"`
}

// OddsEvent is published when a match's head-to-head prices change.
type OddsEvent struct {
	MatchID  string          `json:"match_id"`
	HomeTeam string          `json:"home_team"`
	AwayTeam string          `json:"away_team"`
	HomeOdds decimal.Decimal `json:"home_odds"`
	AwayOdds decimal.Decimal `json:"away_odds"`
}

// ResultEvent is published after a match settles.
type ResultEvent struct {
	MatchID   string `json:"match_id"`
	Winner    string `json:"winner"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Resolved  int    `json:"resolved"`
}
