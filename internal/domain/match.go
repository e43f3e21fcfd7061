package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus represents the lifecycle state of a match.
type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "Scheduled"
	MatchStatusLive      MatchStatus = "Live"
	MatchStatusPostponed MatchStatus = "Postponed"
	MatchStatusCancelled MatchStatus = "Cancelled"
	MatchStatusCompleted MatchStatus = "Completed"
)

// DrawOutcome is the winner value recorded when a match ends level. It is a
// valid settlement outcome but never a valid bet selection.
const DrawOutcome = "Draw"

// Match is one bettable fixture: two teams, head-to-head decimal odds, and a
// result once settled. Odds are nullable until a feed prices the match.
// Scores and Winner are written exactly once, by settlement, together with the
// transition to Completed.
type Match struct {
	ID            string           `json:"id"`
	RoundID       string           `json:"round_id"`
	HomeTeam      string           `json:"home_team"`
	AwayTeam      string           `json:"away_team"`
	HomeOdds      *decimal.Decimal `json:"home_odds"`
	AwayOdds      *decimal.Decimal `json:"away_odds"`
	StartTime     time.Time        `json:"start_time"`
	Status        MatchStatus      `json:"status"`
	HomeScore     *int             `json:"home_score"`
	AwayScore     *int             `json:"away_score"`
	Winner        *string          `json:"winner"`
	Venue         string           `json:"venue,omitempty"`
	VenueCity     string           `json:"venue_city,omitempty"`
	ExternalRef   string           `json:"external_ref,omitempty"`
	OddsUpdatedAt *time.Time       `json:"odds_updated_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// OpenForBets reports whether the match still accepts wagers: it must be
// Scheduled and kickoff must not have passed.
func (m Match) OpenForBets(now time.Time) bool {
	return m.Status == MatchStatusScheduled && now.Before(m.StartTime)
}

// HasTeam reports whether team is one of the match's two sides.
func (m Match) HasTeam(team string) bool {
	return team == m.HomeTeam || team == m.AwayTeam
}

// OddsFor returns the current odds for the given team. The second return is
// false when the team is not in this match or its odds are unset.
func (m Match) OddsFor(team string) (decimal.Decimal, bool) {
	switch team {
	case m.HomeTeam:
		if m.HomeOdds == nil {
			return decimal.Decimal{}, false
		}
		return *m.HomeOdds, true
	case m.AwayTeam:
		if m.AwayOdds == nil {
			return decimal.Decimal{}, false
		}
		return *m.AwayOdds, true
	default:
		return decimal.Decimal{}, false
	}
}

// WinnerOf maps a final score to the winning team name, or DrawOutcome when
// the scores are level. Pure; persisting the result is the settlement
// transaction's job.
func WinnerOf(m Match, homeScore, awayScore int) string {
	switch {
	case homeScore > awayScore:
		return m.HomeTeam
	case awayScore > homeScore:
		return m.AwayTeam
	default:
		return DrawOutcome
	}
}
