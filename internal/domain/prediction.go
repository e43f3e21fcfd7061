package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfidenceLevel buckets a model's win probability for display.
type ConfidenceLevel string

const (
	ConfidenceLow      ConfidenceLevel = "Low"
	ConfidenceMedium   ConfidenceLevel = "Medium"
	ConfidenceHigh     ConfidenceLevel = "High"
	ConfidenceVeryHigh ConfidenceLevel = "Very High"
)

// ConfidenceLevelFor maps a win probability to its display bucket.
func ConfidenceLevelFor(p decimal.Decimal) ConfidenceLevel {
	switch {
	case p.GreaterThanOrEqual(decimal.NewFromFloat(0.70)):
		return ConfidenceVeryHigh
	case p.GreaterThanOrEqual(decimal.NewFromFloat(0.60)):
		return ConfidenceHigh
	case p.GreaterThanOrEqual(decimal.NewFromFloat(0.55)):
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Prediction is one model's read on one match. RecommendedTeam is nil when
// the model declines to recommend a bet; StakeFraction is the fraction of
// bankroll to wager, already safety-scaled at the model boundary, so callers
// multiply by bankroll and apply only their own hard cap.
type Prediction struct {
	ID                 string          `json:"id"`
	MatchID            string          `json:"match_id"`
	Model              string          `json:"model"`
	HomeWinProbability decimal.Decimal `json:"home_win_probability"`
	AwayWinProbability decimal.Decimal `json:"away_win_probability"`
	PredictedWinner    string          `json:"predicted_winner"`
	Confidence         decimal.Decimal `json:"confidence"`
	ConfidenceLevel    ConfidenceLevel `json:"confidence_level"`
	RecommendedTeam    *string         `json:"recommended_team"`
	StakeFraction      decimal.Decimal `json:"stake_fraction"`
	CreatedAt          time.Time       `json:"created_at"`
}
