package predictor

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// Calibration coefficients for the baseline model: a logistic recalibration
// of the market's implied home probability. The slope below one fades
// longshot-biased market prices toward even money and the intercept carries
// the home-ground edge the head-to-head market underprices.
const (
	homeFieldBias    = 0.16
	calibrationSlope = 0.92
)

// ImpliedOddsModel recalibrates the bookmaker's own prices into win
// probabilities and sizes stakes with the Kelly criterion. It is the baseline
// model: no team form data, just the market plus home advantage.
type ImpliedOddsModel struct {
	name      string
	threshold decimal.Decimal
	kellyCap  decimal.Decimal
	safety    decimal.Decimal
}

// NewImpliedOddsModel creates the baseline model from config.
func NewImpliedOddsModel(cfg Config) *ImpliedOddsModel {
	name := cfg.Name
	if name == "" {
		name = "implied_odds_v1"
	}
	return &ImpliedOddsModel{
		name:      name,
		threshold: decimal.NewFromFloat(cfg.ProbabilityThreshold),
		kellyCap:  decimal.NewFromFloat(cfg.KellyCap),
		safety:    decimal.NewFromFloat(cfg.SafetyFraction),
	}
}

// Name returns the model identifier stored with each prediction.
func (m *ImpliedOddsModel) Name() string { return m.name }

// Predict derives both sides' win probabilities from the match's current
// prices. It returns false without a prediction when either price is missing.
func (m *ImpliedOddsModel) Predict(_ context.Context, match domain.Match) (domain.Prediction, bool, error) {
	if match.HomeOdds == nil || match.AwayOdds == nil {
		return domain.Prediction{}, false, nil
	}

	// A price at or below 1.00 implies certainty and breaks the logit.
	homeOdds := *match.HomeOdds
	awayOdds := *match.AwayOdds
	if !homeOdds.GreaterThan(one) || !awayOdds.GreaterThan(one) {
		return domain.Prediction{}, false, nil
	}

	// Strip the overround, then recalibrate the market's home probability.
	rawHome := 1 / homeOdds.InexactFloat64()
	rawAway := 1 / awayOdds.InexactFloat64()
	marketHome := rawHome / (rawHome + rawAway)

	logit := homeFieldBias + calibrationSlope*math.Log(marketHome/(1-marketHome))
	pHomeF := 1 / (1 + math.Exp(-logit))

	pHome := decimal.NewFromFloat(pHomeF).Round(4)
	pAway := one.Sub(pHome)

	winner := match.HomeTeam
	confidence := pHome
	if pAway.GreaterThan(pHome) {
		winner = match.AwayTeam
		confidence = pAway
	}

	pred := domain.Prediction{
		MatchID:            match.ID,
		Model:              m.name,
		HomeWinProbability: pHome,
		AwayWinProbability: pAway,
		PredictedWinner:    winner,
		Confidence:         confidence,
		ConfidenceLevel:    domain.ConfidenceLevelFor(confidence),
		StakeFraction:      decimal.Zero,
	}

	// Recommend the side whose probability clears the threshold, sized by
	// fractional Kelly. The recommendation stands even when Kelly comes back
	// zero; callers skip zero-fraction bets.
	switch {
	case pHome.GreaterThan(m.threshold):
		team := match.HomeTeam
		pred.RecommendedTeam = &team
		pred.StakeFraction = KellyFraction(pHome, homeOdds, m.kellyCap, m.safety)
	case pAway.GreaterThan(m.threshold):
		team := match.AwayTeam
		pred.RecommendedTeam = &team
		pred.StakeFraction = KellyFraction(pAway, awayOdds, m.kellyCap, m.safety)
	}

	return pred, true, nil
}

// Compile-time interface check.
var _ Model = (*ImpliedOddsModel)(nil)
