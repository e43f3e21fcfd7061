// Package predictor derives win probabilities and staking advice for
// upcoming matches.
package predictor

import (
	"context"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// Model produces a prediction for one match. The bool reports whether the
// match carried enough data to predict at all; a model returns false rather
// than guessing when prices are missing.
type Model interface {
	Name() string
	Predict(ctx context.Context, match domain.Match) (domain.Prediction, bool, error)
}

// Config tunes a model's recommendation boundary and stake sizing.
type Config struct {
	// Name is the model identifier stored with each prediction.
	Name string
	// ProbabilityThreshold is the minimum win probability before the model
	// recommends a bet on a side.
	ProbabilityThreshold float64
	// KellyCap bounds the raw Kelly fraction.
	KellyCap float64
	// SafetyFraction scales the capped Kelly fraction down; 0.5 bets half
	// Kelly.
	SafetyFraction float64
}
