package predictor

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testModel() *ImpliedOddsModel {
	return NewImpliedOddsModel(Config{
		ProbabilityThreshold: 0.52,
		KellyCap:             0.25,
		SafetyFraction:       0.5,
	})
}

func TestImpliedOddsModelName(t *testing.T) {
	if got := testModel().Name(); got != "implied_odds_v1" {
		t.Errorf("default Name() = %q, want implied_odds_v1", got)
	}
	named := NewImpliedOddsModel(Config{Name: "baseline_v2"})
	if got := named.Name(); got != "baseline_v2" {
		t.Errorf("Name() = %q, want baseline_v2", got)
	}
}

func TestPredictEvenMoneyFavoursHome(t *testing.T) {
	match := domain.Match{
		ID:       "m1",
		HomeTeam: "Broncos",
		AwayTeam: "Storm",
		HomeOdds: decPtr("2.00"),
		AwayOdds: decPtr("2.00"),
	}

	pred, ok, err := testModel().Predict(context.Background(), match)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !ok {
		t.Fatal("Predict returned ok=false for a fully priced match")
	}

	if !pred.HomeWinProbability.Equal(dec("0.5399")) {
		t.Errorf("home probability = %s, want 0.5399", pred.HomeWinProbability)
	}
	if !pred.AwayWinProbability.Equal(dec("0.4601")) {
		t.Errorf("away probability = %s, want 0.4601", pred.AwayWinProbability)
	}
	if pred.PredictedWinner != "Broncos" {
		t.Errorf("predicted winner = %q, want Broncos", pred.PredictedWinner)
	}
	if pred.ConfidenceLevel != domain.ConfidenceLow {
		t.Errorf("confidence level = %q, want Low", pred.ConfidenceLevel)
	}
	if pred.RecommendedTeam == nil || *pred.RecommendedTeam != "Broncos" {
		t.Errorf("recommended team = %v, want Broncos", pred.RecommendedTeam)
	}
	if !pred.StakeFraction.Equal(dec("0.0399")) {
		t.Errorf("stake fraction = %s, want 0.0399", pred.StakeFraction)
	}
}

func TestPredictShortAwayFavourite(t *testing.T) {
	match := domain.Match{
		ID:       "m2",
		HomeTeam: "Titans",
		AwayTeam: "Panthers",
		HomeOdds: decPtr("3.50"),
		AwayOdds: decPtr("1.30"),
	}

	pred, ok, err := testModel().Predict(context.Background(), match)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !ok {
		t.Fatal("Predict returned ok=false for a fully priced match")
	}

	if pred.PredictedWinner != "Panthers" {
		t.Errorf("predicted winner = %q, want Panthers", pred.PredictedWinner)
	}
	if pred.ConfidenceLevel != domain.ConfidenceHigh {
		t.Errorf("confidence level = %q, want High", pred.ConfidenceLevel)
	}
	sum := pred.HomeWinProbability.Add(pred.AwayWinProbability)
	if !sum.Equal(dec("1")) {
		t.Errorf("probabilities sum to %s, want 1", sum)
	}

	// The price is too short for the recalibrated probability to carry an
	// edge: the side is recommended but Kelly sizes it at zero.
	if pred.RecommendedTeam == nil || *pred.RecommendedTeam != "Panthers" {
		t.Errorf("recommended team = %v, want Panthers", pred.RecommendedTeam)
	}
	if !pred.StakeFraction.IsZero() {
		t.Errorf("stake fraction = %s, want 0", pred.StakeFraction)
	}
}

func TestPredictSkipsUnpricedMatches(t *testing.T) {
	tests := []struct {
		name  string
		match domain.Match
	}{
		{
			name:  "no odds at all",
			match: domain.Match{ID: "m3", HomeTeam: "Sharks", AwayTeam: "Raiders"},
		},
		{
			name: "missing away price",
			match: domain.Match{
				ID: "m4", HomeTeam: "Sharks", AwayTeam: "Raiders",
				HomeOdds: decPtr("1.85"),
			},
		},
		{
			name: "certainty price",
			match: domain.Match{
				ID: "m5", HomeTeam: "Sharks", AwayTeam: "Raiders",
				HomeOdds: decPtr("1.00"), AwayOdds: decPtr("15.00"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := testModel().Predict(context.Background(), tt.match)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			if ok {
				t.Error("Predict returned ok=true, want false")
			}
		})
	}
}
